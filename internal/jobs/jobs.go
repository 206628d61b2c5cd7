// Package jobs defines the background job types the API enqueues and the
// worker runs, and the JSON payload carried by each.
package jobs

import "errors"

type JobType string

const (
	JobSendWelcome         JobType = "user.welcome"
	JobNotifyMappingAssign JobType = "mapping.assigned"
)

var (
	ErrInvalidJobType      = errors.New("invalid job type")
	ErrInvalidJobPayload   = errors.New("invalid job payload")
	ErrPayloadTypeMismatch = errors.New("payload type mismatch for job type")
)

// Payload is implemented by every job payload struct.
type Payload interface {
	JobType() JobType
	validate() error
}

// registry maps each known type to a constructor for its payload.
var registry = map[JobType]func() Payload{
	JobSendWelcome:         func() Payload { return &SendWelcomePayload{} },
	JobNotifyMappingAssign: func() Payload { return &MappingAssignedPayload{} },
}

func (t JobType) IsValid() bool {
	_, ok := registry[t]
	return ok
}

package jobs

import (
	"strings"
	"time"
)

// SendWelcomePayload is enqueued after a successful self registration.
// Keep payloads minimal; the worker reloads the user before sending.
type SendWelcomePayload struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	RequestedAt time.Time `json:"requested_at"`
	RequestID   string    `json:"request_id,omitempty"`
}

func (SendWelcomePayload) JobType() JobType { return JobSendWelcome }

func (p SendWelcomePayload) validate() error {
	if blank(p.UserID) || blank(p.Email) {
		return ErrInvalidJobPayload
	}
	return nil
}

// MappingAssignedPayload tells the doctor a patient was assigned to them.
type MappingAssignedPayload struct {
	MappingID   string    `json:"mapping_id"`
	ActorID     string    `json:"actor_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	RequestID   string    `json:"request_id,omitempty"`
}

func (MappingAssignedPayload) JobType() JobType { return JobNotifyMappingAssign }

func (p MappingAssignedPayload) validate() error {
	if blank(p.MappingID) {
		return ErrInvalidJobPayload
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

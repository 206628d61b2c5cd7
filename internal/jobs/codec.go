package jobs

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/geocoder89/medportal/internal/domain/job"
)

// EncodePayload checks that payload belongs to t and is complete, then
// returns its JSON form. Values and pointers are both accepted.
func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	p, ok := payload.(Payload)
	if !ok {
		return nil, ErrPayloadTypeMismatch
	}
	if v := reflect.ValueOf(payload); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, ErrInvalidJobPayload
	}
	if p.JobType() != t {
		return nil, ErrPayloadTypeMismatch
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}
	return b, nil
}

// NewCreateRequest encodes payload and builds the row insert request for t.
func NewCreateRequest(t JobType, payload any, idempotencyKey string, userID *string) (job.CreateRequest, error) {
	b, err := EncodePayload(t, payload)
	if err != nil {
		return job.CreateRequest{}, err
	}

	req := job.CreateRequest{
		Type:    string(t),
		Payload: b,
		UserID:  userID,
	}
	if idempotencyKey != "" {
		req.IdempotencyKey = &idempotencyKey
	}
	return req, nil
}

// DecodePayload returns the payload of j as a value of its concrete type,
// e.g. SendWelcomePayload for a welcome job.
func DecodePayload(j job.Job) (Payload, error) {
	newPayload, ok := registry[JobType(j.Type)]
	if !ok {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	ptr := newPayload()
	if err := json.Unmarshal(j.Payload, ptr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	// hand back the value so callers switch on SendWelcomePayload, not a pointer
	return reflect.ValueOf(ptr).Elem().Interface().(Payload), nil
}

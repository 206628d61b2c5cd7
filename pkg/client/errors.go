package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

var (
	// ErrSessionExpired is returned when a 401 could not be recovered by a refresh.
	ErrSessionExpired   = errors.New("session expired, please log in again")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden for this role")
)

// FieldError is one entry of details.fields in a 400 response.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// APIError is the normalized form of every non-2xx response.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Fields    []FieldError
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s (%d %s, request %s)", e.Message, e.Status, e.Code, e.RequestID)
	}
	return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type errorEnvelope struct {
	Error *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
		Details   struct {
			Fields []FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func decodeAPIError(status int, body []byte, requestID string) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Code != "" {
		out := &APIError{
			Status:    status,
			Code:      env.Error.Code,
			Message:   env.Error.Message,
			RequestID: env.Error.RequestID,
			Fields:    env.Error.Details.Fields,
		}
		if out.RequestID == "" {
			out.RequestID = requestID
		}
		return out
	}

	msg := http.StatusText(status)
	if msg == "" {
		msg = "unexpected response"
	}
	return &APIError{
		Status:    status,
		Code:      "http_" + strconv.Itoa(status),
		Message:   msg,
		RequestID: requestID,
	}
}

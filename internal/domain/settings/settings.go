package settings

import "time"

// SystemSettings is the singleton admin-managed configuration row.
type SystemSettings struct {
	AutoLogout         bool      `json:"auto_logout"`
	SessionTimeout     int       `json:"session_timeout"`
	EmailNotifications bool      `json:"email_notifications"`
	DataRetention      int       `json:"data_retention"`
	MaxLoginAttempts   int       `json:"max_login_attempts"`
	PasswordMinLength  int       `json:"password_min_length"`
	UpdatedBy          *string   `json:"updated_by"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func Defaults() SystemSettings {
	return SystemSettings{
		AutoLogout:         true,
		SessionTimeout:     60,
		EmailNotifications: true,
		DataRetention:      365,
		MaxLoginAttempts:   5,
		PasswordMinLength:  8,
	}
}

type UpdateRequest struct {
	AutoLogout         *bool `json:"auto_logout"`
	SessionTimeout     *int  `json:"session_timeout" binding:"omitempty,min=5,max=1440"`
	EmailNotifications *bool `json:"email_notifications"`
	DataRetention      *int  `json:"data_retention" binding:"omitempty,min=30,max=3650"`
	MaxLoginAttempts   *int  `json:"max_login_attempts" binding:"omitempty,min=1,max=20"`
	PasswordMinLength  *int  `json:"password_min_length" binding:"omitempty,min=8,max=64"`
}

func (s *SystemSettings) Apply(req UpdateRequest) {
	if req.AutoLogout != nil {
		s.AutoLogout = *req.AutoLogout
	}
	if req.SessionTimeout != nil {
		s.SessionTimeout = *req.SessionTimeout
	}
	if req.EmailNotifications != nil {
		s.EmailNotifications = *req.EmailNotifications
	}
	if req.DataRetention != nil {
		s.DataRetention = *req.DataRetention
	}
	if req.MaxLoginAttempts != nil {
		s.MaxLoginAttempts = *req.MaxLoginAttempts
	}
	if req.PasswordMinLength != nil {
		s.PasswordMinLength = *req.PasswordMinLength
	}
}

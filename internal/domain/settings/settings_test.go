package settings

import "testing"

func TestApplyOnlyTouchesProvidedFields(t *testing.T) {
	s := Defaults()
	attempts := 3
	off := false

	s.Apply(UpdateRequest{MaxLoginAttempts: &attempts, EmailNotifications: &off})

	if s.MaxLoginAttempts != 3 {
		t.Fatalf("max_login_attempts = %d, want 3", s.MaxLoginAttempts)
	}
	if s.EmailNotifications {
		t.Fatal("email_notifications should be off")
	}
	if s.PasswordMinLength != 8 || s.SessionTimeout != 60 || !s.AutoLogout {
		t.Fatalf("untouched fields changed: %+v", s)
	}
}

package notifications

import "context"

type WelcomeInput struct {
	Email string
	Name  string
	Role  string
}

type MappingAssignedInput struct {
	DoctorEmail string
	DoctorName  string
	PatientName string
	MappingID   string
	Symptoms    []string
}

type Notifier interface {
	SendWelcome(ctx context.Context, in WelcomeInput) error
	SendMappingAssigned(ctx context.Context, in MappingAssignedInput) error
}

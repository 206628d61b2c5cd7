package notificationsdelivery

import "errors"

const (
	KindWelcome         = "user.welcome"
	KindMappingAssigned = "mapping.assigned"
)

var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification delivery in progress")
)

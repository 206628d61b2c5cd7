package notifications

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrProviderDown = errors.New("notification provider down")

// LogNotifier writes notices to the structured log instead of a mail provider.
// NOTIFIER_SLEEP_MS and NOTIFIER_FAIL=1 simulate a slow or failing provider.
type LogNotifier struct {
	log   *slog.Logger
	delay time.Duration
	fail  bool
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}

	n := &LogNotifier{log: log, fail: os.Getenv("NOTIFIER_FAIL") == "1"}
	if ms, err := strconv.Atoi(os.Getenv("NOTIFIER_SLEEP_MS")); err == nil && ms > 0 {
		n.delay = time.Duration(ms) * time.Millisecond
	}
	return n
}

func (n *LogNotifier) SendWelcome(ctx context.Context, in WelcomeInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.welcome",
		"email", in.Email,
		"name", in.Name,
		"role", in.Role,
	)
	return nil
}

func (n *LogNotifier) SendMappingAssigned(ctx context.Context, in MappingAssignedInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.mapping_assigned",
		"email", in.DoctorEmail,
		"doctor", in.DoctorName,
		"patient", in.PatientName,
		"mapping_id", in.MappingID,
		"symptoms", strings.Join(in.Symptoms, ", "),
	)
	return nil
}

func (n *LogNotifier) simulate(ctx context.Context) error {
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if n.fail {
		return ErrProviderDown
	}
	return nil
}

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/geocoder89/medportal/internal/domain/job"
	"github.com/geocoder89/medportal/internal/domain/notificationsdelivery"
	"github.com/geocoder89/medportal/internal/notifications"
	"github.com/geocoder89/medportal/internal/queue/worker"
	"github.com/geocoder89/medportal/internal/repo/postgres"
)

type recordingNotifier struct {
	mu       sync.Mutex
	welcomes []notifications.WelcomeInput
	assigned []notifications.MappingAssignedInput
}

func (n *recordingNotifier) SendWelcome(_ context.Context, in notifications.WelcomeInput) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, in)
	return nil
}

func (n *recordingNotifier) SendMappingAssigned(_ context.Context, in notifications.MappingAssignedInput) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigned = append(n.assigned, in)
	return nil
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.welcomes), len(n.assigned)
}

func newTestWorker(env *testEnv, n notifications.Notifier) *worker.Worker {
	pool := env.pool
	return worker.New(worker.Config{WorkerID: "it-worker"}, worker.Deps{
		Jobs:       postgres.NewJobsRepo(pool, nil),
		Deliveries: postgres.NewNotificationDeliveriesRepo(pool, nil),
		Users:      postgres.NewUsersRepo(pool, nil),
		Mappings:   postgres.NewMappingsRepo(pool, nil),
		Doctors:    postgres.NewDoctorsRepo(pool, nil),
		Notifier:   n,
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func deliveryStatus(t *testing.T, env *testEnv, kind, subjectID string) string {
	t.Helper()
	var status string
	err := env.pool.QueryRow(context.Background(),
		`SELECT status FROM notification_deliveries WHERE kind = $1 AND subject_id = $2`,
		kind, subjectID).Scan(&status)
	if err != nil {
		t.Fatalf("load delivery %s/%s: %v", kind, subjectID, err)
	}
	return status
}

func TestPipeline_RegisterSendsWelcomeOnce(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	w := env.do(t, http.MethodPost, "/api/v1/auth/register/", patientSignup("welcome@example.com"), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var reg tokenPair
	mustDecode(t, w, &reg)

	jobs := postgres.NewJobsRepo(env.pool, nil)
	j, err := jobs.GetByIdempotencyKey(ctx, "welcome:"+reg.User.ID)
	if err != nil {
		t.Fatalf("welcome job not enqueued: %v", err)
	}
	if j.Status != job.StatusPending {
		t.Fatalf("expected pending job, got %s", j.Status)
	}

	n := &recordingNotifier{}
	wk := newTestWorker(env, n)

	processed, err := wk.ProcessOne(ctx)
	if err != nil || !processed {
		t.Fatalf("ProcessOne: processed=%v err=%v", processed, err)
	}

	if welcomes, _ := n.counts(); welcomes != 1 {
		t.Fatalf("expected 1 welcome, got %d", welcomes)
	}
	if got := n.welcomes[0].Email; got != "welcome@example.com" {
		t.Fatalf("welcome sent to %q", got)
	}

	j, err = jobs.GetByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if j.Status != job.StatusDone {
		t.Fatalf("expected done job, got %s", j.Status)
	}
	if s := deliveryStatus(t, env, notificationsdelivery.KindWelcome, reg.User.ID); s != "sent" {
		t.Fatalf("expected sent delivery, got %s", s)
	}

	// a redelivered job must not send the notice again
	if _, err := env.pool.Exec(ctx, `UPDATE jobs SET status = 'pending', run_at = NOW() WHERE id = $1`, j.ID); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if processed, err := wk.ProcessOne(ctx); err != nil || !processed {
		t.Fatalf("second ProcessOne: processed=%v err=%v", processed, err)
	}
	if welcomes, _ := n.counts(); welcomes != 1 {
		t.Fatalf("expected welcome to stay at 1, got %d", welcomes)
	}

	if processed, err := wk.ProcessOne(ctx); err != nil || processed {
		t.Fatalf("expected empty queue, processed=%v err=%v", processed, err)
	}
}

func TestPipeline_MappingNotifiesDoctor(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	admin := env.login(t, adminEmail, adminPassword)
	auth := bearer(admin.Access)

	w := env.do(t, http.MethodPost, "/api/v1/patients/", map[string]any{
		"full_name":      "Ada Patient",
		"age":            52,
		"gender":         "female",
		"contact_number": "08011112222",
	}, auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create patient: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var p struct {
		ID string `json:"id"`
	}
	mustDecode(t, w, &p)

	w = env.do(t, http.MethodPost, "/api/v1/doctors/", map[string]any{
		"full_name":           "Grace Doctor",
		"email":               "grace@example.com",
		"specializations":     []string{"cardiology"},
		"license_number":      "LIC-1001",
		"years_of_experience": 12,
		"contact_number":      "08033334444",
		"is_approved":         true,
	}, auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create doctor: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var d struct {
		ID string `json:"id"`
	}
	mustDecode(t, w, &d)

	w = env.do(t, http.MethodPost, "/api/v1/mappings/", map[string]any{
		"patient_id": p.ID,
		"doctor_id":  d.ID,
		"symptoms":   []string{"chest pain"},
	}, auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create mapping: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	var m struct {
		ID string `json:"id"`
	}
	mustDecode(t, w, &m)

	w = env.do(t, http.MethodPost, "/api/v1/mappings/", map[string]any{
		"patient_id": p.ID,
		"doctor_id":  d.ID,
	}, auth)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate mapping: expected 409, got %d", w.Code)
	}

	if _, err := postgres.NewJobsRepo(env.pool, nil).GetByIdempotencyKey(ctx, "mapping:assigned:"+m.ID); err != nil {
		t.Fatalf("mapping job not enqueued: %v", err)
	}

	n := &recordingNotifier{}
	wk := newTestWorker(env, n)
	if processed, err := wk.ProcessOne(ctx); err != nil || !processed {
		t.Fatalf("ProcessOne: processed=%v err=%v", processed, err)
	}

	if _, assigned := n.counts(); assigned != 1 {
		t.Fatalf("expected 1 assignment notice, got %d", assigned)
	}
	got := n.assigned[0]
	if got.DoctorEmail != "grace@example.com" || got.PatientName != "Ada Patient" || got.MappingID != m.ID {
		t.Fatalf("unexpected notice: %+v", got)
	}
	if s := deliveryStatus(t, env, notificationsdelivery.KindMappingAssigned, m.ID); s != "sent" {
		t.Fatalf("expected sent delivery, got %s", s)
	}
}

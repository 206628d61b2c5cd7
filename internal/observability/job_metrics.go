package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// JobOutcome is how one run of a job ended. The values double as the
// "result" label on the Prometheus job series.
type JobOutcome string

const (
	OutcomeDone   JobOutcome = "done"
	OutcomeRetry  JobOutcome = "retry"
	OutcomeFailed JobOutcome = "failed"

	// OutcomeDeadLettered is a failure after the last allowed attempt.
	OutcomeDeadLettered JobOutcome = "dead_lettered"
)

// JobTypeStats are the in-process totals for one job type.
type JobTypeStats struct {
	Done         uint64
	Retried      uint64
	Failed       uint64
	DeadLettered uint64

	Runs  uint64
	Total time.Duration
	Max   time.Duration
}

func (s JobTypeStats) Average() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Runs)
}

// JobMetrics keeps worker counters that survive without a Prometheus
// registry; the worker logs them on shutdown.
type JobMetrics struct {
	claimed atomic.Uint64

	mu     sync.Mutex
	byType map[string]*JobTypeStats
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{byType: make(map[string]*JobTypeStats)}
}

func (m *JobMetrics) Claimed() { m.claimed.Add(1) }

// Record adds one finished run of jobType.
func (m *JobMetrics) Record(jobType string, outcome JobOutcome, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byType[jobType]
	if !ok {
		s = &JobTypeStats{}
		m.byType[jobType] = s
	}

	switch outcome {
	case OutcomeDone:
		s.Done++
	case OutcomeRetry:
		s.Retried++
	case OutcomeDeadLettered:
		s.DeadLettered++
		s.Failed++
	default:
		s.Failed++
	}

	s.Runs++
	s.Total += d
	if d > s.Max {
		s.Max = d
	}
}

type JobMetricsSnapshot struct {
	JobTypeStats

	Claimed uint64
	ByType  map[string]JobTypeStats
}

// Types lists the job types seen so far, sorted.
func (s JobMetricsSnapshot) Types() []string {
	out := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Snapshot copies the counters; the embedded stats are the sum over types.
func (m *JobMetrics) Snapshot() JobMetricsSnapshot {
	snap := JobMetricsSnapshot{
		Claimed: m.claimed.Load(),
		ByType:  make(map[string]JobTypeStats),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for t, s := range m.byType {
		snap.ByType[t] = *s

		snap.Done += s.Done
		snap.Retried += s.Retried
		snap.Failed += s.Failed
		snap.DeadLettered += s.DeadLettered
		snap.Runs += s.Runs
		snap.Total += s.Total
		if s.Max > snap.Max {
			snap.Max = s.Max
		}
	}
	return snap
}

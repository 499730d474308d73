package llm

import (
	"slices"
	"sync"
	"time"
)

// Outcome classifies a finished remote call.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeFailed      Outcome = "failed"
	OutcomeRateLimited Outcome = "rate_limited"
)

// OutcomeOf maps a call error to its Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case IsQuotaExceeded(err):
		return OutcomeRateLimited
	default:
		return OutcomeFailed
	}
}

type sample struct {
	timestamp  time.Time
	durationMs int64
	mode       string
	outcome    Outcome
}

// ModeCounts is the per-mode call tally inside a StatsSnapshot.
type ModeCounts struct {
	Calls       int `json:"calls"`
	Failures    int `json:"failures"`
	RateLimited int `json:"rate_limited"`
}

// StatsSnapshot is a point-in-time aggregate of recent remote calls.
type StatsSnapshot struct {
	Count       int                   `json:"count"`
	Failures    int                   `json:"failures"`
	RateLimited int                   `json:"rate_limited"`
	MinMs       int64                 `json:"min_ms"`
	MaxMs       int64                 `json:"max_ms"`
	AvgMs       float64               `json:"avg_ms"`
	P50Ms       float64               `json:"p50_ms"`
	P95Ms       float64               `json:"p95_ms"`
	P99Ms       float64               `json:"p99_ms"`
	ByMode      map[string]ModeCounts `json:"by_mode,omitempty"`
}

// CallStats tracks remote call latencies and outcomes within a rolling window.
// Safe for concurrent use.
type CallStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewCallStats(maxAge time.Duration) *CallStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &CallStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one finished call. A nil receiver is a no-op.
func (s *CallStats) Record(mode string, d time.Duration, err error) {
	if s == nil {
		return
	}
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	outcome := OutcomeOf(err)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: ms,
		mode:       mode,
		outcome:    outcome,
	})
}

func (s *CallStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	snap := StatsSnapshot{ByMode: make(map[string]ModeCounts)}
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs

		mc := snap.ByMode[sm.mode]
		mc.Calls++
		switch sm.outcome {
		case OutcomeFailed:
			mc.Failures++
			snap.Failures++
		case OutcomeRateLimited:
			mc.RateLimited++
			snap.RateLimited++
		}
		snap.ByMode[sm.mode] = mc
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *CallStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.timestamp.Before(cutoff)
	})
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	index := float64(len(sorted)-1) * pct / 100.0
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*weight
}

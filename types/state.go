package types

import (
	"sync"
	"time"
)

// TransferLoopState is the per-direction bookkeeping a Transfer Loop
// keeps between passes (spec.md §4.9): whether a pass is currently
// in flight, whether the previous pass was, how many steps the
// current pass has completed, and a monotonically increasing serial
// used to correlate log lines and API responses with one pass.
type TransferLoopState struct {
	mu sync.Mutex

	IsInProgress          bool
	WasInProgress         bool
	StepsDone             int
	CurrentTransferSerial uint64

	LastStartedAt  time.Time
	LastFinishedAt time.Time
}

// Begin marks the loop as in progress and returns the serial assigned
// to this pass. Begin is a no-op (returns 0, false) if a pass is
// already in flight, enforcing the single-in-flight invariant.
func (s *TransferLoopState) Begin() (serial uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IsInProgress {
		return 0, false
	}
	s.IsInProgress = true
	s.StepsDone = 0
	s.CurrentTransferSerial++
	s.LastStartedAt = time.Now()
	return s.CurrentTransferSerial, true
}

// Step records that the pass in progress has completed one more step
// (scan, batch, verify, sign, submit).
func (s *TransferLoopState) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StepsDone++
}

// End marks the pass as finished.
func (s *TransferLoopState) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WasInProgress = s.IsInProgress
	s.IsInProgress = false
	s.LastFinishedAt = time.Now()
}

// Snapshot is a point-in-time copy safe to hand to the api package.
type Snapshot struct {
	IsInProgress          bool
	StepsDone             int
	CurrentTransferSerial uint64
	LastStartedAt         time.Time
	LastFinishedAt        time.Time
}

func (s *TransferLoopState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		IsInProgress:          s.IsInProgress,
		StepsDone:             s.StepsDone,
		CurrentTransferSerial: s.CurrentTransferSerial,
		LastStartedAt:         s.LastStartedAt,
		LastFinishedAt:        s.LastFinishedAt,
	}
}

const recentFailuresPerCategory = 20

// Failure is one recorded error-category occurrence (spec.md §3,
// error-category registry).
type Failure struct {
	Direction string
	Message   string
	At        time.Time
}

// ErrorRegistry is the process-wide bounded record of recent failures
// per category, read-only over the api package. It never grows
// past recentFailuresPerCategory entries per category: the oldest is
// dropped when a new one arrives, mirroring the teacher's StateMap
// size discipline without needing a TTL sweep goroutine.
type ErrorRegistry struct {
	mu         sync.Mutex
	categories map[string][]Failure
}

func NewErrorRegistry() *ErrorRegistry {
	return &ErrorRegistry{categories: map[string][]Failure{}}
}

func (r *ErrorRegistry) Record(category, direction string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append(r.categories[category], Failure{
		Direction: direction,
		Message:   err.Error(),
		At:        time.Now(),
	})
	if len(entries) > recentFailuresPerCategory {
		entries = entries[len(entries)-recentFailuresPerCategory:]
	}
	r.categories[category] = entries
}

// Clear removes every recorded failure for category, the
// registry-level equivalent of spec.md §3's "success clears the tag".
func (r *ErrorRegistry) Clear(category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.categories, category)
}

func (r *ErrorRegistry) Recent(category string) []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.categories[category]))
	copy(out, r.categories[category])
	return out
}

func (r *ErrorRegistry) Categories() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.categories))
	for k := range r.categories {
		out = append(out, k)
	}
	return out
}

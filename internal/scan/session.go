package scan

import (
	"time"

	"github.com/google/uuid"

	"github.com/akmust/portsweep/internal/probe"
)

// State represents the lifecycle position of a scan.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Session is the live aggregate owned by a Scanner. Workers never touch it:
// all mutation happens on the collector goroutine, one result at a time.
// Results are stored in completion order, which is not submission order.
type Session struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Completed  int
	Cancelled  bool
	Results    []probe.Result
}

func newSession(total int) *Session {
	return &Session{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Total:     total,
		Results:   make([]probe.Result, 0, total),
	}
}

// Duration returns the wall-clock time the scan ran for.
func (s *Session) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// CountByStatus returns how many results carry the given status.
func (s *Session) CountByStatus(status probe.Status) int {
	n := 0
	for i := range s.Results {
		if s.Results[i].Status == status {
			n++
		}
	}
	return n
}

// OpenResults returns the results whose port accepted the connection,
// in completion order.
func (s *Session) OpenResults() []probe.Result {
	open := make([]probe.Result, 0)
	for i := range s.Results {
		if s.Results[i].Status == probe.StatusOpen {
			open = append(open, s.Results[i])
		}
	}
	return open
}

package scan

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmust/portsweep/internal/errors"
	"github.com/akmust/portsweep/internal/probe"
)

func testConfig(addresses []string, ports []int) Config {
	return Config{
		Addresses:      addresses,
		Ports:          ports,
		Timeout:        time.Second,
		Concurrency:    4,
		BannerEnabled:  false,
		BannerMaxBytes: 512,
	}
}

// stubProbe replaces the network dial with a canned classification so
// coordinator behavior can be tested without sockets.
func stubProbe(status probe.Status) func(probe.ScanTask, probe.Options) probe.Result {
	return func(task probe.ScanTask, _ probe.Options) probe.Result {
		rtt := time.Millisecond
		res := probe.Result{
			Address:   task.Address,
			Port:      task.Port,
			Status:    status,
			Timestamp: time.Now(),
		}
		if status != probe.StatusError {
			res.RTT = &rtt
		}
		return res
	}
}

type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	names map[string]string
}

func (f *fakeResolver) Reverse(address string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, address)
	return f.names[address]
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no addresses", mutate: func(c *Config) { c.Addresses = nil }, wantErr: true},
		{name: "no ports", mutate: func(c *Config) { c.Ports = nil }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "negative concurrency", mutate: func(c *Config) { c.Concurrency = -1 }, wantErr: true},
		{name: "banner without budget", mutate: func(c *Config) {
			c.BannerEnabled = true
			c.BannerMaxBytes = 0
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig([]string{"10.0.0.1"}, []int{80})
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestRunCompletesAllTasks(t *testing.T) {
	addresses := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	ports := []int{22, 80, 443, 8080}

	s, err := New(testConfig(addresses, ports))
	require.NoError(t, err)
	s.probeFn = stubProbe(probe.StatusClosed)

	session, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, len(addresses)*len(ports), session.Total)
	assert.Equal(t, session.Total, session.Completed)
	assert.Len(t, session.Results, session.Total)
	assert.False(t, session.Cancelled)
	assert.Equal(t, StateCompleted, s.State())
	assert.False(t, session.FinishedAt.IsZero())

	// Every task appears exactly once in the results.
	seen := make(map[string]int)
	for _, res := range session.Results {
		seen[probe.ScanTask{Address: res.Address, Port: res.Port}.Addr()]++
	}
	assert.Len(t, seen, session.Total)
	for addr, n := range seen {
		assert.Equal(t, 1, n, "duplicate result for %s", addr)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const limit = 3

	cfg := testConfig([]string{"10.0.0.1", "10.0.0.2"}, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	cfg.Concurrency = limit

	s, err := New(cfg)
	require.NoError(t, err)

	var inFlight, peak atomic.Int64
	s.probeFn = func(task probe.ScanTask, _ probe.Options) probe.Result {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return probe.Result{Address: task.Address, Port: task.Port, Status: probe.StatusError}
	}

	session, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.Total, session.Completed)
	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Positive(t, peak.Load())
}

func TestRunWorkersNeverExceedTasks(t *testing.T) {
	cfg := testConfig([]string{"10.0.0.1"}, []int{80})
	cfg.Concurrency = 200

	s, err := New(cfg)
	require.NoError(t, err)

	var calls atomic.Int64
	s.probeFn = func(task probe.ScanTask, _ probe.Options) probe.Result {
		calls.Add(1)
		return probe.Result{Address: task.Address, Port: task.Port, Status: probe.StatusClosed}
	}

	session, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, session.Total)
	assert.Equal(t, int64(1), calls.Load())
}

func TestRunCancellationKeepsPartialResults(t *testing.T) {
	cfg := testConfig([]string{"10.0.0.1"}, make([]int, 0, 100))
	for p := 1; p <= 100; p++ {
		cfg.Ports = append(cfg.Ports, p)
	}
	cfg.Concurrency = 2

	s, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int64
	s.probeFn = func(task probe.ScanTask, _ probe.Options) probe.Result {
		if started.Add(1) == 5 {
			cancel()
		}
		time.Sleep(2 * time.Millisecond)
		return probe.Result{Address: task.Address, Port: task.Port, Status: probe.StatusClosed}
	}
	defer cancel()

	session, err := s.Run(ctx)
	require.NoError(t, err)

	assert.True(t, session.Cancelled)
	assert.Equal(t, StateCancelled, s.State())
	assert.Less(t, session.Completed, session.Total)
	// In-flight probes finish and their results are kept.
	assert.GreaterOrEqual(t, session.Completed, 5)
	assert.Len(t, session.Results, session.Completed)
}

func TestRunCancelledContextWithAllTasksDone(t *testing.T) {
	// Cancellation after the last task has completed is still a completed
	// scan: every result is in, nothing was cut short.
	s, err := New(testConfig([]string{"10.0.0.1"}, []int{80}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.probeFn = func(task probe.ScanTask, _ probe.Options) probe.Result {
		res := stubProbe(probe.StatusOpen)(task, probe.Options{})
		cancel()
		return res
	}

	session, err := s.Run(ctx)
	require.NoError(t, err)
	assert.False(t, session.Cancelled)
	assert.Equal(t, StateCompleted, s.State())
}

func TestRunRejectsSecondStart(t *testing.T) {
	s, err := New(testConfig([]string{"10.0.0.1"}, []int{80}))
	require.NoError(t, err)
	s.probeFn = stubProbe(probe.StatusClosed)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
}

func TestRunReverseDNSOnlyForOpen(t *testing.T) {
	cfg := testConfig([]string{"10.0.0.1", "10.0.0.2"}, []int{22, 80})
	cfg.ReverseDNSEnabled = true

	s, err := New(cfg)
	require.NoError(t, err)

	resolver := &fakeResolver{names: map[string]string{"10.0.0.1": "alpha.internal"}}
	s.SetResolver(resolver)
	s.probeFn = func(task probe.ScanTask, opts probe.Options) probe.Result {
		status := probe.StatusClosed
		if task.Address == "10.0.0.1" {
			status = probe.StatusOpen
		}
		return stubProbe(status)(task, opts)
	}

	session, err := s.Run(context.Background())
	require.NoError(t, err)

	// Only the two open results on 10.0.0.1 trigger a lookup.
	assert.Len(t, resolver.calls, 2)
	for _, res := range session.Results {
		if res.Status == probe.StatusOpen {
			assert.Equal(t, "alpha.internal", res.Hostname)
		} else {
			assert.Empty(t, res.Hostname)
		}
	}
}

func TestRunNoResolverLeavesHostnameEmpty(t *testing.T) {
	cfg := testConfig([]string{"10.0.0.1"}, []int{80})
	cfg.ReverseDNSEnabled = true

	s, err := New(cfg)
	require.NoError(t, err)
	s.probeFn = stubProbe(probe.StatusOpen)

	session, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, session.Results, 1)
	assert.Empty(t, session.Results[0].Hostname)
}

func TestRunProgressNotifications(t *testing.T) {
	cfg := testConfig([]string{"10.0.0.1"}, make([]int, 0, 40))
	for p := 1; p <= 40; p++ {
		cfg.Ports = append(cfg.Ports, p)
	}

	s, err := New(cfg)
	require.NoError(t, err)
	s.probeFn = func(task probe.ScanTask, opts probe.Options) probe.Result {
		status := probe.StatusClosed
		if task.Port == 22 {
			status = probe.StatusOpen
		}
		return stubProbe(status)(task, opts)
	}

	var updates []Progress
	s.OnProgress(func(p Progress) { updates = append(updates, p) })

	session, err := s.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, updates)
	// Every open result produces a notification.
	sawOpen := false
	for _, u := range updates {
		assert.Equal(t, session.Total, u.Total)
		assert.LessOrEqual(t, u.Completed, session.Total)
		if u.Last.Status == probe.StatusOpen {
			sawOpen = true
		}
	}
	assert.True(t, sawOpen)
	// The final result always notifies.
	assert.Equal(t, session.Total, updates[len(updates)-1].Completed)
}

func TestCrossProductOrder(t *testing.T) {
	tasks := crossProduct([]string{"a", "b"}, []int{1, 2, 3})
	want := []probe.ScanTask{
		{Address: "a", Port: 1}, {Address: "a", Port: 2}, {Address: "a", Port: 3},
		{Address: "b", Port: 1}, {Address: "b", Port: 2}, {Address: "b", Port: 3},
	}
	assert.Equal(t, want, tasks)
}

func TestSessionCounts(t *testing.T) {
	rtt := 5 * time.Millisecond
	session := newSession(3)
	session.Results = append(session.Results,
		probe.Result{Address: "a", Port: 1, Status: probe.StatusOpen, RTT: &rtt},
		probe.Result{Address: "a", Port: 2, Status: probe.StatusClosed, RTT: &rtt},
		probe.Result{Address: "a", Port: 3, Status: probe.StatusError},
	)
	session.Completed = 3

	assert.Equal(t, 1, session.CountByStatus(probe.StatusOpen))
	assert.Equal(t, 1, session.CountByStatus(probe.StatusClosed))
	assert.Equal(t, 1, session.CountByStatus(probe.StatusError))

	open := session.OpenResults()
	require.Len(t, open, 1)
	assert.Equal(t, 1, open[0].Port)

	assert.NotEqual(t, uuid.Nil, session.ID)
}

func TestSessionDuration(t *testing.T) {
	session := newSession(0)
	session.StartedAt = time.Now().Add(-time.Second)
	assert.Greater(t, session.Duration(), 900*time.Millisecond)

	session.FinishedAt = session.StartedAt.Add(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, session.Duration())
}

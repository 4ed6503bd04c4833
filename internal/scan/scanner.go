// Package scan implements the concurrent scan coordinator. It schedules the
// address x port cross-product across a bounded worker pool, collects results
// as they complete, reports progress, and drains cleanly on cancellation.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/akmust/portsweep/internal/errors"
	"github.com/akmust/portsweep/internal/logging"
	"github.com/akmust/portsweep/internal/metrics"
	"github.com/akmust/portsweep/internal/probe"
)

// Progress steps are emitted at roughly 5% intervals, and additionally
// whenever an open port turns up.
const progressSteps = 20

// Config describes one scan run. It is constructed before the scan starts
// and read-only for the scan's duration.
type Config struct {
	Addresses         []string
	Ports             []int
	Timeout           time.Duration
	Concurrency       int
	BannerEnabled     bool
	BannerMaxBytes    int
	ReverseDNSEnabled bool
}

// Validate checks the configuration before a scan may enter Running.
func (c *Config) Validate() error {
	if len(c.Addresses) == 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"at least one target address is required", "addresses", nil)
	}
	if len(c.Ports) == 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"at least one port is required", "ports", nil)
	}
	if c.Timeout <= 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"timeout must be positive", "timeout", c.Timeout)
	}
	if c.Concurrency <= 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"concurrency must be positive", "concurrency", c.Concurrency)
	}
	if c.BannerEnabled && c.BannerMaxBytes <= 0 {
		return errors.NewConfigFieldError(errors.CodeValidation,
			"banner max bytes must be positive", "banner_max_bytes", c.BannerMaxBytes)
	}
	return nil
}

// Progress is the notification emitted while a scan runs.
type Progress struct {
	Completed int
	Total     int
	Last      probe.Result
}

// HostResolver maps an address back to a name, best-effort.
type HostResolver interface {
	Reverse(address string) string
}

// Scanner coordinates one scan run from Idle through a terminal state.
type Scanner struct {
	cfg      Config
	resolver HostResolver
	logger   *logging.Logger
	metrics  *metrics.Metrics
	probeFn  func(probe.ScanTask, probe.Options) probe.Result

	mu         sync.Mutex
	state      State
	onProgress func(Progress)
}

// New creates a Scanner for the given configuration. The configuration is
// validated here; Run never fails on per-probe outcomes.
func New(cfg Config) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{
		cfg:     cfg,
		logger:  logging.Default().WithComponent("scanner"),
		metrics: metrics.GetGlobalMetrics(),
		probeFn: probe.Probe,
		state:   StateIdle,
	}, nil
}

// SetResolver installs the reverse resolver consulted for open results
// when reverse DNS is enabled.
func (s *Scanner) SetResolver(r HostResolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolver = r
}

// OnProgress registers the progress callback. It is invoked from the
// collector goroutine, one notification at a time.
func (s *Scanner) OnProgress(fn func(Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = fn
}

// State returns the scanner's current lifecycle state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scanner) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run executes the scan to a terminal state and returns the session.
// Cancelling ctx stops dispatch of new probes; in-flight probes finish
// naturally and their results are kept. Run returns an error only when the
// scanner has already been started.
func (s *Scanner) Run(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, errors.NewScanError(errors.CodeValidation, "scanner already started")
	}
	s.state = StateRunning
	resolver := s.resolver
	onProgress := s.onProgress
	s.mu.Unlock()

	tasks := crossProduct(s.cfg.Addresses, s.cfg.Ports)
	session := newSession(len(tasks))

	workers := s.cfg.Concurrency
	if workers > len(tasks) {
		workers = len(tasks)
	}

	logger := s.logger.WithSessionID(session.ID.String())
	logger.Info("Starting scan",
		"addresses", len(s.cfg.Addresses),
		"ports", len(s.cfg.Ports),
		"tasks", session.Total,
		"workers", workers,
		"timeout", s.cfg.Timeout)

	taskCh := make(chan probe.ScanTask, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	resultCh := make(chan probe.Result, workers)
	opts := probe.Options{
		Timeout:        s.cfg.Timeout,
		BannerEnabled:  s.cfg.BannerEnabled,
		BannerMaxBytes: s.cfg.BannerMaxBytes,
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, taskCh, resultCh, opts)
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Collector: the only goroutine that mutates the session.
	step := session.Total / progressSteps
	if step < 1 {
		step = 1
	}
	for res := range resultCh {
		if res.Status == probe.StatusOpen && s.cfg.ReverseDNSEnabled && resolver != nil {
			res.Hostname = resolver.Reverse(res.Address)
		}
		session.Results = append(session.Results, res)
		session.Completed++

		s.metrics.RecordProbe(string(res.Status), probeDuration(res, s.cfg.Timeout))
		logger.DebugProbe("Probe completed", res.Address, res.Port,
			"status", res.Status, "detail", res.ErrorDetail)

		if onProgress != nil &&
			(res.Status == probe.StatusOpen ||
				session.Completed%step == 0 ||
				session.Completed == session.Total) {
			onProgress(Progress{
				Completed: session.Completed,
				Total:     session.Total,
				Last:      res,
			})
		}
	}

	session.FinishedAt = time.Now()
	final := StateCompleted
	if ctx.Err() != nil && session.Completed < session.Total {
		final = StateCancelled
		session.Cancelled = true
	}
	s.setState(final)

	s.metrics.RecordScan(string(final), session.Duration())
	logger.Info("Scan finished",
		"state", final,
		"completed", session.Completed,
		"total", session.Total,
		"open", session.CountByStatus(probe.StatusOpen),
		"duration", session.Duration())

	return session, nil
}

// worker pulls tasks until the channel drains or the context is cancelled.
// A started probe always runs to completion; cancellation is only checked
// between tasks.
func (s *Scanner) worker(ctx context.Context, taskCh <-chan probe.ScanTask,
	resultCh chan<- probe.Result, opts probe.Options) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		task, ok := <-taskCh
		if !ok {
			return
		}
		s.metrics.ProbeStarted()
		res := s.probeFn(task, opts)
		s.metrics.ProbeFinished()
		resultCh <- res
	}
}

// crossProduct builds the full task set in address-major, port-minor order.
// This defines the deterministic submission order; completion order depends
// on per-probe latency.
func crossProduct(addresses []string, ports []int) []probe.ScanTask {
	tasks := make([]probe.ScanTask, 0, len(addresses)*len(ports))
	for _, addr := range addresses {
		for _, port := range ports {
			tasks = append(tasks, probe.ScanTask{Address: addr, Port: port})
		}
	}
	return tasks
}

// probeDuration picks the duration to record for a finished probe: the
// measured RTT when the attempt completed, the full timeout budget
// otherwise.
func probeDuration(res probe.Result, timeout time.Duration) time.Duration {
	if res.RTT != nil {
		return *res.RTT
	}
	return timeout
}

// Package connectivity decides whether the remote document store is reachable
// and reports online/offline transitions.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pinger is anything that can answer a cheap reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config controls the probe loop.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	// FailuresToOffline is how many consecutive failed probes mark the store offline.
	FailuresToOffline int
}

// DefaultConfig returns the probe settings used in production.
func DefaultConfig() Config {
	return Config{
		Interval:          10 * time.Second,
		Timeout:           3 * time.Second,
		FailuresToOffline: 2,
	}
}

// Monitor probes a Pinger and calls onChange on every transition.
// It starts online; one successful probe is enough to come back online.
type Monitor struct {
	pinger   Pinger
	cfg      Config
	onChange func(online bool)

	mu       sync.Mutex
	online   bool
	failures int
}

// NewMonitor creates a Monitor. Zero config fields take DefaultConfig values.
func NewMonitor(p Pinger, cfg Config, onChange func(online bool)) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailuresToOffline <= 0 {
		cfg.FailuresToOffline = def.FailuresToOffline
	}
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &Monitor{pinger: p, cfg: cfg, onChange: onChange, online: true}
}

// Online returns the current verdict.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Check runs one probe and returns the resulting verdict.
// POST: onChange has been called if the verdict changed
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	err := m.pinger.Ping(ctx)
	cancel()

	m.mu.Lock()
	was := m.online
	if err == nil {
		m.failures = 0
		m.online = true
	} else {
		m.failures++
		if m.failures >= m.cfg.FailuresToOffline {
			m.online = false
		}
	}
	now, failures := m.online, m.failures
	m.mu.Unlock()

	if err != nil {
		slog.Debug("connectivity_event", "event", "probe_failed", "failures", failures, "error", err)
	}
	if now != was {
		slog.Info("connectivity_event", "event", "changed", "online", now)
		m.onChange(now)
	}
	return now
}

// Start probes every Interval until ctx is done or the returned function is called.
// PRE: ctx is valid
// POST: Goroutine started
func (m *Monitor) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()

	return cancel
}

// Package monitor contains the health state machine and the tick loop
// that drives it.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vigilproject/vigil/pkg/clock"
	"github.com/vigilproject/vigil/pkg/notify"
	"github.com/vigilproject/vigil/pkg/probe"
)

// Config configures the monitor loop.
type Config struct {
	// Target is the monitored URL, used in logs and alert bodies.
	Target string

	// CheckInterval is the fixed probe cadence. Ticks fire at
	// start + n*interval; a slow check delays the next effective probe
	// instead of compounding drift.
	CheckInterval time.Duration

	// Threshold is how many consecutive failures open an incident.
	Threshold int

	// Clock is the time source. If nil, uses real time.
	Clock clock.Clock
}

// Monitor drives the probe cadence: one check per tick, fed into the
// tracker, with any resulting notification executed before the next
// tick's state mutation. Probing and notification are independent
// failure domains; a broken mail channel never stops monitoring.
type Monitor struct {
	cfg      Config
	prober   probe.Prober
	notifier notify.Notifier
	tracker  *Tracker
	clk      clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a monitor. The configuration is assumed validated.
func New(cfg Config, prober probe.Prober, notifier notify.Notifier, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Monitor{
		cfg:      cfg,
		prober:   prober,
		notifier: notifier,
		tracker:  NewTracker(cfg.Threshold, clk),
		clk:      clk,
		logger:   logger.With(slog.String("component", "monitor")),
	}
}

// Start begins probing in the background. The first check runs
// immediately; subsequent checks follow the configured cadence.
// Start is idempotent.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.started = true

	m.wg.Add(1)
	go m.loop(ctx)

	m.logger.Info("monitor started",
		slog.String("target", m.cfg.Target),
		slog.Duration("check_interval", m.cfg.CheckInterval),
		slog.Int("failure_threshold", m.cfg.Threshold),
	)
}

// Stop shuts the monitor down gracefully: the in-flight tick finishes,
// no new tick starts.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return
	}

	m.cancel()
	m.wg.Wait()
	m.started = false

	m.logger.Info("monitor stopped")
}

// State returns a copy of the current monitoring state.
func (m *Monitor) State() State {
	return m.tracker.State()
}

// Healthy reports whether the target is currently in a failure streak.
// It is true before the first probe completes.
func (m *Monitor) Healthy() bool {
	return m.tracker.State().ConsecutiveFailures == 0
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	// Stop cancels ctx to prevent new ticks from starting. A tick that
	// is already running must finish on its own terms: the probe and any
	// notification send carry their own timeouts, and aborting them here
	// would feed a spurious "context canceled" failure into the tracker.
	tickCtx := context.WithoutCancel(ctx)

	m.tick(tickCtx)

	ticker := m.clk.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			m.tick(tickCtx)
		}
	}
}

// tick runs one probe and handles its consequences. A tick never takes
// the process down: unexpected panics are logged and the loop continues,
// because a monitor that stops monitoring has failed at its one job.
func (m *Monitor) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("tick aborted by panic", slog.Any("panic", r))
		}
	}()

	result := m.prober.Check(ctx)
	action := m.tracker.Observe(result)
	state := m.tracker.State()

	if result.Healthy {
		m.logger.Info("probe succeeded",
			slog.Int("status", result.StatusCode),
			slog.Duration("latency", result.Latency),
		)
	} else {
		m.logger.Warn("probe failed",
			slog.Int("consecutive_failures", state.ConsecutiveFailures),
			slog.String("detail", result.Detail),
		)
	}

	switch action {
	case ActionAlertDown:
		m.logger.Error("incident opened",
			slog.String("incident_id", state.IncidentID),
			slog.Int("consecutive_failures", state.ConsecutiveFailures),
			slog.String("detail", result.Detail),
		)
		m.send(ctx, downEvent(state, m.cfg.Target, m.cfg.CheckInterval, result))

	case ActionAlertRecovered:
		m.logger.Info("incident resolved",
			slog.String("incident_id", state.IncidentID),
			slog.Duration("downtime", result.ObservedAt.Sub(state.IncidentStartedAt)),
		)
		m.send(ctx, recoveryEvent(state, m.cfg.Target, result))
	}
}

// send executes a notification action. Delivery failure is logged and
// swallowed: the incident state already reflects target health, and
// email is the very channel that is broken.
func (m *Monitor) send(ctx context.Context, event notify.Event) {
	if err := m.notifier.Notify(ctx, event); err != nil {
		m.logger.Error("notification delivery failed",
			slog.String("type", event.Type),
			slog.String("incident_id", event.IncidentID),
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Info("notification delivered",
		slog.String("type", event.Type),
		slog.String("incident_id", event.IncidentID),
	)
}

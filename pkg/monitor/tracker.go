package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigilproject/vigil/pkg/clock"
	"github.com/vigilproject/vigil/pkg/probe"
)

// Action is what the tracker asks the caller to do after an observation.
type Action int

const (
	// ActionNone means no notification is due.
	ActionNone Action = iota

	// ActionAlertDown means the failure threshold was just crossed and
	// the operator must be told the target is down.
	ActionAlertDown

	// ActionAlertRecovered means an open incident just closed and the
	// operator must be told the target recovered.
	ActionAlertRecovered
)

func (a Action) String() string {
	switch a {
	case ActionAlertDown:
		return "alert-down"
	case ActionAlertRecovered:
		return "alert-recovered"
	default:
		return "none"
	}
}

// State is the live monitoring state for the single target. The streak
// counters are mutually exclusive: at most one of them is non-zero.
type State struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int

	// IncidentOpen is true from the moment a down alert is due until
	// the first healthy probe afterwards. It reflects target health,
	// never notification delivery.
	IncidentOpen bool

	// IncidentID identifies the current incident, or the most recently
	// closed one. Empty until the first incident opens.
	IncidentID string

	// IncidentStartedAt is when the current (or most recent) incident's
	// threshold-crossing probe was observed.
	IncidentStartedAt time.Time

	// LastNotifiedAt is when the last notification action was emitted.
	LastNotifiedAt time.Time
}

// Tracker is the health state machine. It consumes one CheckResult per
// tick and decides when the operator must be notified. Observations are
// pure state transitions over already-normalized results; Observe is
// total and never fails.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	clk       clock.Clock
	state     State
}

// NewTracker creates a tracker that opens an incident after threshold
// consecutive failures.
func NewTracker(threshold int, clk clock.Clock) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Tracker{threshold: threshold, clk: clk}
}

// Observe feeds one probe result into the state machine and returns the
// action due for it. Alerts are edge-triggered: a down alert fires
// exactly once when the streak first reaches the threshold, a recovery
// alert exactly once on the first healthy result while an incident is
// open. Everything in between is ActionNone.
func (t *Tracker) Observe(result probe.CheckResult) Action {
	t.mu.Lock()
	defer t.mu.Unlock()

	if result.Healthy {
		t.state.ConsecutiveFailures = 0
		t.state.ConsecutiveSuccesses++

		if t.state.IncidentOpen {
			t.state.IncidentOpen = false
			t.state.LastNotifiedAt = t.clk.Now()
			return ActionAlertRecovered
		}
		return ActionNone
	}

	t.state.ConsecutiveSuccesses = 0
	t.state.ConsecutiveFailures++

	if t.state.ConsecutiveFailures == t.threshold && !t.state.IncidentOpen {
		t.state.IncidentOpen = true
		t.state.IncidentID = uuid.NewString()
		t.state.IncidentStartedAt = result.ObservedAt
		t.state.LastNotifiedAt = t.clk.Now()
		return ActionAlertDown
	}

	// Below threshold, or the incident was already announced.
	return ActionNone
}

// State returns a copy of the current monitoring state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

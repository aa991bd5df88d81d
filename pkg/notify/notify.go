// Package notify defines the notification contract for incident alerts.
package notify

import (
	"context"
	"time"
)

// Event types.
const (
	TypeDown      = "down"
	TypeRecovered = "recovered"
	TypeTest      = "test"
)

// Event is a rendered notification about an incident edge.
type Event struct {
	Type       string // down, recovered or test
	Target     string
	IncidentID string
	Subject    string
	Body       string
	Timestamp  time.Time
}

// Notifier delivers alerts when the monitored target changes state.
// Delivery failure is reported through the returned error; it must
// never panic and must never be interpreted as a probe failure.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

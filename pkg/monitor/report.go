package monitor

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/vigilproject/vigil/pkg/notify"
	"github.com/vigilproject/vigil/pkg/probe"
)

// reportData feeds the alert body templates.
type reportData struct {
	IncidentID    string
	Target        string
	CheckTime     string
	Failures      int
	CheckInterval string
	Detail        string
	Downtime      string
}

var downBody = template.Must(template.New("down").Parse(`The monitored target is failing its health checks.

Incident:             {{.IncidentID}}
Target:               {{.Target}}
Check time:           {{.CheckTime}}
Consecutive failures: {{.Failures}}
Check interval:       {{.CheckInterval}}

Error:
{{.Detail}}

Recommended actions:
  1. Confirm the target is reachable from a browser.
  2. Verify the server process is running and responding.
  3. Check network connectivity and DNS resolution.
  4. Review server logs for errors.
  5. Verify the TLS certificate if the target uses HTTPS.

Monitoring continues. A recovery notice will follow once the target
responds normally again.
`))

var recoveryBody = template.Must(template.New("recovery").Parse(`The monitored target is responding normally again.

Incident:     {{.IncidentID}}
Target:       {{.Target}}
Check time:   {{.CheckTime}}
Downtime:     {{.Downtime}}

Last check:
{{.Detail}}

No further action is needed. Monitoring continues.
`))

// downEvent renders the notification for a newly opened incident.
func downEvent(state State, target string, interval time.Duration, result probe.CheckResult) notify.Event {
	body := render(downBody, reportData{
		IncidentID:    state.IncidentID,
		Target:        target,
		CheckTime:     result.ObservedAt.Format(time.RFC3339),
		Failures:      state.ConsecutiveFailures,
		CheckInterval: interval.String(),
		Detail:        result.Detail,
	})
	return notify.Event{
		Type:       notify.TypeDown,
		Target:     target,
		IncidentID: state.IncidentID,
		Subject:    fmt.Sprintf("ALERT: %s is down", target),
		Body:       body,
		Timestamp:  result.ObservedAt,
	}
}

// recoveryEvent renders the notification for a just-closed incident.
func recoveryEvent(state State, target string, result probe.CheckResult) notify.Event {
	downtime := result.ObservedAt.Sub(state.IncidentStartedAt)
	body := render(recoveryBody, reportData{
		IncidentID: state.IncidentID,
		Target:     target,
		CheckTime:  result.ObservedAt.Format(time.RFC3339),
		Downtime:   downtime.Round(time.Second).String(),
		Detail:     result.Detail,
	})
	return notify.Event{
		Type:       notify.TypeRecovered,
		Target:     target,
		IncidentID: state.IncidentID,
		Subject:    fmt.Sprintf("RESOLVED: %s has recovered", target),
		Body:       body,
		Timestamp:  result.ObservedAt,
	}
}

func render(tmpl *template.Template, data reportData) string {
	var sb strings.Builder
	// The templates only reference fields that exist; execution cannot fail.
	_ = tmpl.Execute(&sb, data)
	return sb.String()
}

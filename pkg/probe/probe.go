// Package probe performs single health checks against the monitored target.
package probe

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/vigilproject/vigil/pkg/clock"
)

const userAgent = "vigil-heartbeat/1.0"

// CheckResult is the outcome of a single probe. It is immutable once
// produced and carries everything the state machine and the alert body
// need to know about the tick.
type CheckResult struct {
	Healthy    bool
	ObservedAt time.Time
	StatusCode int // 0 when no response was received
	Latency    time.Duration
	Detail     string // cause description for logs and alert bodies
}

// Prober performs one health check per call.
type Prober interface {
	Check(ctx context.Context) CheckResult
}

// HTTPProber probes a single URL with HTTP GET. Any response with a
// status below 400 received within the timeout counts as healthy;
// everything else (4xx/5xx, DNS failure, refused connection, TLS
// failure, timeout) is unhealthy. Network failures are never surfaced
// as errors; they become unhealthy results.
type HTTPProber struct {
	target  string
	timeout time.Duration
	client  *http.Client
	clk     clock.Clock
}

// NewHTTP creates a prober for the given target URL. A malformed target
// is the only fatal error; it is reported here, at construction, never
// per tick.
func NewHTTP(target string, timeout time.Duration, clk clock.Clock) (*HTTPProber, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if clk == nil {
		clk = clock.Real()
	}

	normalized, err := normalizeTarget(target)
	if err != nil {
		return nil, err
	}

	return &HTTPProber{
		target:  normalized,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		clk:     clk,
	}, nil
}

// Target returns the normalized target URL.
func (p *HTTPProber) Target() string {
	return p.target
}

// Check issues exactly one GET against the target. It never returns an
// error and never panics for ordinary network failures.
func (p *HTTPProber) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	observedAt := p.clk.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		// Target was validated at construction; anything here is unexpected.
		return CheckResult{
			ObservedAt: observedAt,
			Detail:     fmt.Sprintf("building request: %v", err),
		}
	}
	req.Header.Set("User-Agent", userAgent)

	start := p.clk.Now()
	resp, err := p.client.Do(req)
	latency := p.clk.Since(start)

	if err != nil {
		return CheckResult{
			ObservedAt: observedAt,
			Latency:    latency,
			Detail:     p.describeFailure(err),
		}
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return CheckResult{
			ObservedAt: observedAt,
			StatusCode: resp.StatusCode,
			Latency:    latency,
			Detail:     fmt.Sprintf("target returned status %d (%s)", resp.StatusCode, p.target),
		}
	}

	return CheckResult{
		Healthy:    true,
		ObservedAt: observedAt,
		StatusCode: resp.StatusCode,
		Latency:    latency,
		Detail:     fmt.Sprintf("status %d in %s", resp.StatusCode, latency.Round(time.Millisecond)),
	}
}

// describeFailure maps a transport error to an operator-readable cause,
// mirroring the distinctions the alert emails draw between timeout,
// DNS, refused connection and TLS problems.
func (p *HTTPProber) describeFailure(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("DNS resolution failed for %s: %v", p.target, dnsErr)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Sprintf("connection refused: %s is not accepting connections", p.target)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("request timed out after %s: %s did not respond in time", p.timeout, p.target)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("request timed out after %s: %s did not respond in time", p.timeout, p.target)
	}

	var certErr *x509.CertificateInvalidError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuthErr) || errors.As(err, &hostnameErr) {
		return fmt.Sprintf("TLS certificate verification failed for %s: %v", p.target, err)
	}

	return fmt.Sprintf("connection error reaching %s: %v", p.target, err)
}

// normalizeTarget validates the target URL, defaulting the scheme to
// http when none is given.
func normalizeTarget(target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("empty target URL")
	}
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target URL %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid target URL %q: scheme must be http or https", target)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid target URL %q: missing host", target)
	}

	return u.String(), nil
}

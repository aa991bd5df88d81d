package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
target: https://status.example.edu/
recipients:
  - ops@example.edu
  - oncall@example.edu
sender: monitor@example.com
check_interval: 300
timeout: 10
max_consecutive_failures: 3
notify:
  mode: gmail
  token_file: /var/lib/vigil/token.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Target != "https://status.example.edu/" {
		t.Errorf("target = %q", cfg.Target)
	}
	if len(cfg.Recipients) != 2 {
		t.Errorf("expected 2 recipients, got %d", len(cfg.Recipients))
	}
	if cfg.CheckInterval() != 5*time.Minute {
		t.Errorf("check interval = %v, want 5m", cfg.CheckInterval())
	}
	if cfg.Timeout() != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Timeout())
	}
	if cfg.MaxConsecutiveFailures != 3 {
		t.Errorf("max_consecutive_failures = %d, want 3", cfg.MaxConsecutiveFailures)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
target: https://example.com/
recipients: [ops@example.com]
sender: monitor@example.com
notify:
  token_file: token.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.CheckInterval() != 10*time.Minute {
		t.Errorf("default check interval = %v, want 10m", cfg.CheckInterval())
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", cfg.Timeout())
	}
	if cfg.MaxConsecutiveFailures != 2 {
		t.Errorf("default max_consecutive_failures = %d, want 2", cfg.MaxConsecutiveFailures)
	}
	if cfg.Notify.Mode != NotifyGmail {
		t.Errorf("default notify mode = %q, want gmail", cfg.Notify.Mode)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("default log config = %+v", cfg.Log)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing target",
			yaml: "recipients: [a@b.c]\nsender: s@b.c\nnotify: {mode: log}\n",
			want: "target is required",
		},
		{
			name: "bad scheme",
			yaml: "target: ftp://example.com\nrecipients: [a@b.c]\nsender: s@b.c\nnotify: {mode: log}\n",
			want: "scheme must be http or https",
		},
		{
			name: "no recipients",
			yaml: "target: https://example.com\nsender: s@b.c\nnotify: {mode: log}\n",
			want: "at least one recipient",
		},
		{
			name: "bad recipient",
			yaml: "target: https://example.com\nrecipients: [not-an-address]\nsender: s@b.c\nnotify: {mode: log}\n",
			want: "not an email address",
		},
		{
			name: "missing sender",
			yaml: "target: https://example.com\nrecipients: [a@b.c]\nnotify: {mode: log}\n",
			want: "sender is required",
		},
		{
			name: "timeout exceeds interval",
			yaml: "target: https://example.com\nrecipients: [a@b.c]\nsender: s@b.c\ncheck_interval: 10\ntimeout: 60\nnotify: {mode: log}\n",
			want: "cannot exceed check_interval",
		},
		{
			name: "negative threshold",
			yaml: "target: https://example.com\nrecipients: [a@b.c]\nsender: s@b.c\nmax_consecutive_failures: -1\nnotify: {mode: log}\n",
			want: "max_consecutive_failures",
		},
		{
			name: "gmail without token file",
			yaml: "target: https://example.com\nrecipients: [a@b.c]\nsender: s@b.c\nnotify: {mode: gmail}\n",
			want: "token_file is required",
		},
		{
			name: "unknown notify mode",
			yaml: "target: https://example.com\nrecipients: [a@b.c]\nsender: s@b.c\nnotify: {mode: pigeon}\n",
			want: "notify.mode",
		},
		{
			name: "unknown log level",
			yaml: "target: https://example.com\nrecipients: [a@b.c]\nsender: s@b.c\nnotify: {mode: log}\nlog: {level: loud}\n",
			want: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"runtime"
	"testing"
	"time"
)

func newTestChecker(timeout time.Duration) *Checker {
	return New(timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{name: "default timeout", timeout: 0, want: DefaultCheckTimeout},
		{name: "negative timeout", timeout: -time.Second, want: DefaultCheckTimeout},
		{name: "custom timeout", timeout: 10 * time.Second, want: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.timeout, nil)
			if c.timeout != tt.want {
				t.Errorf("timeout = %v, want %v", c.timeout, tt.want)
			}
			if len(c.Names()) != 0 {
				t.Errorf("expected no checks, got %v", c.Names())
			}
		})
	}
}

func TestChecker_RegisterUnregister(t *testing.T) {
	c := newTestChecker(time.Second)
	c.RegisterCheck("rules", func(context.Context) error { return nil })
	c.RegisterCheck("config", func(context.Context) error { return nil })
	c.RegisterCheck("rules", func(context.Context) error { return errors.New("replaced") })

	if got, want := c.Names(), []string{"config", "rules"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	if got := c.Readiness(context.Background()).Checks["rules"].Message; got != "replaced" {
		t.Errorf("expected replaced check to run, got message %q", got)
	}

	c.UnregisterCheck("rules")
	if got, want := c.Names(), []string{"config"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus Status
		wantChecks map[string]Status
	}{
		{
			name:       "no checks",
			wantStatus: StatusReady,
			wantChecks: map[string]Status{},
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"rules":  func(context.Context) error { return nil },
				"config": func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
			wantChecks: map[string]Status{"rules": StatusOK, "config": StatusOK},
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"rules":  func(context.Context) error { return errors.New("no rule set loaded") },
				"config": func(context.Context) error { return nil },
			},
			wantStatus: StatusDegraded,
			wantChecks: map[string]Status{"rules": StatusUnhealthy, "config": StatusOK},
		},
		{
			name: "timeout",
			checks: map[string]CheckFunc{
				"slow": func(ctx context.Context) error {
					<-ctx.Done()
					time.Sleep(10 * time.Millisecond)
					return nil
				},
			},
			wantStatus: StatusDegraded,
			wantChecks: map[string]Status{"slow": StatusUnhealthy},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChecker(50 * time.Millisecond)
			for name, fn := range tt.checks {
				c.RegisterCheck(name, fn)
			}

			report := c.Readiness(context.Background())
			if report.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", report.Status, tt.wantStatus)
			}
			if len(report.Checks) != len(tt.wantChecks) {
				t.Fatalf("got %d results, want %d", len(report.Checks), len(tt.wantChecks))
			}
			for name, want := range tt.wantChecks {
				if got := report.Checks[name].Status; got != want {
					t.Errorf("check %q status = %q, want %q", name, got, want)
				}
			}
			if report.Timestamp.IsZero() {
				t.Error("expected timestamp")
			}
		})
	}
}

func TestChecker_ReadinessTimeoutMessage(t *testing.T) {
	c := newTestChecker(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})

	got := c.Readiness(context.Background()).Checks["slow"]
	if got.Message != ErrCheckTimeout.Error() {
		t.Errorf("Message = %q, want %q", got.Message, ErrCheckTimeout.Error())
	}
}

func TestChecker_ReadinessCancelledContext(t *testing.T) {
	c := newTestChecker(time.Second)
	c.RegisterCheck("rules", func(ctx context.Context) error { return ctx.Err() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if report := c.Readiness(ctx); report.Ready() {
		t.Errorf("expected not ready with cancelled context, got %q", report.Status)
	}
}

func TestHandlers(t *testing.T) {
	healthy := newTestChecker(time.Second)
	healthy.RegisterCheck("rules", func(context.Context) error { return nil })
	failing := newTestChecker(time.Second)
	failing.RegisterCheck("rules", func(context.Context) error { return errors.New("no rule set loaded") })

	tests := []struct {
		name       string
		handler    http.Handler
		method     string
		wantCode   int
		wantStatus Status
		wantBody   bool
	}{
		{name: "liveness", handler: failing.LivenessHandler(), method: http.MethodGet, wantCode: http.StatusOK, wantStatus: StatusOK, wantBody: true},
		{name: "liveness head", handler: failing.LivenessHandler(), method: http.MethodHead, wantCode: http.StatusOK},
		{name: "liveness post", handler: failing.LivenessHandler(), method: http.MethodPost, wantCode: http.StatusMethodNotAllowed},
		{name: "ready", handler: healthy.ReadinessHandler(), method: http.MethodGet, wantCode: http.StatusOK, wantStatus: StatusReady, wantBody: true},
		{name: "not ready", handler: failing.ReadinessHandler(), method: http.MethodGet, wantCode: http.StatusServiceUnavailable, wantStatus: StatusDegraded, wantBody: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, httptest.NewRequest(tt.method, "/", nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if !tt.wantBody {
				if tt.method == http.MethodHead && rec.Body.Len() != 0 {
					t.Errorf("expected empty body for HEAD, got %q", rec.Body.String())
				}
				return
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var report Report
			if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
				t.Fatalf("failed to decode report: %v", err)
			}
			if report.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", report.Status, tt.wantStatus)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	Register(mux, newTestChecker(time.Second), VersionInfo{Version: "1.2.3", Commit: "abc123"})

	for _, path := range []string{LivenessPath, ReadinessPath, VersionPath} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, VersionPath, nil))
	var info VersionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to decode version: %v", err)
	}
	want := VersionInfo{Version: "1.2.3", Commit: "abc123", GoVersion: runtime.Version()}
	if info != want {
		t.Errorf("version = %+v, want %+v", info, want)
	}
}

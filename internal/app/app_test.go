package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FISCAL_YEAR_START_MONTH", "4")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AppAddr != ":8080" || cfg.PostingMaxAttempts != 3 || cfg.RateLimitPerMinute != 120 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Calendar().StartMonth != 4 {
		t.Fatalf("expected April fiscal year, got %v", cfg.Calendar().StartMonth)
	}
	opts := cfg.PostingOptions()
	if opts.MaxAttempts != 3 || opts.RoundingTolerance.String() != "1" {
		t.Fatalf("unexpected posting options %+v", opts)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("ROUNDING_TOLERANCE", "-0.5")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected negative tolerance to be rejected")
	}
	t.Setenv("ROUNDING_TOLERANCE", "0.05")
	t.Setenv("FISCAL_YEAR_START_MONTH", "13")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected month 13 to be rejected")
	}
}

func TestNewLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}
}

func TestActorMiddleware(t *testing.T) {
	var seen int64
	h := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/accounting/transactions", nil)
	req.Header.Set(ActorHeader, "42")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != 42 {
		t.Fatalf("expected actor 42, got %d", seen)
	}

	req = httptest.NewRequest(http.MethodPost, "/accounting/transactions", nil)
	req.Header.Set(ActorHeader, "abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed actor, got %d", rr.Code)
	}
}

func TestReadinessReportsDownDependencies(t *testing.T) {
	router := NewRouter(RouterParams{
		Logger: newLogger(nil, &bytes.Buffer{}),
		Config: &Config{},
		Checks: map[string]Pinger{
			"postgres": PingFunc(func(context.Context) error { return nil }),
			"redis":    PingFunc(func(context.Context) error { return errors.New("refused") }),
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"redis":"down"`) || !strings.Contains(rr.Body.String(), `"postgres":"up"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/writeuptracker/internal/model"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    2,
		IngestRate:      rate.Limit(0.1),
		IngestBurst:     1,
		CleanupInterval: time.Hour,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doAs(handler http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/writeups/sync", nil)
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestGeneralMiddleware_LimitsPerUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		if w := doAs(handler, "user-a"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := doAs(handler, "user-a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want %q", got, "1")
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}

	// 他ユーザーは独立
	if w := doAs(handler, "user-b"); w.Code != http.StatusOK {
		t.Errorf("user-b status = %d, want 200", w.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestIngestMiddleware_IndependentOfGeneral(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	ingest := rl.IngestMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	if w := doAs(ingest, "user-a"); w.Code != http.StatusOK {
		t.Fatalf("first ingest status = %d, want 200", w.Code)
	}
	w := doAs(ingest, "user-a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second ingest status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "10" {
		t.Errorf("Retry-After = %q, want %q", got, "10")
	}

	if w := doAs(general, "user-a"); w.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200", w.Code)
	}
	if rl.IngestLimiterCount() != 1 {
		t.Errorf("IngestLimiterCount = %d, want 1", rl.IngestLimiterCount())
	}
}

func TestRateLimiter_RequiresUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	if w := doAs(rl.GeneralMiddleware()(okHandler()), ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	cfg := testRateLimiterConfig()
	cfg.CleanupInterval = time.Millisecond
	rl := NewRateLimiter(cfg)
	rl.Stop()

	doAs(rl.GeneralMiddleware()(okHandler()), "user-a")
	doAs(rl.IngestMiddleware()(okHandler()), "user-a")

	time.Sleep(5 * time.Millisecond)
	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 || rl.IngestLimiterCount() != 0 {
		t.Errorf("expected idle entries to be evicted, got %d / %d",
			rl.GeneralLimiterCount(), rl.IngestLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()
	if cfg.GeneralRate != rate.Limit(2) || cfg.GeneralBurst != 120 {
		t.Errorf("unexpected general config: %v / %d", cfg.GeneralRate, cfg.GeneralBurst)
	}
	if cfg.IngestRate != rate.Limit(0.1) || cfg.IngestBurst != 1 {
		t.Errorf("unexpected ingest config: %v / %d", cfg.IngestRate, cfg.IngestBurst)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFn := KeyByUserOrIP()

	// Username in context wins.
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(usernameKey, "admin")
	if got := keyFn(c); got != "user:admin" {
		t.Fatalf("key = %q, want user:admin", got)
	}

	// No username -> IP fallback.
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.RemoteAddr = "203.0.113.7:1234"
	if got := keyFn(c2); got != "ip:203.0.113.7" {
		t.Fatalf("key = %q, want ip:203.0.113.7", got)
	}

	// Empty username value is ignored.
	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c3.Request.RemoteAddr = "203.0.113.8:1234"
	c3.Set(usernameKey, "")
	if got := keyFn(c3); got != "ip:203.0.113.8" {
		t.Fatalf("key = %q, want ip fallback for empty username", got)
	}
}

func TestRateLimiter_AllowThenDeny(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// burst 2, essentially no refill within the test window
	rl := NewRateLimiter(0.0001, 2, KeyByUserOrIP())

	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	do := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.RemoteAddr = "198.51.100.1:5555"
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := do(); got != http.StatusOK {
		t.Fatalf("request 1 -> %d, want 200", got)
	}
	if got := do(); got != http.StatusOK {
		t.Fatalf("request 2 -> %d, want 200", got)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.RemoteAddr = "198.51.100.1:5555"
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request 3 -> %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("429 missing Retry-After")
	}
}

func TestRateLimiter_IndependentBucketsPerKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(0.0001, 1, KeyByUserOrIP())
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	do := func(addr string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.RemoteAddr = addr
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := do("198.51.100.1:1"); got != http.StatusOK {
		t.Fatalf("first ip first request -> %d", got)
	}
	if got := do("198.51.100.1:1"); got != http.StatusTooManyRequests {
		t.Fatalf("first ip second request -> %d, want 429", got)
	}
	// A different client still has its own full bucket.
	if got := do("198.51.100.2:1"); got != http.StatusOK {
		t.Fatalf("second ip first request -> %d, want 200", got)
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.ttl = time.Millisecond

	rl.getVisitor("ip:old")
	time.Sleep(5 * time.Millisecond)

	// Force the opportunistic GC threshold.
	rl.mu.Lock()
	rl.cleanupN = 4999
	rl.mu.Unlock()
	rl.getVisitor("ip:new")

	rl.mu.Lock()
	_, oldAlive := rl.visitors["ip:old"]
	_, newAlive := rl.visitors["ip:new"]
	rl.mu.Unlock()

	if oldAlive {
		t.Fatalf("idle bucket survived GC")
	}
	if !newAlive {
		t.Fatalf("fresh bucket evicted")
	}
}

func TestNewRateLimiter_CoercesBurst(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d, want coerced to 1", rl.burst)
	}
}

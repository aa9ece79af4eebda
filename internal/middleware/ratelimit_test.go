package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowAndDeny(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiterWithNow(2, time.Minute, func() time.Time { return clock })

	if !rl.Allow("ip") || !rl.Allow("ip") {
		t.Fatalf("expected first two requests allowed")
	}
	if rl.Allow("ip") {
		t.Fatalf("expected third request denied")
	}
	// Other keys keep their own window.
	if !rl.Allow("other") {
		t.Fatalf("expected unrelated key allowed")
	}

	clock = clock.Add(time.Minute + time.Second)
	if !rl.Allow("ip") {
		t.Fatalf("expected allow after window reset")
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiterWithNow(1, time.Minute, func() time.Time { return clock })

	r := gin.New()
	r.POST("/auth/resend-otp", RateLimit(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() int {
		req := httptest.NewRequest(http.MethodPost, "/auth/resend-otp", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := hit(); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := hit(); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
}

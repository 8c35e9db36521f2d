package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLimiterAllowsBurstThenRefills(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(10, 15*time.Second, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("alice"), "request %d", i)
	}
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"), "keys are independent")

	clock.Advance(1500 * time.Millisecond)
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))

	clock.Advance(15 * time.Second)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow("alice"), "refilled request %d", i)
	}
}

func TestLimiterCleanupDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(10, 15*time.Second, WithClock(clock.Now), WithIdleTTL(time.Minute))

	l.Allow("alice")
	clock.Advance(30 * time.Second)
	l.Allow("bob")
	clock.Advance(45 * time.Second)

	l.cleanup()
	assert.Equal(t, 1, l.Len())
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(2, time.Minute, WithClock(clock.Now))

	limited := 0
	r := gin.New()
	r.POST("/", l.Middleware(func() { limited++ }), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, limited)
}

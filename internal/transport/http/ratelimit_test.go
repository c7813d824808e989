// Copyright 2026 The FleetDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

// TestPurpose: Validates the fixed-window admission sequence at cap 3 over a 1000ms window.
// Scope: Unit Test
// Expected: Three requests admitted with decreasing remaining, the fourth rejected, admission resumes after the window elapses.
// Test Case ID: RL-01
func TestRateLimiter_FixedWindowSequence(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(1000*time.Millisecond, 3, WithClock(clock.now))

	r1 := rl.Check("1.2.3.4")
	assert.True(t, r1.Allowed)
	assert.Equal(t, 2, r1.Remaining)

	r2 := rl.Check("1.2.3.4")
	assert.True(t, r2.Allowed)
	assert.Equal(t, 1, r2.Remaining)

	r3 := rl.Check("1.2.3.4")
	assert.True(t, r3.Allowed)
	assert.Equal(t, 0, r3.Remaining)

	r4 := rl.Check("1.2.3.4")
	assert.False(t, r4.Allowed)
	assert.Equal(t, 0, r4.Remaining)
	assert.Equal(t, r1.ResetAt, r4.ResetAt)

	clock.advance(1001 * time.Millisecond)
	r5 := rl.Check("1.2.3.4")
	assert.True(t, r5.Allowed)
	assert.Equal(t, 2, r5.Remaining)
	assert.True(t, r5.ResetAt.After(r1.ResetAt))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(time.Minute, 1, WithClock(clock.now))

	assert.True(t, rl.Check("1.1.1.1").Allowed)
	assert.False(t, rl.Check("1.1.1.1").Allowed)
	assert.True(t, rl.Check("2.2.2.2").Allowed)
}

func TestRateLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(time.Second, 5, WithClock(clock.now))

	rl.Check("1.1.1.1")
	rl.Check("2.2.2.2")
	require.Len(t, rl.entries, 2)

	clock.advance(2 * time.Second)
	rl.Check("3.3.3.3")
	rl.Sweep()

	assert.Len(t, rl.entries, 1)
	assert.Contains(t, rl.entries, "3.3.3.3")
}

// TestPurpose: Validates the middleware surface of a rejection: 429, Retry-After, and remaining header.
// Scope: Unit Test
// Expected: Over-cap requests get 429 with a positive Retry-After; admitted ones pass through.
// Test Case ID: RL-02
func TestRateLimitMiddleware(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(time.Minute, 1, WithClock(clock.now))

	handler := RateLimitMiddleware(rl, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/work-schedule", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}

// clientKey falls back to a single shared bucket when no forwarding
// headers are present; all direct clients share its fate.
func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "unknown", clientKey(r))

	r.Header.Set("X-Real-IP", "5.5.5.5")
	assert.Equal(t, "5.5.5.5", clientKey(r))

	r.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2")
	assert.Equal(t, "1.1.1.1", clientKey(r))
}

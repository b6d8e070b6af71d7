package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestAllow(t *testing.T) {
	tests := []struct {
		name     string
		burst    int
		calls    int
		wantPass int
	}{
		{"burst allows initial requests", 3, 3, 3},
		{"exceeding burst blocks", 2, 5, 2},
		{"single token", 1, 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClock()
			l := New(1, tt.burst, WithClock(clock))
			defer l.Stop()

			passed := 0
			for range tt.calls {
				if l.Allow("10.0.0.1") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := New(1, 1, WithClock(clockwork.NewFakeClock()))
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestAllow_RefillsOverTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(1, 1, WithClock(clock))
	defer l.Stop()

	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))

	clock.Advance(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestEvict(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(1, 1, WithClock(clock), WithIdleTTL(time.Minute), WithSweepInterval(24*time.Hour))
	defer l.Stop()

	l.Allow("old")
	clock.Advance(45 * time.Second)
	l.Allow("fresh")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Evict())
	assert.Equal(t, 1, l.Len())
}

func TestWait_ContextCanceled(t *testing.T) {
	l := New(0.001, 1)
	defer l.Stop()

	require.NoError(t, l.Wait(context.Background(), "k"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}

func TestStop_NoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := New(1, 1)
	l.Stop()
	l.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/login", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/api/apitest"
	"github.com/bringyour/byctl/internal/cache"
	"github.com/bringyour/byctl/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	// Verify that backoff never exceeds maxBackoff regardless of input
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func startTestPoller(t *testing.T, srv *apitest.Server, clock clockwork.Clock, opts ...PollerOption) (*Poller, *state.Store) {
	t.Helper()
	store := &state.Store{}
	opts = append([]PollerOption{WithClock(clock), WithLogger(quietLogger())}, opts...)
	p := StartPoller(testContext(t), store, srv.Client(t), 2*time.Second, opts...)
	t.Cleanup(p.Stop)
	return p, store
}

func TestPoller_FirstRefreshIsImmediate(t *testing.T) {
	srv := apitest.New(t)
	laptop := srv.NewDevice("laptop", api.ProvideModePublic)
	srv.SetProviders(api.Provider{ClientID: laptop.ClientID, Connected: true, UptimeLast24h: 12})

	_, store := startTestPoller(t, srv, clockwork.NewFakeClock())

	require.Eventually(t, func() bool { return store.Snapshot().HasDevices }, 2*time.Second, 10*time.Millisecond)
	snap := store.Snapshot()
	require.Len(t, snap.Devices, 1)
	assert.Equal(t, laptop.ClientID, snap.Devices[0].ClientID)
	p, ok := snap.Provider(laptop.ClientID)
	require.True(t, ok)
	assert.InDelta(t, 12.0, p.UptimeLast24h, 0.001)
}

func TestPoller_BacksOffWhileFailing(t *testing.T) {
	ctx := testContext(t)
	srv := apitest.New(t)
	srv.NewDevice("laptop", api.ProvideModePublic)
	srv.FailNext("/network/clients", http.StatusBadGateway)
	srv.FailNext("/network/clients", http.StatusBadGateway)

	clock := clockwork.NewFakeClock()
	_, store := startTestPoller(t, srv, clock)

	require.Eventually(t, func() bool { return store.Snapshot().ConsecutiveFailures == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	// One failure doubles the 2s interval.
	clock.Advance(3 * time.Second)
	assert.Equal(t, 1, srv.Calls("/network/clients"))
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return store.Snapshot().ConsecutiveFailures == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, store.Snapshot().IsOffline())

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(8 * time.Second)
	require.Eventually(t, func() bool { return store.Snapshot().HasDevices }, 2*time.Second, 10*time.Millisecond)

	snap := store.Snapshot()
	assert.Zero(t, snap.ConsecutiveFailures)
	assert.NoError(t, snap.LastError)
	assert.Equal(t, 3, srv.Calls("/network/clients"))
}

func TestPoller_KickRefreshesEarly(t *testing.T) {
	ctx := testContext(t)
	srv := apitest.New(t)
	srv.NewDevice("laptop", api.ProvideModePublic)

	clock := clockwork.NewFakeClock()
	p, store := startTestPoller(t, srv, clock)
	require.Eventually(t, func() bool { return store.Snapshot().HasDevices }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	srv.NewDevice("phone", api.ProvideModeFriendsAndFamily)
	p.Kick()
	p.Kick() // coalesced

	require.Eventually(t, func() bool { return len(store.Snapshot().Devices) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestPoller_SavesDevicesToCache(t *testing.T) {
	ctx := testContext(t)
	srv := apitest.New(t)
	laptop := srv.NewDevice("laptop", api.ProvideModePublic)

	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, store := startTestPoller(t, srv, clockwork.NewFakeClock(), WithCache(c))
	require.Eventually(t, func() bool { return store.Snapshot().HasDevices }, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		entry, err := c.LoadDevices(ctx)
		return err == nil && entry.HasEntry
	}, 2*time.Second, 10*time.Millisecond)

	entry, err := c.LoadDevices(ctx)
	require.NoError(t, err)
	require.Len(t, entry.Devices, 1)
	assert.Equal(t, laptop.ClientID, entry.Devices[0].ClientID)
}

func TestPoller_FailureKeepsLastDevices(t *testing.T) {
	ctx := testContext(t)
	srv := apitest.New(t)
	srv.NewDevice("laptop", api.ProvideModePublic)

	clock := clockwork.NewFakeClock()
	_, store := startTestPoller(t, srv, clock)
	require.Eventually(t, func() bool { return store.Snapshot().HasDevices }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	srv.FailNext("/stats/providers", http.StatusInternalServerError)
	clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return store.Snapshot().LastError != nil }, 2*time.Second, 10*time.Millisecond)

	snap := store.Snapshot()
	assert.Len(t, snap.Devices, 1)
	assert.True(t, api.IsKind(snap.LastError, api.KindHTTP))
}

func TestPoller_StopWaitsForExit(t *testing.T) {
	srv := apitest.New(t)
	store := &state.Store{}
	p := StartPoller(context.Background(), store, srv.Client(t), 0, WithClock(clockwork.NewFakeClock()), WithLogger(quietLogger()))

	p.Stop()
	select {
	case <-p.Done():
	default:
		t.Fatal("poller still running after Stop")
	}
	p.Stop() // idempotent
}

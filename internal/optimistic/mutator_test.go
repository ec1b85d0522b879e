package optimistic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type device struct {
	ClientID    string
	Name        string
	ProvideMode int
}

func seededStore() *MapStore[string, device] {
	return NewMapStore(map[string]device{
		"d1": {ClientID: "d1", Name: "laptop", ProvideMode: 2},
		"d2": {ClientID: "d2", Name: "phone", ProvideMode: 2},
	})
}

func setMode(mode int) func(device) device {
	return func(d device) device {
		d.ProvideMode = mode
		return d
	}
}

// gatedRemote blocks until release is closed and then returns result/err.
type gatedRemote struct {
	release chan struct{}
	result  device
	err     error
}

func newGatedRemote(result device, err error) *gatedRemote {
	return &gatedRemote{release: make(chan struct{}), result: result, err: err}
}

func (g *gatedRemote) call(ctx context.Context) (device, error) {
	<-g.release
	return g.result, g.err
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestMutator_ToggleSuccessConfirmsServerValue(t *testing.T) {
	ctx := waitCtx(t)
	store := seededStore()
	m := New[string, device](store)
	remote := newGatedRemote(device{ClientID: "d1", Name: "laptop", ProvideMode: 3}, nil)

	mut, err := m.Start(ctx, Change[string, device]{Target: "d1", Propose: setMode(3), Remote: remote.call})
	require.NoError(t, err)

	got, _ := store.Get("d1")
	assert.Equal(t, 3, got.ProvideMode, "proposed value must be visible before the remote call settles")
	assert.Equal(t, 2, mut.Prior().ProvideMode)
	assert.Equal(t, 3, mut.Proposed().ProvideMode)
	assert.Equal(t, 1, store.InFlight("d1"))

	close(remote.release)
	value, err := mut.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, value.ProvideMode)

	got, _ = store.Get("d1")
	assert.Equal(t, 3, got.ProvideMode)
	assert.Equal(t, 0, store.InFlight("d1"))
}

func TestMutator_ServerValueWinsOverProposal(t *testing.T) {
	ctx := waitCtx(t)
	store := seededStore()
	m := New[string, device](store)

	value, err := m.Apply(ctx, Change[string, device]{
		Target:  "d1",
		Propose: setMode(3),
		Remote: func(context.Context) (device, error) {
			return device{ClientID: "d1", Name: "laptop", ProvideMode: 1}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, value.ProvideMode)

	got, _ := store.Get("d1")
	assert.Equal(t, 1, got.ProvideMode)
}

func TestMutator_ToggleFailureRollsBack(t *testing.T) {
	ctx := waitCtx(t)
	store := seededStore()
	before, _ := store.Get("d1")
	m := New[string, device](store)
	boom := errors.New("set provide failed")
	remote := newGatedRemote(device{}, boom)

	mut, err := m.Start(ctx, Change[string, device]{Target: "d1", Propose: setMode(3), Remote: remote.call})
	require.NoError(t, err)

	got, _ := store.Get("d1")
	assert.Equal(t, 3, got.ProvideMode)

	close(remote.release)
	_, err = mut.Wait(ctx)
	require.ErrorIs(t, err, boom)

	var rb *RollbackError
	require.ErrorAs(t, err, &rb)
	assert.Equal(t, "d1", rb.Target)
	assert.Equal(t, mut.ID(), rb.MutationID)

	got, _ = store.Get("d1")
	assert.Equal(t, before, got, "rollback must restore the prior value field for field")
	assert.Equal(t, 0, store.InFlight("d1"))
}

func TestMutator_PanickingRemoteRollsBack(t *testing.T) {
	ctx := waitCtx(t)
	store := seededStore()
	m := New[string, device](store)

	_, err := m.Apply(ctx, Change[string, device]{
		Target:  "d2",
		Propose: setMode(0),
		Remote:  func(context.Context) (device, error) { panic("bad payload") },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	got, _ := store.Get("d2")
	assert.Equal(t, 2, got.ProvideMode)
}

func TestMutator_ConcurrentTargetsAreIsolated(t *testing.T) {
	ctx := waitCtx(t)
	store := seededStore()
	m := New[string, device](store)

	remoteA := newGatedRemote(device{}, errors.New("a failed"))
	remoteB := newGatedRemote(device{ClientID: "d2", Name: "phone", ProvideMode: 3}, nil)

	mutA, err := m.Start(ctx, Change[string, device]{Target: "d1", Propose: setMode(3), Remote: remoteA.call})
	require.NoError(t, err)
	mutB, err := m.Start(ctx, Change[string, device]{Target: "d2", Propose: setMode(3), Remote: remoteB.call})
	require.NoError(t, err)

	// B settles first, then A fails; A's rollback must not disturb B.
	close(remoteB.release)
	_, err = mutB.Wait(ctx)
	require.NoError(t, err)

	close(remoteA.release)
	_, err = mutA.Wait(ctx)
	require.Error(t, err)

	a, _ := store.Get("d1")
	b, _ := store.Get("d2")
	assert.Equal(t, device{ClientID: "d1", Name: "laptop", ProvideMode: 2}, a)
	assert.Equal(t, device{ClientID: "d2", Name: "phone", ProvideMode: 3}, b)
}

func TestMutator_UnknownTargetFailsWithoutWriting(t *testing.T) {
	ctx := waitCtx(t)
	store := seededStore()
	before := store.Snapshot()
	m := New[string, device](store)

	var called atomic.Bool
	_, err := m.Start(ctx, Change[string, device]{
		Target:  "missing",
		Propose: setMode(3),
		Remote: func(context.Context) (device, error) {
			called.Store(true)
			return device{}, nil
		},
	})
	require.ErrorIs(t, err, ErrUnknownTarget)
	assert.False(t, called.Load())
	assert.Equal(t, before, store.Snapshot())
}

func TestMutator_InvalidChange(t *testing.T) {
	m := New[string, device](seededStore())
	_, err := m.Start(context.Background(), Change[string, device]{Target: "d1", Propose: setMode(3)})
	require.ErrorIs(t, err, ErrInvalidChange)
}

// countingStore records every write that reaches the wrapped store.
type countingStore struct {
	*MapStore[string, device]
	mu      sync.Mutex
	swaps   int
	settles int
}

func (c *countingStore) Swap(key string, fn func(device) device) (device, error) {
	c.mu.Lock()
	c.swaps++
	c.mu.Unlock()
	return c.MapStore.Swap(key, fn)
}

func (c *countingStore) Settle(key string, v device) {
	c.mu.Lock()
	c.settles++
	c.mu.Unlock()
	c.MapStore.Settle(key, v)
}

func TestMutator_ExactlyOneWritePerPhase(t *testing.T) {
	ctx := waitCtx(t)
	for _, fail := range []bool{false, true} {
		store := &countingStore{MapStore: seededStore()}
		m := New[string, device](store)

		_, _ = m.Apply(ctx, Change[string, device]{
			Target:  "d1",
			Propose: setMode(3),
			Remote: func(context.Context) (device, error) {
				if fail {
					return device{}, errors.New("nope")
				}
				return device{ClientID: "d1", ProvideMode: 3}, nil
			},
		})

		assert.Equal(t, 1, store.swaps, "fail=%v", fail)
		assert.Equal(t, 1, store.settles, "fail=%v", fail)
	}
}

func TestMutation_WaitHonoursContext(t *testing.T) {
	store := seededStore()
	m := New[string, device](store)
	remote := newGatedRemote(device{ClientID: "d1", ProvideMode: 3}, nil)

	mut, err := m.Start(context.Background(), Change[string, device]{Target: "d1", Propose: setMode(3), Remote: remote.call})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = mut.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The mutation still settles after the abandoned wait.
	close(remote.release)
	<-mut.Done()
	got, _ := store.Get("d1")
	assert.Equal(t, 3, got.ProvideMode)
}

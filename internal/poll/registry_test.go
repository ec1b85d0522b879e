package poll

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CancelUnknownSession(t *testing.T) {
	r := NewRegistry()
	err := r.Cancel("does-not-exist")
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestRegistry_TracksAndCancels(t *testing.T) {
	ctx := testContext(t)
	clock := clockwork.NewFakeClock()
	r := NewRegistry()

	a := Start(context.Background(), func(context.Context) (Result[int], error) {
		return Waiting[int](), nil
	}, WithClock(clock), WithRegistry(r), WithName("share"))
	b := Start(context.Background(), func(context.Context) (Result[int], error) {
		return Waiting[int](), nil
	}, WithClock(clock), WithRegistry(r), WithName("adopt"))

	require.NoError(t, clock.BlockUntilContext(ctx, 2))
	assert.Equal(t, 2, r.Active())

	h, ok := r.Get(a.ID())
	require.True(t, ok)
	assert.Equal(t, a.ID(), h.ID())

	require.NoError(t, r.Cancel(a.ID()))
	<-a.Done()
	assert.Equal(t, StateCancelled, a.State())
	assert.Equal(t, 1, r.Active())

	// Cancelling a terminal but known session is fine.
	require.NoError(t, r.Cancel(a.ID()))

	r.CancelAll()
	<-b.Done()
	assert.Equal(t, 0, r.Active())

	assert.Equal(t, 2, r.Prune())
	assert.ErrorIs(t, r.Cancel(a.ID()), ErrUnknownSession)
}

func TestRegistry_ZeroValueUsable(t *testing.T) {
	ctx := testContext(t)
	var r Registry
	s := Start(context.Background(), func(context.Context) (Result[string], error) {
		return Ready("ok"), nil
	}, WithRegistry(&r))

	got, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 0, r.Active())
	_, ok := r.Get(s.ID())
	assert.True(t, ok)
}

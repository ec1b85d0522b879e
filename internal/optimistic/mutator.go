package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var (
	// ErrUnknownTarget is returned when the store has no value for a change's target.
	ErrUnknownTarget = errors.New("optimistic: unknown target")
	// ErrInvalidChange is returned for a change missing its propose or remote function.
	ErrInvalidChange = errors.New("optimistic: invalid change")
)

// Store is the local state a Mutator writes to.
type Store[K comparable, V any] interface {
	// Swap replaces the value for key with fn(current) in one step and returns
	// the value it replaced. It fails with ErrUnknownTarget when key is absent.
	Swap(key K, fn func(V) V) (prior V, err error)
	// Settle writes the final value for key once the remote call returned.
	Settle(key K, v V)
}

// Change describes one speculative update of Target.
type Change[K comparable, V any] struct {
	Target K
	// Propose derives the local value from the current one. It runs inside the
	// store's critical section and must not block or mutate shared slices/maps
	// of prior.
	Propose func(prior V) V
	// Remote performs the change server side and returns the authoritative value.
	Remote func(ctx context.Context) (V, error)
}

// RollbackError reports a failed remote call whose local change was undone.
type RollbackError struct {
	MutationID string
	Target     string
	Err        error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("change to %s rolled back: %v", e.Target, e.Err)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// Mutation is an applied change waiting for its remote call.
type Mutation[K comparable, V any] struct {
	id       string
	target   K
	prior    V
	proposed V

	done  chan struct{}
	value V
	err   error
}

// ID identifies the mutation in logs.
func (m *Mutation[K, V]) ID() string { return m.id }

// Target returns the key the mutation changed.
func (m *Mutation[K, V]) Target() K { return m.target }

// Prior returns the value captured before the local write.
func (m *Mutation[K, V]) Prior() V { return m.prior }

// Proposed returns the value written locally.
func (m *Mutation[K, V]) Proposed() V { return m.proposed }

// Done is closed once the mutation settled.
func (m *Mutation[K, V]) Done() <-chan struct{} { return m.done }

// Wait blocks until the mutation settles or ctx is done. A mutation keeps
// settling after ctx ends; only the wait is abandoned.
func (m *Mutation[K, V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-m.done:
		return m.value, m.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Option configures a Mutator.
type Option func(*mutatorOptions)

type mutatorOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for settle events.
func WithLogger(l *slog.Logger) Option {
	return func(o *mutatorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Mutator applies changes to a Store.
type Mutator[K comparable, V any] struct {
	store  Store[K, V]
	logger *slog.Logger
}

// New returns a Mutator writing to store.
func New[K comparable, V any](store Store[K, V], opts ...Option) *Mutator[K, V] {
	if store == nil {
		panic("optimistic.New: store must not be nil")
	}
	o := mutatorOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Mutator[K, V]{store: store, logger: o.logger}
}

// Start writes the proposed value and returns as soon as it is visible in the
// store. The remote call runs in the background; use the returned Mutation to
// wait for it.
func (m *Mutator[K, V]) Start(ctx context.Context, change Change[K, V]) (*Mutation[K, V], error) {
	if change.Propose == nil || change.Remote == nil {
		return nil, fmt.Errorf("%w: propose and remote are required", ErrInvalidChange)
	}

	var proposed V
	prior, err := m.store.Swap(change.Target, func(current V) V {
		proposed = change.Propose(current)
		return proposed
	})
	if err != nil {
		return nil, fmt.Errorf("apply change to %v: %w", change.Target, err)
	}

	mut := &Mutation[K, V]{
		id:       uuid.NewString(),
		target:   change.Target,
		prior:    prior,
		proposed: proposed,
		done:     make(chan struct{}),
	}
	m.logger.Debug("optimistic change applied", "mutation", mut.id, "target", fmt.Sprint(change.Target))

	go m.settle(ctx, change.Remote, mut)
	return mut, nil
}

// Apply is Start followed by waiting for the settle.
func (m *Mutator[K, V]) Apply(ctx context.Context, change Change[K, V]) (V, error) {
	mut, err := m.Start(ctx, change)
	if err != nil {
		var zero V
		return zero, err
	}
	<-mut.done
	return mut.value, mut.err
}

func (m *Mutator[K, V]) settle(ctx context.Context, remote func(context.Context) (V, error), mut *Mutation[K, V]) {
	defer close(mut.done)

	value, err := callRemote(ctx, remote)
	if err != nil {
		m.store.Settle(mut.target, mut.prior)
		mut.value = mut.prior
		mut.err = &RollbackError{MutationID: mut.id, Target: fmt.Sprint(mut.target), Err: err}
		m.logger.Warn("optimistic change rolled back", "mutation", mut.id, "target", fmt.Sprint(mut.target), "err", err)
		return
	}

	m.store.Settle(mut.target, value)
	mut.value = value
	m.logger.Debug("optimistic change confirmed", "mutation", mut.id, "target", fmt.Sprint(mut.target))
}

func callRemote[V any](ctx context.Context, remote func(context.Context) (V, error)) (value V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remote call panicked: %v", r)
		}
	}()
	return remote(ctx)
}

package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Session is one polling operation. It is created by Start and owns exactly
// one goroutine, which exits when the session reaches a terminal state.
type Session[T any] struct {
	id       string
	name     string
	check    CheckFunc[T]
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	changes chan Status[T]

	mu       sync.Mutex
	status   Status[T]
	checking chan struct{} // non-nil from begin until the check has settled
}

// Start begins polling check and returns immediately. The first check runs
// right away; later ones run interval after the previous check returned.
// Cancelling ctx cancels the session.
func Start[T any](ctx context.Context, check CheckFunc[T], opts ...Option) *Session[T] {
	if check == nil {
		panic("poll.Start: check must not be nil")
	}
	o := buildOptions(opts)

	ctx, cancel := context.WithCancel(ctx)
	s := &Session[T]{
		id:       uuid.NewString(),
		name:     o.name,
		check:    check,
		interval: o.interval,
		clock:    o.clock,
		cancel:   cancel,
		done:     make(chan struct{}),
		changes:  make(chan Status[T], 1),
	}
	s.logger = o.logger.With("session", s.id, "name", s.name)
	s.status = Status[T]{ID: s.id, Name: s.name, State: StatePending, UpdatedAt: s.clock.Now()}
	s.publishLocked()

	if o.registry != nil {
		o.registry.add(s)
	}

	go s.run(ctx)
	return s
}

// ID returns the session identifier.
func (s *Session[T]) ID() string { return s.id }

// Interval returns the pause between checks.
func (s *Session[T]) Interval() time.Duration { return s.interval }

// State returns the current lifecycle state.
func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.State
}

// Status returns a copy of the current status.
func (s *Session[T]) Status() Status[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Changes delivers the latest status. The channel is closed after the
// terminal status has been delivered.
func (s *Session[T]) Changes() <-chan Status[T] { return s.changes }

// Done is closed when the session reaches a terminal state.
func (s *Session[T]) Done() <-chan struct{} { return s.done }

// Cancel moves a pending session to Cancelled. It is a no-op on a terminal
// session. A check that is already reserved or running sees its context
// cancelled, and Cancel waits for it to return; after that no check is ever
// invoked again and the late result is discarded. Cancel must not be called
// from inside the check itself.
func (s *Session[T]) Cancel() {
	s.mu.Lock()
	if !s.status.State.Terminal() {
		s.terminateLocked(StateCancelled, ErrCancelled)
	}
	checking := s.checking
	s.mu.Unlock()

	if checking != nil {
		<-checking
	}
}

// Wait blocks until the session ends or ctx is done. It returns the payload of
// a resolved session, or the error that ended it.
func (s *Session[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	st := s.Status()
	if st.State == StateResolved {
		return st.Payload, nil
	}
	return st.Payload, st.Err
}

func (s *Session[T]) run(ctx context.Context) {
	for {
		if !s.begin() {
			return
		}
		if ctx.Err() != nil {
			// cancelled between reserving and calling
			s.endCheck()
			s.finish(StateCancelled, ErrCancelled)
			return
		}
		res, err := s.invoke(ctx)
		more := s.settle(ctx, res, err)
		s.endCheck()
		if !more {
			return
		}

		timer := s.clock.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.finish(StateCancelled, ErrCancelled)
			return
		case <-timer.Chan():
		}
	}
}

// begin reserves the next check. It refuses once the session is terminal.
func (s *Session[T]) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State.Terminal() {
		return false
	}
	s.status.Checks++
	s.checking = make(chan struct{})
	return true
}

// endCheck releases callers of Cancel waiting on the reserved check.
func (s *Session[T]) endCheck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.checking)
	s.checking = nil
}

func (s *Session[T]) invoke(ctx context.Context) (res Result[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("status check panicked: %v", r)
		}
	}()
	return s.check(ctx)
}

// settle records a check outcome and reports whether polling continues.
func (s *Session[T]) settle(ctx context.Context, res Result[T], err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.State.Terminal() {
		// cancelled while the check was running
		return false
	}
	if err != nil {
		if ctx.Err() != nil {
			s.terminateLocked(StateCancelled, ErrCancelled)
			return false
		}
		s.terminateLocked(StateFailed, err)
		return false
	}

	last := res
	s.status.Last = &last
	if res.Pending {
		s.status.UpdatedAt = s.clock.Now()
		s.logger.Debug("status check pending", "checks", s.status.Checks)
		s.publishLocked()
		return true
	}

	s.status.Payload = res.Payload
	if !res.HasPayload {
		s.status.Ambiguous = true
		s.logger.Warn("status check finished without payload", "checks", s.status.Checks)
	}
	s.terminateLocked(StateResolved, nil)
	return false
}

func (s *Session[T]) finish(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State.Terminal() {
		return
	}
	s.terminateLocked(state, err)
}

// terminateLocked must be called with mu held and at most once.
func (s *Session[T]) terminateLocked(state State, err error) {
	s.status.State = state
	s.status.Err = err
	s.status.UpdatedAt = s.clock.Now()
	s.cancel()

	if err != nil && state == StateFailed {
		s.logger.Debug("poll session failed", "checks", s.status.Checks, "err", err)
	} else {
		s.logger.Debug("poll session ended", "state", state.String(), "checks", s.status.Checks)
	}

	s.publishLocked()
	close(s.changes)
	close(s.done)
}

// publishLocked replaces any unread status with the current one. All sends
// happen under mu, so after the drain the buffer always has room.
func (s *Session[T]) publishLocked() {
	select {
	case <-s.changes:
	default:
	}
	s.changes <- s.snapshotLocked()
}

func (s *Session[T]) snapshotLocked() Status[T] {
	st := s.status
	if s.status.Last != nil {
		last := *s.status.Last
		st.Last = &last
	}
	return st
}

package poll

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the pause between two status checks.
const DefaultInterval = 2 * time.Second

var (
	// ErrCancelled is the terminal error of a cancelled session.
	ErrCancelled = errors.New("poll: session cancelled")
	// ErrUnknownSession is returned when a registry is asked about an id it never tracked.
	ErrUnknownSession = errors.New("poll: unknown session")
)

// State is the lifecycle state of a session.
type State int

const (
	StatePending State = iota
	StateResolved
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s != StatePending
}

// Result is what a status check reports when it did not fail.
type Result[T any] struct {
	Pending    bool
	Payload    T
	HasPayload bool
}

// Waiting reports that the remote operation has not completed yet.
func Waiting[T any]() Result[T] {
	return Result[T]{Pending: true}
}

// Ready reports completion with payload.
func Ready[T any](payload T) Result[T] {
	return Result[T]{Payload: payload, HasPayload: true}
}

// CheckFunc asks the remote side for the current status. It must be safe to
// call repeatedly. A returned error ends the session as Failed.
type CheckFunc[T any] func(ctx context.Context) (Result[T], error)

// Status is a point-in-time view of a session.
type Status[T any] struct {
	ID        string
	Name      string
	State     State
	Checks    int        // status checks started so far
	Last      *Result[T] // last result received, nil before the first one
	Payload   T          // set once Resolved
	Err       error      // set once Failed or Cancelled
	Ambiguous bool       // resolved without a payload
	UpdatedAt time.Time
}

type options struct {
	interval time.Duration
	clock    clockwork.Clock
	registry *Registry
	logger   *slog.Logger
	name     string
}

// Option configures a session.
type Option func(*options)

// WithInterval sets the pause between checks. Non-positive values use DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRegistry records the session in r.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithName labels the session in logs and statuses.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func buildOptions(opts []Option) options {
	o := options{
		interval: DefaultInterval,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval <= 0 {
		o.interval = DefaultInterval
	}
	return o
}

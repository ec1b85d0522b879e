package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/state"
)

const (
	defaultPollInterval = 2 * time.Second
	maxBackoff          = 30 * time.Second
)

// Fetcher is the part of the API client the poller reads from.
type Fetcher interface {
	FetchDevices(ctx context.Context) ([]api.Device, error)
	FetchProviders(ctx context.Context) ([]api.Provider, error)
}

// DeviceSaver persists the last good device list for offline use.
type DeviceSaver interface {
	SaveDevices(ctx context.Context, devices []api.Device) error
}

// Poller refreshes a state.Store in the background.
type Poller struct {
	store    *state.Store
	client   Fetcher
	cache    DeviceSaver
	clock    clockwork.Clock
	logger   *slog.Logger
	interval time.Duration

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) PollerOption {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithCache saves every successful device refresh.
func WithCache(c DeviceSaver) PollerOption {
	return func(p *Poller) { p.cache = c }
}

// WithLogger sets the logger used for refresh failures.
func WithLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// StartPoller launches a background goroutine that refreshes the store. The
// wait between refreshes grows while the API keeps failing. It returns
// immediately.
func StartPoller(ctx context.Context, store *state.Store, client Fetcher, interval time.Duration, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	p := &Poller{
		store:    store,
		client:   client,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
		interval: interval,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
	return p
}

// Kick asks for a refresh without waiting for the next tick. Calls made while
// a kick is already queued are coalesced.
func (p *Poller) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Stop cancels the poller and waits for the goroutine to exit.
func (p *Poller) Stop() {
	p.once.Do(p.cancel)
	<-p.done
}

// Done is closed once the poller has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	for {
		refresh(ctx, p.store, p.client, p.cache, p.logger)

		timer := p.clock.NewTimer(calculateBackoff(p.store.Snapshot().ConsecutiveFailures, p.interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		case <-p.kick:
			timer.Stop()
		}
	}
}

// calculateBackoff doubles the interval per consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}

func refresh(ctx context.Context, store *state.Store, client Fetcher, cache DeviceSaver, logger *slog.Logger) error {
	devices, err := client.FetchDevices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		store.Update(nil, nil, err)
		logger.Warn("device poll failed", "error", err)
		return err
	}
	providers, err := client.FetchProviders(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		store.Update(nil, nil, err)
		logger.Warn("provider poll failed", "error", err)
		return err
	}
	store.Update(devices, providers, nil)

	if cache != nil {
		if err := cache.SaveDevices(ctx, devices); err != nil {
			logger.Warn("save device cache failed", "error", err)
		}
	}
	return nil
}

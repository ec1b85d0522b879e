package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/cache"
	"github.com/bringyour/byctl/internal/config"
	"github.com/bringyour/byctl/internal/device"
	"github.com/bringyour/byctl/internal/state"
	"github.com/bringyour/byctl/internal/ui"
)

// Options configure the dashboard.
type Options struct {
	Config      config.Config
	JWT         string
	NetworkName string
	Logger      *slog.Logger
	PollEvery   time.Duration // zero uses Config.PollInterval
}

// Run boots the dashboard until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.JWT == "" {
		return api.ErrNotAuthenticated
	}

	client, err := api.NewClient(opts.Config.APIURL,
		api.WithToken(opts.JWT),
		api.WithTimeout(opts.Config.RequestTimeout),
	)
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	store := &state.Store{}
	pollerOpts := []PollerOption{WithLogger(logger)}

	// The dashboard works without the cache; it only loses the offline seed.
	if c, err := cache.Open(opts.Config.CachePath); err != nil {
		logger.Warn("device cache unavailable", "path", opts.Config.CachePath, "error", err)
	} else {
		defer c.Close()
		seedFromCache(ctx, store, c, logger)
		pollerOpts = append(pollerOpts, WithCache(c))
	}

	interval := opts.Config.PollInterval
	if opts.PollEvery > 0 {
		interval = opts.PollEvery
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	poller := StartPoller(ctx, store, client, interval, pollerOpts...)
	defer poller.Stop()

	return ui.Run(ui.Options{
		Context:     ctx,
		Store:       store,
		Toggler:     device.NewController(client, store, logger),
		Refresh:     poller.Kick,
		PollTick:    time.Second,
		NetworkName: opts.NetworkName,
	})
}

// seedFromCache shows the last saved device list until the first refresh lands.
func seedFromCache(ctx context.Context, store *state.Store, c *cache.Cache, logger *slog.Logger) {
	entry, err := c.LoadDevices(ctx)
	if err != nil {
		logger.Warn("load device cache failed", "error", err)
		return
	}
	if !entry.HasEntry {
		return
	}
	store.Update(entry.Devices, nil, nil)
	logger.Debug("seeded dashboard from cache", "devices", len(entry.Devices), "saved_at", entry.SavedAt)
}

package device

import (
	"context"
	"log/slog"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/optimistic"
)

// ProvideSetter is the remote half of a provide change.
type ProvideSetter interface {
	SetProvide(ctx context.Context, clientID string, mode api.ProvideMode) (api.ProvideMode, error)
}

// Mutation is a provide change waiting for the server.
type Mutation = optimistic.Mutation[string, api.Device]

// Controller applies provide changes to a device store.
type Controller struct {
	client  ProvideSetter
	mutator *optimistic.Mutator[string, api.Device]
}

// NewController returns a Controller writing to store.
func NewController(client ProvideSetter, store optimistic.Store[string, api.Device], logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client:  client,
		mutator: optimistic.New[string, api.Device](store, optimistic.WithLogger(logger.With("component", "provide"))),
	}
}

// SetProvide sets clientID to mode.
func (c *Controller) SetProvide(ctx context.Context, clientID string, mode api.ProvideMode) (*Mutation, error) {
	return c.start(ctx, clientID, func(api.ProvideMode) api.ProvideMode { return mode })
}

// Toggle flips clientID between public and friends and family.
func (c *Controller) Toggle(ctx context.Context, clientID string) (*Mutation, error) {
	return c.start(ctx, clientID, api.ProvideMode.Toggled)
}

func (c *Controller) start(ctx context.Context, clientID string, next func(api.ProvideMode) api.ProvideMode) (*Mutation, error) {
	if err := api.ValidateClientID(clientID); err != nil {
		return nil, err
	}

	// proposed is written inside Swap, before the remote goroutine starts.
	var proposed api.Device
	return c.mutator.Start(ctx, optimistic.Change[string, api.Device]{
		Target: clientID,
		Propose: func(prior api.Device) api.Device {
			proposed = prior
			proposed.ProvideMode = next(prior.ProvideMode)
			return proposed
		},
		Remote: func(ctx context.Context) (api.Device, error) {
			mode, err := c.client.SetProvide(ctx, clientID, proposed.ProvideMode)
			if err != nil {
				return api.Device{}, err
			}
			confirmed := proposed
			confirmed.ProvideMode = mode
			return confirmed, nil
		},
	})
}

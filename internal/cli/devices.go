package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/app"
	"github.com/bringyour/byctl/internal/cache"
	"github.com/bringyour/byctl/internal/dashlog"
	"github.com/bringyour/byctl/internal/device"
	"github.com/bringyour/byctl/internal/optimistic"
	"github.com/bringyour/byctl/internal/output"
	"github.com/bringyour/byctl/internal/state"
)

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(rootOpts *RootOptions) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices of the network",
		Long: `List the devices of the network with their provide mode, connection
status and 24h uptime.

Every successful listing is cached locally. With --offline the cached list is
shown without contacting the API; the same happens automatically when the API
cannot be reached.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				return runDevicesOffline(cmd, rootOpts)
			}
			return runDevices(cmd, rootOpts)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "show the cached device list")

	return cmd
}

func runDevices(cmd *cobra.Command, opts *RootOptions) error {
	client, err := opts.client(true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	devices, err := client.FetchDevices(ctx)
	if err != nil {
		if api.IsKind(err, api.KindNetwork) {
			opts.logger.Warn("api unreachable, showing cached devices", "error", err)
			if runDevicesOffline(cmd, opts) == nil {
				return nil
			}
		}
		return apiFailure("list devices", err)
	}

	providers, err := client.FetchProviders(ctx)
	if err != nil {
		// Uptime is optional; the device list is still useful without it.
		opts.logger.Warn("fetch provider stats", "error", err)
		providers = nil
	}

	saveDevices(ctx, opts, devices)
	return opts.renderer(cmd).Devices(output.DeviceList{Devices: devices, Providers: providers})
}

func runDevicesOffline(cmd *cobra.Command, opts *RootOptions) error {
	c, err := cache.Open(opts.cfg.CachePath)
	if err != nil {
		return WrapExitError(ExitFailure, "open device cache", err)
	}
	defer c.Close()

	entry, err := c.LoadDevices(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "read device cache", err)
	}
	if !entry.HasEntry {
		return NewExitError(ExitFailure, "no cached devices: run `byctl devices` while online first")
	}
	savedAt := entry.SavedAt
	return opts.renderer(cmd).Devices(output.DeviceList{Devices: entry.Devices, CachedAt: &savedAt})
}

// saveDevices refreshes the offline cache; failures are only logged.
func saveDevices(ctx context.Context, opts *RootOptions, devices []api.Device) {
	c, err := cache.Open(opts.cfg.CachePath)
	if err != nil {
		opts.logger.Warn("open device cache", "error", err)
		return
	}
	defer c.Close()
	if err := c.SaveDevices(ctx, devices); err != nil {
		opts.logger.Warn("save device cache", "error", err)
	}
}

// NewProvideCommand creates the provide command.
func NewProvideCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provide <client_id> <mode>",
		Short: "Set who a device provides to",
		Long: `Set the provide mode of a device.

Modes: none, network, friends_and_family (or ff, off), public (or on).`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvide(cmd, rootOpts, args[0], args[1])
		},
	}
}

func runProvide(cmd *cobra.Command, opts *RootOptions, clientID, modeArg string) error {
	mode, err := api.ParseProvideMode(modeArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mode", err)
	}
	if err := api.ValidateClientID(clientID); err != nil {
		return WrapExitError(ExitCommandError, "invalid client id", err)
	}
	client, err := opts.client(true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	devices, err := client.FetchDevices(ctx)
	if err != nil {
		return apiFailure("list devices", err)
	}
	store := &state.Store{}
	store.Update(devices, nil, nil)

	ctl := device.NewController(client, store, opts.logger)
	mut, err := ctl.SetProvide(ctx, clientID, mode)
	if err != nil {
		if errors.Is(err, optimistic.ErrUnknownTarget) {
			return NewExitError(ExitCommandError, "device "+clientID+" is not on this network")
		}
		return apiFailure("set provide", err)
	}
	opts.logger.Debug("provide change sent", "client_id", clientID, "from", mut.Prior().ProvideMode.String(), "to", mut.Proposed().ProvideMode.String())

	value, err := mut.Wait(ctx)
	if err != nil {
		return apiFailure("set provide", err)
	}
	if value.ProvideMode != mode {
		opts.logger.Warn("server chose a different provide mode", "requested", mode.String(), "actual", value.ProvideMode.String())
	}

	saveDevices(ctx, opts, store.Snapshot().Devices)
	return opts.renderer(cmd).Device(value)
}

// NewDashCommand creates the dash command.
func NewDashCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Live device dashboard",
		Long: `Open a live dashboard of the network's devices. Select a device and
press p to toggle it between public and friends and family.

With --verbose the dashboard logs to dash.log next to the device cache;
read it with ` + "`byctl logs`" + `.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDash(cmd, rootOpts)
		},
	}
}

func runDash(cmd *cobra.Command, opts *RootOptions) error {
	sess := opts.session()
	if !sess.LoggedIn() {
		return NewExitError(ExitCommandError, "not logged in: run `byctl login` or set BY_JWT")
	}

	// stderr belongs to the TUI; verbose logs go next to the cache instead.
	logger := slog.New(slog.DiscardHandler)
	if opts.Verbose {
		f, err := dashlog.Open(dashlog.Path(opts.cfg.CachePath))
		if err != nil {
			return WrapExitError(ExitFailure, "open dashboard log", err)
		}
		defer f.Close()
		logger = newLogger(f, true)
	}

	err := app.Run(cmd.Context(), app.Options{
		Config:      opts.cfg,
		JWT:         sess.JWT,
		NetworkName: sess.NetworkName,
		Logger:      logger,
	})
	if err != nil {
		return apiFailure("dashboard", err)
	}
	return nil
}

// NewLogsCommand creates the logs command.
func NewLogsCommand(rootOpts *RootOptions) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:           "logs",
		Short:         "Show the end of the dashboard log",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dashlog.Path(rootOpts.cfg.CachePath)
			tail, err := dashlog.Tail(path, lines)
			if err != nil {
				return WrapExitError(ExitFailure, "read dashboard log", err)
			}
			return rootOpts.renderer(cmd).LogLines(path, tail)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show (0 shows all)")
	return cmd
}

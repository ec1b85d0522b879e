package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/device"
	"github.com/bringyour/byctl/internal/output"
)

// NewDeviceCommand creates the device command group.
func NewDeviceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Add devices to the network",
	}
	cmd.AddCommand(newDeviceAddCommand(rootOpts))
	return cmd
}

func newDeviceAddCommand(rootOpts *RootOptions) *cobra.Command {
	var flags waitFlags

	cmd := &cobra.Command{
		Use:   "add <code>",
		Short: "Enter a share or adopt code",
		Long: `Enter a share or adopt code shown by another device or network.

With --wait the command keeps polling until the other side accepts the code.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.client(true)
			if err != nil {
				return err
			}
			res, err := client.AddDevice(cmd.Context(), args[0])
			if err != nil {
				return apiFailure("add device", err)
			}
			if !flags.wait {
				return rootOpts.renderer(cmd).AddDevice(res)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Added %s code %s for network %q, waiting for it to be accepted...\n", res.CodeType, res.Code, res.NetworkName)
			return waitForCode(cmd, rootOpts, &flags, client, res.CodeType, res.Code)
		},
	}
	flags.register(cmd, true)
	return cmd
}

// NewShareCommand creates the share command group.
func NewShareCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Share a device with another network",
	}
	cmd.AddCommand(newShareCreateCommand(rootOpts))
	cmd.AddCommand(newCodeWaitCommand(rootOpts, api.CodeTypeShare))
	cmd.AddCommand(newShareConfirmCommand(rootOpts))
	return cmd
}

// NewAdoptCommand creates the adopt command group.
func NewAdoptCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adopt",
		Short: "Follow an adopt code",
	}
	cmd.AddCommand(newCodeWaitCommand(rootOpts, api.CodeTypeAdopt))
	return cmd
}

func newShareCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags waitFlags
		name  string
	)

	cmd := &cobra.Command{
		Use:   "create <client_id>",
		Short: "Create a share code for a device",
		Long: `Create a share code for a device. Give the code to the other network;
they enter it with ` + "`byctl device add`" + `.

With --wait the code is printed on stderr and the command polls until the
other network has accepted it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID := args[0]
			if err := api.ValidateClientID(clientID); err != nil {
				return WrapExitError(ExitCommandError, "invalid client id", err)
			}
			client, err := rootOpts.client(true)
			if err != nil {
				return err
			}
			code, err := client.CreateShareCode(cmd.Context(), clientID, name)
			if err != nil {
				return apiFailure("create share code", err)
			}
			if !flags.wait {
				return rootOpts.renderer(cmd).ShareCode(clientID, code)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Share code for %s: %s\n", clientID, code)
			return waitForCode(cmd, rootOpts, &flags, client, api.CodeTypeShare, code)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVar(&name, "name", "", "device name shown to the other network")
	return cmd
}

func newCodeWaitCommand(rootOpts *RootOptions, codeType api.CodeType) *cobra.Command {
	var flags waitFlags

	cmd := &cobra.Command{
		Use:           "wait <code>",
		Short:         fmt.Sprintf("Wait until a %s code is accepted", codeType),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.client(true)
			if err != nil {
				return err
			}
			return waitForCode(cmd, rootOpts, &flags, client, codeType, args[0])
		},
	}
	flags.register(cmd, false)
	return cmd
}

func waitForCode(cmd *cobra.Command, opts *RootOptions, flags *waitFlags, client device.StatusChecker, codeType api.CodeType, code string) error {
	ctx, cancel := flags.context(cmd.Context())
	defer cancel()

	session, err := device.WaitForCode(ctx, client, codeType, code, opts.pollOptions()...)
	if err != nil {
		return apiFailure("wait for code", err)
	}
	st, err := awaitSession(ctx, cmd, opts, fmt.Sprintf("%s code %s", codeType, code), session)
	if err != nil {
		return err
	}
	return opts.renderer(cmd).Pairing(output.PairingResult{Association: st.Payload, Ambiguous: st.Ambiguous})
}

func newShareConfirmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "confirm <code> <network_name>",
		Short:         "Confirm that a share code was accepted by the expected network",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.client(true)
			if err != nil {
				return err
			}
			res, err := client.ConfirmShare(cmd.Context(), args[0], args[1])
			if err != nil {
				return apiFailure("confirm share", err)
			}
			return rootOpts.renderer(cmd).ConfirmShare(res)
		},
	}
}

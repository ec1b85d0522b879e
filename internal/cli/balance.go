package cli

import (
	"github.com/spf13/cobra"

	"github.com/bringyour/byctl/internal/balance"
)

// NewBalanceCommand creates the balance command group.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the network balance and redeem balance codes",
	}
	cmd.AddCommand(newBalanceShowCommand(rootOpts))
	cmd.AddCommand(newBalanceRedeemCommand(rootOpts))
	return cmd
}

func newBalanceShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the remaining transfer balance",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.client(true)
			if err != nil {
				return err
			}
			b, err := client.FetchBalance(cmd.Context())
			if err != nil {
				return apiFailure("fetch balance", err)
			}
			return rootOpts.renderer(cmd).Balance(b)
		},
	}
}

func newBalanceRedeemCommand(rootOpts *RootOptions) *cobra.Command {
	var flags waitFlags

	cmd := &cobra.Command{
		Use:   "redeem <code>",
		Short: "Redeem a balance code",
		Long: `Check and redeem a balance code.

With --wait the command polls the balance until the redeemed transfer balance
is listed as active before printing it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rootOpts.client(true)
			if err != nil {
				return err
			}
			ctx, cancel := flags.context(cmd.Context())
			defer cancel()

			tb, err := balance.Redeem(ctx, client, args[0])
			if err != nil {
				return apiFailure("redeem", err)
			}
			rootOpts.logger.Debug("balance code redeemed", "transfer_balance_id", tb.TransferBalanceID)

			if flags.wait {
				session, err := balance.WaitForActive(ctx, client, tb.TransferBalanceID, rootOpts.pollOptions()...)
				if err != nil {
					return apiFailure("wait for balance", err)
				}
				if _, err := awaitSession(ctx, cmd, rootOpts, "balance "+tb.TransferBalanceID, session); err != nil {
					return err
				}
			}
			return rootOpts.renderer(cmd).TransferBalance(tb)
		},
	}
	flags.register(cmd, true)
	return cmd
}

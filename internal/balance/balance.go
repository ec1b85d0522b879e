// Package balance redeems balance codes and waits for the redeemed transfer
// balance to become active on the network's subscription.
package balance

import (
	"context"
	"fmt"
	"strings"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/poll"
)

// Client is the subset of the api client used here.
type Client interface {
	CheckBalanceCode(ctx context.Context, secret string) (api.BalanceCode, error)
	RedeemBalanceCode(ctx context.Context, secret string) (api.TransferBalance, error)
	FetchBalance(ctx context.Context) (api.Balance, error)
}

// Redeem checks the code first so an invalid or spent code is reported
// before anything changes, then redeems it.
func Redeem(ctx context.Context, client Client, code string) (api.TransferBalance, error) {
	code = strings.TrimSpace(code)
	if _, err := client.CheckBalanceCode(ctx, code); err != nil {
		return api.TransferBalance{}, fmt.Errorf("check balance code: %w", err)
	}
	tb, err := client.RedeemBalanceCode(ctx, code)
	if err != nil {
		return api.TransferBalance{}, fmt.Errorf("redeem balance code: %w", err)
	}
	return tb, nil
}

// ActiveCheck reports Ready with the full balance once transferBalanceID is
// among the active transfer balances.
func ActiveCheck(client Client, transferBalanceID string) poll.CheckFunc[api.Balance] {
	return func(ctx context.Context) (poll.Result[api.Balance], error) {
		b, err := client.FetchBalance(ctx)
		if err != nil {
			return poll.Result[api.Balance]{}, err
		}
		if !b.HasTransferBalance(transferBalanceID) {
			return poll.Waiting[api.Balance](), nil
		}
		return poll.Ready(b), nil
	}
}

// WaitForActive polls the subscription balance until transferBalanceID is active.
func WaitForActive(ctx context.Context, client Client, transferBalanceID string, opts ...poll.Option) (*poll.Session[api.Balance], error) {
	if strings.TrimSpace(transferBalanceID) == "" {
		return nil, fmt.Errorf("%w: transfer balance id required", api.ErrInvalidArgument)
	}
	opts = append([]poll.Option{poll.WithName("balance:" + transferBalanceID)}, opts...)
	return poll.Start(ctx, ActiveCheck(client, transferBalanceID), opts...), nil
}

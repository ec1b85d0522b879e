package balance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/api/apitest"
	"github.com/bringyour/byctl/internal/poll"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRedeemAndWaitForActive(t *testing.T) {
	ctx := testContext(t)
	srv := apitest.New(t)
	srv.SetBalance(api.Balance{BalanceByteCount: 1 << 20})
	srv.AddBalanceCode("GIFT", 5<<30, 2)
	c := srv.Client(t)

	tb, err := Redeem(ctx, c, " GIFT ")
	require.NoError(t, err)
	assert.Equal(t, int64(5<<30), tb.BalanceByteCount)

	s, err := WaitForActive(ctx, c, tb.TransferBalanceID, poll.WithInterval(5*time.Millisecond))
	require.NoError(t, err)
	b, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, b.HasTransferBalance(tb.TransferBalanceID))
	assert.Equal(t, int64(5<<30+1<<20), b.BalanceByteCount)
	assert.Equal(t, 3, s.Status().Checks)
}

func TestRedeem_InvalidCodeDoesNotRedeem(t *testing.T) {
	ctx := testContext(t)
	srv := apitest.New(t)

	_, err := Redeem(ctx, srv.Client(t), "NOPE")
	require.Error(t, err)
	assert.True(t, api.IsKind(err, api.KindRemote), "err = %v", err)
	assert.Contains(t, err.Error(), "check balance code")
	assert.Equal(t, 0, srv.Calls("subscription/redeem-balance-code"))
}

func TestRedeem_SpentCode(t *testing.T) {
	ctx := testContext(t)
	srv := apitest.New(t)
	srv.AddBalanceCode("GIFT", 1<<30, 0)
	c := srv.Client(t)

	_, err := Redeem(ctx, c, "GIFT")
	require.NoError(t, err)
	_, err = Redeem(ctx, c, "GIFT")
	assert.Contains(t, err.Error(), "already redeemed")
}

func TestWaitForActive_RequiresID(t *testing.T) {
	_, err := WaitForActive(context.Background(), nil, " ")
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

package accounts

import (
	"testing"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/astriaorg/astria-go/state"
	"github.com/stretchr/testify/require"
)

func testDelta(t *testing.T) (*state.Store, *state.StateDelta) {
	t.Helper()
	store, err := state.Open(state.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store, store.NewDelta()
}

func testAddress(t *testing.T, b byte) primitive.Address {
	t.Helper()
	raw := make([]byte, primitive.AddressLen)
	for i := range raw {
		raw[i] = b
	}
	addr, err := primitive.NewAddress(raw, "astria")
	require.NoError(t, err)
	return addr
}

// TestStorageKeysHaveNotChanged pins balanceStorageKey/nonceStorageKey
// against a trace-prefixed and an ibc-prefixed reference to the same
// underlying denom, asserting they alias the same key.
func TestStorageKeysHaveNotChanged(t *testing.T) {
	addr := testAddress(t, 0x11)
	trace := primitive.NewAsset("transfer/channel-0/utia")
	ibcOnly := primitive.NewIbcPrefixedAsset(trace.ToIbcPrefixed())

	require.Equal(t, balanceStorageKey(addr, trace), balanceStorageKey(addr, ibcOnly))
	require.Contains(t, balanceStorageKey(addr, trace), "accounts/")
	require.Contains(t, balanceStorageKey(addr, trace), "/balance/ibc/")
	require.Equal(t, "accounts/"+addressKey(addr)+"/nonce", nonceStorageKey(addr))
}

func TestIncreaseDecreaseBalance(t *testing.T) {
	_, delta := testDelta(t)
	accessor := NewAccessor(delta)
	addr := testAddress(t, 0x01)
	asset := primitive.NewAsset("nria")

	require.NoError(t, accessor.IncreaseBalance(addr, asset, 100))
	bal, err := accessor.GetBalance(addr, asset)
	require.NoError(t, err)
	require.Equal(t, uint64(100), bal)

	require.NoError(t, accessor.DecreaseBalance(addr, asset, 40))
	bal, err = accessor.GetBalance(addr, asset)
	require.NoError(t, err)
	require.Equal(t, uint64(60), bal)
}

func TestDecreaseBalanceUnderflowRejected(t *testing.T) {
	_, delta := testDelta(t)
	accessor := NewAccessor(delta)
	addr := testAddress(t, 0x02)
	asset := primitive.NewAsset("nria")

	err := accessor.DecreaseBalance(addr, asset, 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestNonceRoundTrip(t *testing.T) {
	_, delta := testDelta(t)
	accessor := NewAccessor(delta)
	addr := testAddress(t, 0x03)

	nonce, err := accessor.GetNonce(addr)
	require.NoError(t, err)
	require.Equal(t, uint32(0), nonce)

	accessor.PutNonce(addr, 7)
	nonce, err = accessor.GetNonce(addr)
	require.NoError(t, err)
	require.Equal(t, uint32(7), nonce)
}

func TestAllowedFeeAssetsRejectsLastRemoval(t *testing.T) {
	_, delta := testDelta(t)
	accessor := NewAccessor(delta)
	asset := primitive.NewAsset("nria").ToIbcPrefixed()

	require.NoError(t, accessor.AddAllowedFeeAsset(asset))
	err := accessor.RemoveAllowedFeeAsset(asset)
	require.ErrorIs(t, err, ErrLastFeeAssetRemoval)

	assets, err := accessor.AllowedFeeAssets()
	require.NoError(t, err)
	require.Len(t, assets, 1)
}

func TestTransferBaseFeeRoundTrip(t *testing.T) {
	_, delta := testDelta(t)
	accessor := NewAccessor(delta)

	fee, err := accessor.GetTransferBaseFee()
	require.NoError(t, err)
	require.Equal(t, uint64(0), fee)

	accessor.PutTransferBaseFee(12345)
	fee, err = accessor.GetTransferBaseFee()
	require.NoError(t, err)
	require.Equal(t, uint64(12345), fee)
}

func TestActionFeeRoundTrip(t *testing.T) {
	_, delta := testDelta(t)
	accessor := NewAccessor(delta)

	accessor.PutActionFee("bridge_lock", 500)
	fee, err := accessor.GetActionFee("bridge_lock")
	require.NoError(t, err)
	require.Equal(t, uint64(500), fee)

	other, err := accessor.GetActionFee("ics20_withdrawal")
	require.NoError(t, err)
	require.Equal(t, uint64(0), other)
}

func TestAccountAssetBalancesStreamsAllHeldAssets(t *testing.T) {
	store, delta := testDelta(t)
	accessor := NewAccessor(delta)
	addr := testAddress(t, 0x04)
	nria := primitive.NewAsset("nria")
	utia := primitive.NewAsset("transfer/channel-0/utia")

	require.NoError(t, accessor.IncreaseBalance(addr, nria, 10))
	require.NoError(t, accessor.IncreaseBalance(addr, utia, 20))
	_, _, err := store.Commit(delta)
	require.NoError(t, err)

	snap := NewSnapshot(store)
	balances, err := snap.AccountAssetBalances(addr)
	require.NoError(t, err)
	require.Len(t, balances, 2)

	total := uint64(0)
	for _, b := range balances {
		total += b.Balance
	}
	require.Equal(t, uint64(30), total)
}

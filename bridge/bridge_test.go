package bridge

import (
	"testing"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/astriaorg/astria-go/state"
	"github.com/stretchr/testify/require"
)

func testDelta(t *testing.T) *state.StateDelta {
	t.Helper()
	store, err := state.Open(state.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store.NewDelta()
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

func TestInitAccountDefaultsSudoAndWithdrawerToSigner(t *testing.T) {
	accessor := NewAccessor(testDelta(t))
	bridgeAddr := testAddress(t, 0x01)
	rollupID := primitive.RollupIdFromName("rollup-a")
	asset := primitive.NewAsset("nria")

	require.NoError(t, accessor.InitAccount(bridgeAddr, rollupID, asset, nil, nil))

	acc, ok, err := accessor.GetAccount(bridgeAddr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bridgeAddr.AddressBytes(), acc.SudoAddressBytes)
	require.Equal(t, bridgeAddr.AddressBytes(), acc.WithdrawerAddressBytes)
	require.Equal(t, rollupID, acc.RollupId)
}

func TestInitAccountRejectsExisting(t *testing.T) {
	accessor := NewAccessor(testDelta(t))
	bridgeAddr := testAddress(t, 0x02)
	rollupID := primitive.RollupIdFromName("rollup-b")
	asset := primitive.NewAsset("nria")

	require.NoError(t, accessor.InitAccount(bridgeAddr, rollupID, asset, nil, nil))
	err := accessor.InitAccount(bridgeAddr, rollupID, asset, nil, nil)
	require.ErrorIs(t, err, ErrAlreadyABridgeAccount)
}

func TestUpdateSudoAndWithdrawerRequiresExistingAccount(t *testing.T) {
	accessor := NewAccessor(testDelta(t))
	notABridge := testAddress(t, 0x03)
	newSudo := testAddress(t, 0x04)

	err := accessor.UpdateSudoAndWithdrawer(notABridge, &newSudo, nil)
	require.ErrorIs(t, err, ErrNotABridgeAccount)
}

func TestWithdrawalEventDedup(t *testing.T) {
	accessor := NewAccessor(testDelta(t))
	bridgeAddr := testAddress(t, 0x05)

	require.NoError(t, accessor.CheckAndRecordWithdrawalEvent(bridgeAddr, "event-1", 42))
	err := accessor.CheckAndRecordWithdrawalEvent(bridgeAddr, "event-1", 43)
	require.ErrorIs(t, err, ErrWithdrawalEventAlreadyProcessed)

	require.NoError(t, accessor.CheckAndRecordWithdrawalEvent(bridgeAddr, "event-2", 44))
}

func TestIbcRelayerSetAddRemove(t *testing.T) {
	accessor := NewAccessor(testDelta(t))
	relayer := testAddress(t, 0x06)

	isRelayer, err := accessor.IsIbcRelayer(relayer)
	require.NoError(t, err)
	require.False(t, isRelayer)

	require.NoError(t, accessor.AddIbcRelayer(relayer))
	isRelayer, err = accessor.IsIbcRelayer(relayer)
	require.NoError(t, err)
	require.True(t, isRelayer)

	require.NoError(t, accessor.RemoveIbcRelayer(relayer))
	isRelayer, err = accessor.IsIbcRelayer(relayer)
	require.NoError(t, err)
	require.False(t, isRelayer)
}

package primitive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAssetTraceAndIbcPrefixedAgree pins the invariant that a trace-prefixed asset
// and an ibc-prefixed reference to the same underlying denom resolve to the
// identical canonical id, since accounts/ keys storage off that id alone.
func TestAssetTraceAndIbcPrefixedAgree(t *testing.T) {
	trace := NewAsset("transfer/channel-0/utia")
	ibcOnly := NewIbcPrefixedAsset(trace.ToIbcPrefixed())

	require.True(t, trace.Equal(ibcOnly))
	require.Equal(t, trace.ToIbcPrefixed(), ibcOnly.ToIbcPrefixed())
}

func TestAssetTraceDenomAbsentForIbcOnly(t *testing.T) {
	var id IbcPrefixed
	a := NewIbcPrefixedAsset(id)
	_, ok := a.TraceDenom()
	require.False(t, ok)
}

func TestIbcPrefixedStringHasPrefix(t *testing.T) {
	a := NewAsset("nria")
	require.True(t, IsIbcPrefixedString(a.ToIbcPrefixed().String()))
}

func TestDifferentTraceDenomsProduceDifferentIds(t *testing.T) {
	a := NewAsset("transfer/channel-0/utia")
	b := NewAsset("transfer/channel-1/utia")
	require.False(t, a.Equal(b))
}

package primitive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRollupIdFromNameIsDeterministic(t *testing.T) {
	a := RollupIdFromName("astria")
	b := RollupIdFromName("astria")
	require.Equal(t, a, b)

	c := RollupIdFromName("other")
	require.NotEqual(t, a, c)
}

func TestRollupIdFromBytesRejectsWrongLength(t *testing.T) {
	_, ok := RollupIdFromBytes([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestRollupIdFromBytesRoundTrips(t *testing.T) {
	id := RollupIdFromName("astria")
	reconstructed, ok := RollupIdFromBytes(id.Bytes())
	require.True(t, ok)
	require.Equal(t, id, reconstructed)
}

package primitive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTripsThroughBech32m(t *testing.T) {
	raw := make([]byte, AddressLen)
	for i := range raw {
		raw[i] = byte(i)
	}
	addr, err := NewAddress(raw, "astria")
	require.NoError(t, err)

	encoded := addr.String()
	decoded, err := ParseBech32m(encoded)
	require.NoError(t, err)
	require.True(t, addr.Equal(decoded))
	require.Equal(t, addr.Bytes(), decoded.Bytes())
}

func TestAddressEqualIgnoresPrefix(t *testing.T) {
	raw := make([]byte, AddressLen)
	a, err := NewAddress(raw, "astria")
	require.NoError(t, err)
	b, err := NewAddress(raw, "astriacompat")
	require.NoError(t, err)
	require.True(t, a.Equal(b))
}

func TestNewAddressRejectsWrongLength(t *testing.T) {
	_, err := NewAddress([]byte{1, 2, 3}, "astria")
	require.Error(t, err)
}

func TestAddressCompatStringUsesGivenPrefix(t *testing.T) {
	raw := make([]byte, AddressLen)
	addr, err := NewAddress(raw, "astria")
	require.NoError(t, err)

	compat, err := addr.CompatString("astriacompat")
	require.NoError(t, err)
	require.NotEqual(t, addr.String(), compat)
}

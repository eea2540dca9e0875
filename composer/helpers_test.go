package composer

import (
	"testing"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/stretchr/testify/require"
)

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

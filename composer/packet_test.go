package composer

import (
	"testing"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/stretchr/testify/require"
)

func TestBuilderBundleEncodeIsDeterministic(t *testing.T) {
	b := BuilderBundle{
		Transactions: [][]byte{[]byte("tx1"), []byte("tx2")},
		ParentHash:   []byte("parent"),
	}
	require.Equal(t, b.Encode(), b.Encode())

	other := BuilderBundle{Transactions: [][]byte{[]byte("tx1")}, ParentHash: []byte("parent")}
	require.NotEqual(t, b.Encode(), other.Encode())
}

func TestBuildSignedBundlePacketSignsEncodedBundle(t *testing.T) {
	kr := &fakeKeyring{sig: []byte("sig")}
	signer := NewSigner(kr, "operator", testAddress(t, 0x01))

	result := BundleSimulationResult{
		IncludedActions: [][]byte{[]byte("a")},
		ParentHash:      []byte("parent"),
	}

	packet, err := BuildSignedBundlePacket(signer, result)
	require.NoError(t, err)
	require.Equal(t, []byte("sig"), packet.Signature)
	require.Equal(t, packet.Bundle.Encode(), kr.lastMsg)
}

func TestWrapAsRollupDataSubmissionCarriesEncodedPacket(t *testing.T) {
	kr := &fakeKeyring{sig: []byte("sig")}
	signer := NewSigner(kr, "operator", testAddress(t, 0x01))
	packet, err := BuildSignedBundlePacket(signer, BundleSimulationResult{IncludedActions: [][]byte{[]byte("a")}})
	require.NoError(t, err)

	rollupID := primitive.RollupIdFromName("r")
	asset := primitive.NewAsset("test")
	action := WrapAsRollupDataSubmission(rollupID, asset, packet)

	require.Equal(t, rollupID, action.RollupId)
	require.Equal(t, packet.Encode(), action.Data)
	require.Equal(t, asset, action.FeeAsset)
}

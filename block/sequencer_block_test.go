package block

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/stretchr/testify/require"
)

func TestNewSequencerBlockGroupsByRollupId(t *testing.T) {
	rollupA := primitive.RollupIdFromName("rollup-a")
	rollupB := primitive.RollupIdFromName("rollup-b")

	included := []Tx{
		{Actions: []actions.Action{
			actions.RollupDataSubmission{RollupId: rollupA, Data: []byte("a1")},
			actions.RollupDataSubmission{RollupId: rollupB, Data: []byte("b1")},
		}},
		{Actions: []actions.Action{
			actions.RollupDataSubmission{RollupId: rollupA, Data: []byte("a2")},
		}},
	}

	blk := NewSequencerBlock(10, sha256.Sum256([]byte("block")), [32]byte{}, time.Unix(0, 0), "proposer", included)

	require.Len(t, blk.RollupTransactions[rollupA], 2)
	require.Equal(t, []byte("a1"), blk.RollupTransactions[rollupA][0])
	require.Equal(t, []byte("a2"), blk.RollupTransactions[rollupA][1])
	require.Len(t, blk.RollupTransactions[rollupB], 1)
	require.Len(t, blk.RollupIds, 2)
}

func TestFilteredSequencerBlockProofsVerify(t *testing.T) {
	rollupA := primitive.RollupIdFromName("rollup-a")
	rollupB := primitive.RollupIdFromName("rollup-b")
	rollupC := primitive.RollupIdFromName("rollup-c")

	included := []Tx{
		{Actions: []actions.Action{
			actions.RollupDataSubmission{RollupId: rollupA, Data: []byte("a1")},
			actions.RollupDataSubmission{RollupId: rollupB, Data: []byte("b1")},
			actions.RollupDataSubmission{RollupId: rollupC, Data: []byte("c1")},
		}},
	}

	blk := NewSequencerBlock(1, sha256.Sum256([]byte("block")), [32]byte{}, time.Unix(0, 0), "proposer", included)
	filtered := blk.Filter([]primitive.RollupId{rollupB})

	require.Len(t, filtered.AllRollupIds, 3, "non-censorship requires the full id set regardless of filter")
	require.Contains(t, filtered.RollupTransactions, rollupB)
	require.NotContains(t, filtered.RollupTransactions, rollupA)

	txProof := filtered.RollupTransactionProofs[rollupB]
	require.True(t, txProof.Verify(filtered.TxRoot))

	idProof := filtered.RollupIdProofs[rollupB]
	require.True(t, idProof.Verify(filtered.IdRoot))
}

func TestMerkleProofFailsAgainstWrongRoot(t *testing.T) {
	leaves := [][32]byte{
		sha256.Sum256([]byte("l0")),
		sha256.Sum256([]byte("l1")),
		sha256.Sum256([]byte("l2")),
	}
	proof := merkleProve(leaves, 1)
	root := merkleRoot(leaves)
	require.True(t, proof.Verify(root))

	wrongRoot := sha256.Sum256([]byte("not the root"))
	require.False(t, proof.Verify(wrongRoot))
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaves := [][32]byte{sha256.Sum256([]byte("only"))}
	proof := merkleProve(leaves, 0)
	root := merkleRoot(leaves)
	require.Equal(t, leaves[0], root)
	require.True(t, proof.Verify(root))
}

package conductor

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/astriaorg/astria-go/block"
	"github.com/stretchr/testify/require"
)

func hashOf(s string) [32]byte { return sha256.Sum256([]byte(s)) }

func testFilteredBlock(t *testing.T, height uint64, hash, parent [32]byte) *block.FilteredSequencerBlock {
	t.Helper()
	return &block.FilteredSequencerBlock{
		Height:     height,
		Hash:       hash,
		ParentHash: parent,
		Time:       time.Unix(int64(height), 0),
	}
}

func heightsOf(blocks []SoftBlock) []uint64 {
	out := make([]uint64, len(blocks))
	for i, b := range blocks {
		out[i] = b.Height
	}
	return out
}

func TestQueuePopsABlockSittingAtHeadHeightImmediately(t *testing.T) {
	q := NewQueue()
	q.SetHeadHeight(1)
	b1 := testFilteredBlock(t, 1, hashOf("b1"), [32]byte{})
	q.Insert(b1)

	// a block at exactly the head height is a head block by definition,
	// independent of whether anything proves it has a child yet
	require.Equal(t, 1, q.Len())
	out := q.PopBlocks()
	require.Equal(t, []uint64{1}, heightsOf(out))
	require.Equal(t, 0, q.Len())
}

func TestQueuePromotesNextHeightOnceItsChildArrives(t *testing.T) {
	q := NewQueue()
	q.SetHeadHeight(1)

	b2 := testFilteredBlock(t, 2, hashOf("b2"), hashOf("b1"))
	q.Insert(b2)
	// height 2 is not yet the head height, so nothing pops
	require.Empty(t, q.PopBlocks())
	require.Equal(t, 1, q.Len())

	b1 := testFilteredBlock(t, 1, hashOf("b1"), [32]byte{})
	q.Insert(b1)

	// b1 now has an observed child (b2) and is promoted to soft_blocks;
	// b2, now at the head height, pops as a head block
	out := q.PopBlocks()
	require.Equal(t, []uint64{1, 2}, heightsOf(out))
	require.Equal(t, 0, q.Len())
}

func TestQueueHoldsOrphanUntilParentArrives(t *testing.T) {
	q := NewQueue()
	q.SetHeadHeight(1)

	// block 2 arrives without its parent (block 1) ever having been seen
	b2 := testFilteredBlock(t, 2, hashOf("b2"), hashOf("b1"))
	q.Insert(b2)
	require.Empty(t, q.PopBlocks())
	require.Equal(t, 1, q.Len())

	// a competing block also claiming height 2 arrives
	b2Fork := testFilteredBlock(t, 2, hashOf("some_other_hash"), hashOf("b1"))
	q.Insert(b2Fork)
	require.Equal(t, 2, q.Len())

	// the missing parent arrives; once height 1 promotes, height 2 becomes
	// the head height and every block claiming it -- canonical or not --
	// is forwarded together. The queue is the sole fork-choice mechanism:
	// it does not disambiguate the fork itself, and the executor runs
	// execute_block on each block it hands back in turn, matching the
	// ported original's behavior of blindly executing everything the
	// queue releases.
	b1 := testFilteredBlock(t, 1, hashOf("b1"), [32]byte{})
	q.Insert(b1)

	out := q.PopBlocks()
	require.Equal(t, []uint64{1, 2, 2}, heightsOf(out))
	require.Equal(t, 0, q.Len())
}

func TestQueueFillsAGapAcrossMultipleHeights(t *testing.T) {
	q := NewQueue()
	q.SetHeadHeight(1)

	q.Insert(testFilteredBlock(t, 3, hashOf("b3"), hashOf("b2")))
	require.Equal(t, 1, q.Len())

	q.Insert(testFilteredBlock(t, 2, hashOf("b2"), hashOf("b1")))
	require.Equal(t, 2, q.Len())

	// filling in block 1 lets the whole contiguous run promote and pop,
	// including block 3 which becomes the new head height once 1 and 2
	// have been accounted for.
	q.Insert(testFilteredBlock(t, 1, hashOf("b1"), [32]byte{}))
	out := q.PopBlocks()
	require.Equal(t, []uint64{1, 2, 3}, heightsOf(out))
	require.Equal(t, 0, q.Len())
}

func TestQueueStaysEmptyWithNothingPending(t *testing.T) {
	q := NewQueue()
	q.SetHeadHeight(1)
	require.Empty(t, q.PopBlocks())
	require.Equal(t, 0, q.Len())
}

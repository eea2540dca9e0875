package block

import (
	"github.com/astriaorg/astria-go/primitive"
)

// RollupDataCommitments computes the two deterministic Merkle commitments
// of a block's rollup data: the root over every rollup's ordered
// transaction bytes, and the root over the sorted set of rollup ids
// present in the block (Block Assembly & Grouping §4.5). They are stored
// on SequencerBlock as TxRoot and IdRoot; they are not placed in the
// proposal's transaction list. Built from the same
// per-rollup leaves that FilteredSequencerBlock proves inclusion against,
// so a commitment computed here and a proof computed by SequencerBlock.Filter
// always verify against each other.
func RollupDataCommitments(rollupTxs map[primitive.RollupId][][]byte) (txRoot, idRoot [32]byte) {
	ids := sortedRollupIds(rollupTxs)

	txLeaves := make([][32]byte, len(ids))
	idLeaves := make([][32]byte, len(ids))
	for i, id := range ids {
		txLeaves[i] = rollupLeaf(rollupTxs[id])
		idLeaves[i] = idLeaf(id)
	}
	return merkleRoot(txLeaves), merkleRoot(idLeaves)
}

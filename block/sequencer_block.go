package block

import (
	"crypto/sha256"
	"sort"
	"time"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/primitive"
)

// SequencerBlock is the external, rollup-data-centric view of a committed
// block: every rollup's ordered transaction data, plus the two commitments
// (Block Assembly & Grouping §4.5) a rollup verifies its subset against.
// This is what SequencerService.GetSequencerBlock returns (spec.md §6).
type SequencerBlock struct {
	Height             uint64
	Hash               [32]byte
	ParentHash         [32]byte
	Time               time.Time
	ProposerAddress    string
	RollupIds          []primitive.RollupId
	RollupTransactions map[primitive.RollupId][][]byte
	TxRoot             [32]byte
	IdRoot             [32]byte
}

// NewSequencerBlock extracts every RollupDataSubmission's payload from a
// block's included transactions, grouped by rollup id in transaction
// order, and computes the two root commitments over that grouping.
// parentHash is the zero value at genesis height, where there is no
// previous committed block to chain to.
func NewSequencerBlock(height uint64, hash [32]byte, parentHash [32]byte, ts time.Time, proposerAddress string, included []Tx) *SequencerBlock {
	rollupTxs := make(map[primitive.RollupId][][]byte)
	for _, tx := range included {
		for _, action := range tx.Actions {
			submission, ok := action.(actions.RollupDataSubmission)
			if !ok {
				continue
			}
			rollupTxs[submission.RollupId] = append(rollupTxs[submission.RollupId], submission.Data)
		}
	}

	ids := sortedRollupIds(rollupTxs)
	txRoot, idRoot := RollupDataCommitments(rollupTxs)

	return &SequencerBlock{
		Height:             height,
		Hash:               hash,
		ParentHash:         parentHash,
		Time:               ts,
		ProposerAddress:    proposerAddress,
		RollupIds:          ids,
		RollupTransactions: rollupTxs,
		TxRoot:             txRoot,
		IdRoot:             idRoot,
	}
}

func sortedRollupIds(rollupTxs map[primitive.RollupId][][]byte) []primitive.RollupId {
	ids := make([]primitive.RollupId, 0, len(rollupTxs))
	for id := range rollupTxs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// rollupLeaf hashes one rollup id's ordered transaction set into the leaf
// fed to the tx-root Merkle tree, and idLeaf hashes a bare rollup id into
// the leaf fed to the id-root tree — the two trees this block's
// TxRoot/IdRoot are the roots of, letting FilteredSequencerBlock prove
// inclusion of either against those same roots.
func rollupLeaf(txs [][]byte) [32]byte {
	h := sha256.New()
	for _, tx := range txs {
		sum := sha256.Sum256(tx)
		h.Write(sum[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func idLeaf(id primitive.RollupId) [32]byte {
	return sha256.Sum256(id.Bytes())
}

// FilteredSequencerBlock is SequencerBlock restricted to a requested subset
// of rollup ids, carrying Merkle proofs for both the included rollup
// transaction sets and the full rollup id set — the latter is what lets a
// client verify non-censorship: the server cannot quietly omit a rollup id
// it served data for without the id-root proof failing to verify.
type FilteredSequencerBlock struct {
	Height                  uint64
	Hash                    [32]byte
	ParentHash              [32]byte
	Time                    time.Time
	AllRollupIds            []primitive.RollupId
	RollupTransactions      map[primitive.RollupId][][]byte
	TxRoot                  [32]byte
	IdRoot                  [32]byte
	RollupTransactionProofs map[primitive.RollupId]MerkleProof
	RollupIdProofs          map[primitive.RollupId]MerkleProof
}

// Filter restricts b to the requested rollup ids, attaching inclusion
// proofs for each requested id's transaction set and for its membership
// in the block's full id set.
func (b *SequencerBlock) Filter(requested []primitive.RollupId) *FilteredSequencerBlock {
	txLeaves := make([][32]byte, len(b.RollupIds))
	idLeaves := make([][32]byte, len(b.RollupIds))
	indexOf := make(map[primitive.RollupId]int, len(b.RollupIds))
	for i, id := range b.RollupIds {
		txLeaves[i] = rollupLeaf(b.RollupTransactions[id])
		idLeaves[i] = idLeaf(id)
		indexOf[id] = i
	}

	out := &FilteredSequencerBlock{
		Height:                  b.Height,
		Hash:                    b.Hash,
		ParentHash:              b.ParentHash,
		Time:                    b.Time,
		AllRollupIds:            b.RollupIds,
		RollupTransactions:      make(map[primitive.RollupId][][]byte, len(requested)),
		TxRoot:                  b.TxRoot,
		IdRoot:                  b.IdRoot,
		RollupTransactionProofs: make(map[primitive.RollupId]MerkleProof, len(requested)),
		RollupIdProofs:          make(map[primitive.RollupId]MerkleProof, len(requested)),
	}

	for _, id := range requested {
		idx, ok := indexOf[id]
		if !ok {
			continue
		}
		out.RollupTransactions[id] = b.RollupTransactions[id]
		out.RollupTransactionProofs[id] = merkleProve(txLeaves, idx)
		out.RollupIdProofs[id] = merkleProve(idLeaves, idx)
	}
	return out
}

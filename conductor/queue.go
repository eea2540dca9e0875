// Package conductor drives a rollup's execution node through the
// sequencer's committed blocks: a fork-choice queue orders soft blocks
// observed out of order, a commitment-state machine tracks what the
// rollup has already applied, and an executor ties the two to the
// rollup's ExecutionService (Conductor Executor & Commitment FSM §4.11).
package conductor

import (
	"sort"
	"sync"

	"github.com/astriaorg/astria-go/block"
	"github.com/ethereum/go-ethereum/log"
)

// SoftBlock is the queue's unit of work: enough of a sequencer block to
// order it by height/parent linkage without holding the whole filtered
// view once it has been handed to the rollup.
type SoftBlock struct {
	Height     uint64
	Hash       [32]byte
	ParentHash [32]byte
	Block      *block.FilteredSequencerBlock
}

func softBlockFrom(b *block.FilteredSequencerBlock) SoftBlock {
	return SoftBlock{Height: b.Height, Hash: b.Hash, ParentHash: b.ParentHash, Block: b}
}

func (b SoftBlock) childHeight() uint64 { return b.Height + 1 }

// Queue holds sequencer blocks that are not yet safe to forward to
// execution, along with blocks that have become safe because a child
// referencing them by parent hash has been observed. This is the only
// fork-choice logic the conductor applies to soft blocks: a block above
// the head height is forwarded only once a child in the queue proves it
// is not an orphan, while every block at exactly the head height is
// released by PopBlocks without that proof.
//
// Ported 1:1 from the original executor queue: pending_blocks and
// soft_blocks mirror the Rust HashMap<Height, HashMap<Hash, _>> and
// BTreeMap<Height, _> fields, and update_internal_state below walks
// pending heights the same way.
type Queue struct {
	mu sync.Mutex

	headHeight         uint64
	mostRecentSoftHash [32]byte

	// pending_blocks == all blocks seen but not yet promoted to soft_blocks.
	pendingBlocks map[uint64]map[[32]byte]SoftBlock
	// soft_blocks == blocks proven non-orphan by an observed child, in
	// height order.
	softBlocks map[uint64]SoftBlock
}

// NewQueue returns an empty queue starting at head height 0.
func NewQueue() *Queue {
	return &Queue{
		pendingBlocks: make(map[uint64]map[[32]byte]SoftBlock),
		softBlocks:    make(map[uint64]SoftBlock),
	}
}

// Insert adds a block to the queue and re-runs the promotion walk.
// Stale or already-present blocks are still inserted, matching the
// original's behavior of logging rather than discarding them: a
// duplicate insert is a no-op overwrite, and a block below head height
// can never be promoted because removeDataBelowHeight will delete it
// again on the next successful promotion.
func (q *Queue) Insert(b *block.FilteredSequencerBlock) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sb := softBlockFrom(b)
	if q.isBlockPresent(sb) {
		log.Debug("block is already present in the queue", "height", sb.Height)
	}
	if sb.Height < q.headHeight {
		log.Debug("block is stale and will not be promoted", "height", sb.Height, "head_height", q.headHeight)
	}

	q.insertToPending(sb)
	q.updateInternalState()
}

// PopBlocks removes and returns every soft and head block in the queue,
// oldest to newest. A nil/empty return does not mean the queue is empty
// -- it means nothing in it is safe to execute yet.
func (q *Queue) PopBlocks() []SoftBlock {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []SoftBlock
	out = append(out, q.popSoftBlocksLocked()...)
	out = append(out, q.popHeadBlocksLocked()...)
	return out
}

func (q *Queue) popSoftBlocksLocked() []SoftBlock {
	if len(q.softBlocks) == 0 {
		return nil
	}
	heights := make([]uint64, 0, len(q.softBlocks))
	for h := range q.softBlocks {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	out := make([]SoftBlock, 0, len(heights))
	for _, h := range heights {
		out = append(out, q.softBlocks[h])
	}
	q.softBlocks = make(map[uint64]SoftBlock)

	q.headHeight = out[len(out)-1].Height + 1
	q.removeDataBelowHeightLocked(q.headHeight)
	return out
}

func (q *Queue) popHeadBlocksLocked() []SoftBlock {
	headBlocks, ok := q.pendingBlocks[q.headHeight]
	if !ok || len(headBlocks) == 0 {
		return nil
	}

	out := make([]SoftBlock, 0, len(headBlocks))
	for _, b := range headBlocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Hash[:]) < string(out[j].Hash[:])
	})

	q.headHeight = out[len(out)-1].Height + 1
	q.removeDataBelowHeightLocked(q.headHeight)
	return out
}

func (q *Queue) isBlockPresent(b SoftBlock) bool {
	if pending, ok := q.pendingBlocks[b.Height]; ok {
		if _, ok := pending[b.Hash]; ok {
			return true
		}
	}
	if soft, ok := q.softBlocks[b.Height]; ok && soft.Hash == b.Hash {
		return true
	}
	return false
}

// isBlockAParent reports whether some block already queued at b's child
// height names b's hash as its parent -- the one fact that proves b is
// not an orphan.
func (q *Queue) isBlockAParent(b SoftBlock) bool {
	children, ok := q.pendingBlocks[b.childHeight()]
	if !ok {
		return false
	}
	for _, child := range children {
		if child.ParentHash == b.Hash {
			return true
		}
	}
	return false
}

func (q *Queue) insertToPending(b SoftBlock) {
	bucket, ok := q.pendingBlocks[b.Height]
	if !ok {
		bucket = make(map[[32]byte]SoftBlock)
		q.pendingBlocks[b.Height] = bucket
	}
	bucket[b.Hash] = b
}

func (q *Queue) removeDataBelowHeightLocked(height uint64) {
	for h := range q.pendingBlocks {
		if h < height {
			delete(q.pendingBlocks, h)
		}
	}
}

// updateInternalState walks pending heights from lowest to highest.
// Starting from the current head height, each height that has a block
// with an observed child is promoted to soft_blocks and the head height
// advances past it, letting the walk continue into the next height. The
// walk stops the moment it reaches a height that is not (yet) the head,
// exactly as the original does -- a gap anywhere halts further
// promotion for this call.
func (q *Queue) updateInternalState() {
	heights := make([]uint64, 0, len(q.pendingBlocks))
	for h := range q.pendingBlocks {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	for _, height := range heights {
		if height != q.headHeight {
			break
		}
		promoted := false
		for _, b := range q.pendingBlocks[height] {
			if q.isBlockAParent(b) {
				q.softBlocks[height] = b
				q.mostRecentSoftHash = b.Hash
				q.headHeight = height + 1
				q.removeDataBelowHeightLocked(q.headHeight)
				promoted = true
				break
			}
		}
		if !promoted {
			break
		}
	}
}

// Len reports the number of blocks currently held (pending + soft),
// mirroring the test helper queue_len from the original.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, bucket := range q.pendingBlocks {
		n += len(bucket)
	}
	n += len(q.softBlocks)
	return n
}

// HeadHeight returns the height the queue is currently waiting on.
func (q *Queue) HeadHeight() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.headHeight
}

// SetHeadHeight seeds the queue's head height, used when the executor
// restarts from a commitment state that is already partway through the
// chain.
func (q *Queue) SetHeadHeight(height uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.headHeight = height
}

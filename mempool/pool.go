// Package mempool implements the pending-transaction pool: a priority
// queue keyed by (sender, nonce), a builder-queue iterator ordering
// transactions the way a block assembles them, and recost/prune
// maintenance triggered by fee changes and finalized blocks.
//
// No dependency in the retrieved example pack supplies a priority-queue
// library, so this package is one of the few places in the module that
// reaches for the standard library's container/heap instead of an
// ecosystem dependency — see DESIGN.md.
package mempool

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	insertedCounter = metrics.GetOrRegisterCounter("astria/mempool/inserted", nil)
	rejectedCounter = metrics.GetOrRegisterCounter("astria/mempool/rejected", nil)
	evictedCounter  = metrics.GetOrRegisterCounter("astria/mempool/evicted", nil)
	recostedCounter = metrics.GetOrRegisterCounter("astria/mempool/recosted", nil)
	poolSizeGauge   = metrics.GetOrRegisterGauge("astria/mempool/size", nil)
)

// Cost is the per-asset amount a transaction debits from its sender,
// supplied by the caller at insertion time (the pool does not itself
// simulate execution to discover it).
type Cost map[primitive.IbcPrefixed]uint64

// EvictionReason records why a transaction left the pool outside of
// normal block inclusion.
type EvictionReason int

const (
	// EvictedFailedRecost means the transaction's cost, recomputed after
	// a FeeChange/FeeAssetChange, now exceeds the sender's balance.
	EvictedFailedRecost EvictionReason = iota
	// EvictedStaleNonce means FinalizeBlock advanced the sender's nonce
	// past this transaction's.
	EvictedStaleNonce
	// EvictedNonceChainBroken means an earlier transaction from the same
	// sender failed during block assembly for a reason other than
	// InvalidNonce, invalidating every later transaction from that
	// sender.
	EvictedNonceChainBroken
)

// entry is one pooled transaction.
type entry struct {
	sender   primitive.Address
	nonce    uint32
	group    actions.Group
	priority uint64
	cost     Cost
	hash     [32]byte
	arrival  uint64

	heapIndex int
}

func priorityLess(a, b *entry) bool {
	if a.group != b.group {
		return a.group > b.group // higher group first
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.nonce != b.nonce {
		return a.nonce < b.nonce
	}
	return a.arrival < b.arrival
}

// entryHeap is a max-heap (by block-building priority) of every pooled
// transaction, used to drive the builder queue.
type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return priorityLess(h[i], h[j]) }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// senderState tracks the pool's view of one sender: its balance per
// asset as last supplied by the caller, and its pooled entries by nonce.
type senderState struct {
	balance Cost
	byNonce map[uint32]*entry
}

// Pool is the pending-transaction pool.
type Pool struct {
	mu sync.Mutex

	byHashEntries map[[32]byte]*entry
	bySender      map[string]*senderState
	order         uint64

	recostPending bool
}

// New constructs an empty Pool.
func New() *Pool {
	return &Pool{
		byHashEntries: make(map[[32]byte]*entry),
		bySender:      make(map[string]*senderState),
	}
}

func senderKey(addr primitive.Address) string {
	b := addr.AddressBytes()
	return string(b[:])
}

// Insert adds a transaction to the pool. balance is the sender's current
// balance per asset; cost is the amount this transaction will debit per
// asset. Insertion fails if the cost exceeds balance, or if an entry
// already exists at (sender, nonce) with priority greater than or equal
// to this one's.
func (p *Pool) Insert(sender primitive.Address, nonce uint32, group actions.Group, priority uint64, cost Cost, balance Cost, hash [32]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := checkAffordable(cost, balance); err != nil {
		rejectedCounter.Inc(1)
		return err
	}

	state := p.bySender[senderKey(sender)]
	if state == nil {
		state = &senderState{balance: balance, byNonce: make(map[uint32]*entry)}
		p.bySender[senderKey(sender)] = state
	} else {
		state.balance = balance
	}

	if existing, ok := state.byNonce[nonce]; ok && existing.priority >= priority {
		rejectedCounter.Inc(1)
		return fmt.Errorf("an equal-or-higher-priority transaction already exists at nonce %d", nonce)
	} else if ok {
		p.removeEntryLocked(existing)
	}

	e := &entry{
		sender:   sender,
		nonce:    nonce,
		group:    group,
		priority: priority,
		cost:     cost,
		hash:     hash,
		arrival:  p.order,
	}
	p.order++

	state.byNonce[nonce] = e
	p.byHashEntries[hash] = e
	insertedCounter.Inc(1)
	poolSizeGauge.Inc(1)
	return nil
}

func checkAffordable(cost, balance Cost) error {
	for asset, needed := range cost {
		if balance[asset] < needed {
			return fmt.Errorf("insufficient balance for asset %s: have %d, need %d", asset, balance[asset], needed)
		}
	}
	return nil
}

func (p *Pool) removeEntryLocked(e *entry) {
	delete(p.byHashEntries, e.hash)
	if state, ok := p.bySender[senderKey(e.sender)]; ok {
		delete(state.byNonce, e.nonce)
		if len(state.byNonce) == 0 {
			delete(p.bySender, senderKey(e.sender))
		}
	}
	poolSizeGauge.Dec(1)
}

// Len returns the number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byHashEntries)
}

// BuilderQueue returns every pooled transaction's (sender, nonce, hash)
// in block-building order: by group (highest first), then priority
// (highest first), then nonce (lowest first), then arrival order.
func (p *Pool) BuilderQueue() []BuilderEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := make(entryHeap, 0, len(p.byHashEntries))
	for _, e := range p.byHashEntries {
		h = append(h, e)
	}
	heap.Init(&h)

	out := make([]BuilderEntry, 0, len(h))
	for h.Len() > 0 {
		e := heap.Pop(&h).(*entry)
		out = append(out, BuilderEntry{
			Sender: e.sender,
			Nonce:  e.nonce,
			Group:  e.group,
			Hash:   e.hash,
		})
	}
	return out
}

// BuilderEntry is one transaction as surfaced by BuilderQueue.
type BuilderEntry struct {
	Sender primitive.Address
	Nonce  uint32
	Group  actions.Group
	Hash   [32]byte
}

// FlagForRecost marks the pool dirty after a FeeChange/FeeAssetChange
// commits, so the next Recost call actually does work.
func (p *Pool) FlagForRecost() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recostPending = true
}

// Recost re-evaluates every pooled transaction's cost using recompute,
// dropping any that now exceed the sender's last-known balance. It is a
// no-op unless FlagForRecost was called since the last Recost.
func (p *Pool) Recost(recompute func(sender primitive.Address, nonce uint32, oldCost Cost) Cost) []EvictedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.recostPending {
		return nil
	}
	p.recostPending = false

	var evicted []EvictedEntry
	for _, e := range p.byHashEntries {
		newCost := recompute(e.sender, e.nonce, e.cost)
		state := p.bySender[senderKey(e.sender)]
		if err := checkAffordable(newCost, state.balance); err != nil {
			evicted = append(evicted, EvictedEntry{Sender: e.sender, Nonce: e.nonce, Hash: e.hash, Reason: EvictedFailedRecost})
			continue
		}
		e.cost = newCost
	}
	for _, ev := range evicted {
		if e, ok := p.byHashEntries[ev.Hash]; ok {
			p.removeEntryLocked(e)
		}
	}
	if len(evicted) > 0 {
		recostedCounter.Inc(int64(len(evicted)))
		log.Info("mempool recost evicted transactions", "count", len(evicted))
	}
	return evicted
}

// EvictedEntry records one transaction removed from the pool along with
// why.
type EvictedEntry struct {
	Sender primitive.Address
	Nonce  uint32
	Hash   [32]byte
	Reason EvictionReason
}

// PruneFinalized drops every pooled transaction from sender with nonce
// less than or equal to newNonce, called once per sender touched by a
// just-finalized block.
func (p *Pool) PruneFinalized(sender primitive.Address, newNonce uint32) []EvictedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.bySender[senderKey(sender)]
	if !ok {
		return nil
	}
	var evicted []EvictedEntry
	for nonce, e := range state.byNonce {
		if nonce <= newNonce {
			evicted = append(evicted, EvictedEntry{Sender: sender, Nonce: nonce, Hash: e.hash, Reason: EvictedStaleNonce})
		}
	}
	for _, ev := range evicted {
		if e, ok := p.byHashEntries[ev.Hash]; ok {
			p.removeEntryLocked(e)
		}
	}
	return evicted
}

// EvictSenderChain drops every pooled transaction from sender with nonce
// greater than or equal to fromNonce, used when block assembly discovers
// a transaction failed for a reason other than InvalidNonce, which
// invalidates every later transaction from that sender in the same
// block (Block Assembly & Grouping).
func (p *Pool) EvictSenderChain(sender primitive.Address, fromNonce uint32) []EvictedEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.bySender[senderKey(sender)]
	if !ok {
		return nil
	}
	var evicted []EvictedEntry
	for nonce, e := range state.byNonce {
		if nonce >= fromNonce {
			evicted = append(evicted, EvictedEntry{Sender: sender, Nonce: nonce, Hash: e.hash, Reason: EvictedNonceChainBroken})
		}
	}
	for _, ev := range evicted {
		if e, ok := p.byHashEntries[ev.Hash]; ok {
			p.removeEntryLocked(e)
		}
	}
	if len(evicted) > 0 {
		evictedCounter.Inc(int64(len(evicted)))
	}
	return evicted
}

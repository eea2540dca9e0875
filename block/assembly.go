// Package block implements the shared transaction-ordering and
// speculative-execution routine used by both PrepareProposal and
// ProcessProposal (Block Assembly & Grouping).
package block

import (
	"errors"
	"fmt"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/astriaorg/astria-go/state"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	includedCounter         = metrics.GetOrRegisterCounter("astria/block/transactions_included", nil)
	evictedCounter          = metrics.GetOrRegisterCounter("astria/block/transactions_evicted", nil)
	proposalRejectedCounter = metrics.GetOrRegisterCounter("astria/block/proposals_rejected", nil)
)

// Mode selects which of the two ABCI stages Assemble is running for; the
// two differ only in budget enforcement and failure handling (Block
// Assembly & Grouping §4.5).
type Mode int

const (
	// Prepare builds a brand new proposal from the mempool.
	Prepare Mode = iota
	// Process validates a proposal authored by another validator.
	Process
)

// Tx is one candidate transaction as seen by block assembly: enough to
// enforce budgets and group ordering without re-deriving them from the
// wire encoding on every pass.
type Tx struct {
	Hash            [32]byte
	Sender          primitive.Address
	Nonce           uint32
	Group           actions.Group
	Actions         []actions.Action
	WireBytes       int
	RollupDataBytes int
}

// Budget bounds how many bytes a proposal may spend on the whole
// CometBFT block and, separately, on rollup-destined data.
type Budget struct {
	CometBFTMaxBytes            int
	SequencerMaxRollupDataBytes int
}

// Fingerprint identifies a specific proposal attempt. ProcessProposal
// reuses Prepare's execution results when the fingerprint matches,
// avoiding redundant re-execution by the proposer's own node.
type Fingerprint struct {
	ProposerAddress string
	Timestamp       int64
}

// Outcome is Assemble's result: the transactions actually included, any
// rejected during Prepare classified for mempool eviction, and (Process
// mode only) whether the proposal must be rejected outright.
type Outcome struct {
	Included         []Tx
	InvalidNonce     []Tx
	EvictedSenders   map[string]uint32 // sender key -> lowest evicted nonce
	ProposalRejected bool
	RejectReason     string
}

// senderKey must match mempool's own key derivation so callers can feed
// EvictedSenders straight to Pool.EvictSenderChain.
func senderKey(addr primitive.Address) string {
	b := addr.AddressBytes()
	return string(b[:])
}

// Execute is supplied by the caller (app/) and runs one transaction's
// actions against child, a fork of the proposal's delta; Assemble applies
// child to the proposal's delta only when Execute returns nil.
type Execute func(tx Tx, child *state.StateDelta) error

// Assemble visits candidates in their given (already group-and-priority
// sorted) order, enforcing budgets and group monotonicity, and executes
// each against a speculative fork of base. On Prepare, a transaction
// whose execution fails with actions.ErrInvalidNonce is set aside for the
// mempool to retain; any other execution failure evicts it and every
// later candidate from the same sender. On Process, any execution
// failure rejects the whole proposal.
func Assemble(mode Mode, budget Budget, candidates []Tx, base *state.StateDelta, execute Execute) (*Outcome, error) {
	out := &Outcome{EvictedSenders: make(map[string]uint32)}

	// The current group starts at the highest-priority group so that
	// whatever the first visited transaction's group is, it is always
	// eligible; from there groups may only decrease through the block.
	currentGroup := actions.UnbundleableSudo

	cometBFTBytesUsed := 0
	rollupDataBytesUsed := 0
	brokenSenders := make(map[string]bool)

	for _, tx := range candidates {
		key := senderKey(tx.Sender)
		if brokenSenders[key] {
			continue
		}

		if mode == Prepare && cometBFTBytesUsed+tx.WireBytes > budget.CometBFTMaxBytes {
			continue
		}
		if rollupDataBytesUsed+tx.RollupDataBytes > budget.SequencerMaxRollupDataBytes {
			if mode == Process {
				out.ProposalRejected = true
				out.RejectReason = "sequencer rollup-data byte budget exceeded"
				proposalRejectedCounter.Inc(1)
				return out, nil
			}
			continue
		}
		if tx.Group > currentGroup {
			if mode == Process {
				out.ProposalRejected = true
				out.RejectReason = "transaction groups are not monotonically non-increasing"
				proposalRejectedCounter.Inc(1)
				return out, nil
			}
			continue
		}

		child := base.Fork()
		err := execute(tx, child)
		if err == nil {
			base.Apply(child)
			cometBFTBytesUsed += tx.WireBytes
			rollupDataBytesUsed += tx.RollupDataBytes
			currentGroup = tx.Group
			out.Included = append(out.Included, tx)
			includedCounter.Inc(1)
			continue
		}

		if mode == Process {
			out.ProposalRejected = true
			out.RejectReason = fmt.Sprintf("transaction execution failed: %v", err)
			proposalRejectedCounter.Inc(1)
			return out, nil
		}

		if errors.Is(err, actions.ErrInvalidNonce) {
			out.InvalidNonce = append(out.InvalidNonce, tx)
			continue
		}

		log.Info("evicting transaction and same-sender nonce chain", "sender", tx.Sender.String(), "nonce", tx.Nonce, "err", err)
		brokenSenders[key] = true
		if existing, ok := out.EvictedSenders[key]; !ok || tx.Nonce < existing {
			out.EvictedSenders[key] = tx.Nonce
		}
		evictedCounter.Inc(1)
	}

	return out, nil
}

// Package actions implements the two-phase CheckStateless/CheckAndExecute
// contract for every transaction action variant, grounded on the
// per-variant validation rules of the original action handlers.
package actions

import (
	"fmt"

	"github.com/astriaorg/astria-go/accounts"
	"github.com/astriaorg/astria-go/bridge"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/astriaorg/astria-go/state"
)

// Group is the priority class an action belongs to. A transaction's
// group is the group of its single action if it is unbundleable, or
// BundleableGeneral/BundleableSudo of its most sudo-privileged action
// otherwise. Higher values execute earlier in a block; groups must be
// monotonically non-increasing through a block (Block Assembly &
// Grouping).
type Group int

const (
	// BundleableGeneral actions may share a transaction with other
	// bundleable actions and carry no elevated privilege.
	BundleableGeneral Group = iota
	// BundleableSudo actions may be bundled but require a sudo/privileged
	// signer.
	BundleableSudo
	// UnbundleableGeneral actions must be the sole action in their
	// transaction but carry no elevated privilege.
	UnbundleableGeneral
	// UnbundleableSudo actions must be the sole action in their
	// transaction and require a sudo/privileged signer.
	UnbundleableSudo
)

// Unbundleable reports whether a transaction carrying an action of this
// group must contain no other actions.
func (g Group) Unbundleable() bool {
	return g == UnbundleableGeneral || g == UnbundleableSudo
}

// Deposit is emitted into a block's deposit bag by BridgeLock, to be
// relayed to the destination rollup.
type Deposit struct {
	BridgeAddress   primitive.Address
	RollupId        primitive.RollupId
	Amount          uint64
	Asset           primitive.Asset
	DestinationAddr string

	// SourceTxId and SourceActionIndex identify the originating
	// transaction and the BridgeLock's position within it, so the
	// destination rollup can correlate a deposit back to the
	// sequencer transaction that produced it (Data Model §3, Deposit).
	SourceTxId        [32]byte
	SourceActionIndex uint32
}

// Event is a generic ABCI event recorded by an action handler.
type Event struct {
	Type  string
	Attrs map[string]string
}

// ValidatorUpdate is buffered by ValidatorUpdate actions and applied at
// end-of-block.
type ValidatorUpdate struct {
	PubKey []byte
	Power  int64
}

// Context bundles every piece of mutable state and block-scratch an
// action handler may need. One Context is built per transaction and
// shared by every action within it, so e.g. a fee charged by an earlier
// action in the same transaction is visible to a later one.
type Context struct {
	Accounts *accounts.Accessor
	Bridge   *bridge.Accessor
	Delta    *state.StateDelta

	// Signer is the transaction's verified sender, copied from the
	// transaction into the Context by the ABCI application before
	// execution begins.
	Signer primitive.Address
	// BaseAddressPrefix is the chain's configured bech32m prefix, used to
	// validate Transfer destinations.
	BaseAddressPrefix string

	// TxHash and ActionIndex identify the action currently executing,
	// for handlers (BridgeLock) that must stamp emitted Deposits with
	// their source.
	TxHash      [32]byte
	ActionIndex uint32

	Deposits         *[]Deposit
	Events           *[]Event
	ValidatorUpdates *[]ValidatorUpdate
	FeeBag           map[primitive.IbcPrefixed]uint64
}

// ChargeFee debits the signer's balance by fee in asset and accumulates
// it into the block's fee bag for end-of-block transfer to the sudo
// address.
func (c *Context) ChargeFee(asset primitive.Asset, fee uint64) error {
	if fee == 0 {
		return nil
	}
	if err := c.Accounts.DecreaseBalance(c.Signer, asset, fee); err != nil {
		return fmt.Errorf("charging fee: %w", err)
	}
	c.FeeBag[asset.ToIbcPrefixed()] += fee
	return nil
}

// ErrInvalidNonce is classified specially by Block Assembly: a
// transaction failing with it stays in the mempool rather than being
// evicted, since it may become valid at a later nonce.
var ErrInvalidNonce = fmt.Errorf("invalid nonce")

// Action is implemented by every transaction action variant.
type Action interface {
	Group() Group
	// CheckStateless performs pure, shape/size validation with no state
	// access.
	CheckStateless() error
	// CheckAndExecute validates against current state and mutates it.
	CheckAndExecute(ctx *Context) error
}

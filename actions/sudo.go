package actions

import (
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/astriaorg/astria-go/state"
)

const sudoAddressKey = "sudo/address"

// GetSudoAddress returns the chain's current sudo address, if one has been
// set (genesis initialization is expected to set it before any sudo
// action executes).
func GetSudoAddress(delta *state.StateDelta) (primitive.Address, bool) {
	raw, err := delta.GetVerifiable(sudoAddressKey)
	if err != nil || raw == nil {
		return primitive.Address{}, false
	}
	addr, err := primitive.NewAddress(raw, "")
	if err != nil {
		return primitive.Address{}, false
	}
	return addr, true
}

// SudoAddressChange replaces the chain's sudo address. The signer must be
// the current sudo address; that check happens at the ABCI application
// layer, which is the sole holder of "current sudo address" outside of
// this package's own storage for it.
type SudoAddressChange struct {
	NewAddress primitive.Address
}

// Group implements Action.
func (SudoAddressChange) Group() Group { return UnbundleableSudo }

// CheckStateless implements Action.
func (SudoAddressChange) CheckStateless() error { return nil }

// CheckAndExecute implements Action.
func (s SudoAddressChange) CheckAndExecute(ctx *Context) error {
	ctx.Delta.PutVerifiable(sudoAddressKey, s.NewAddress.Bytes())
	return nil
}

// FeeChange updates the fee schedule entry for a named action variant.
type FeeChange struct {
	ActionName string
	NewFee     uint64
}

// Group implements Action.
func (FeeChange) Group() Group { return UnbundleableSudo }

// CheckStateless implements Action.
func (f FeeChange) CheckStateless() error {
	if f.ActionName == "" {
		return fmt.Errorf("action name must not be empty")
	}
	return nil
}

// CheckAndExecute implements Action.
func (f FeeChange) CheckAndExecute(ctx *Context) error {
	ctx.Accounts.PutActionFee(f.ActionName, f.NewFee)
	return nil
}

// FeeAssetChangeKind selects whether a FeeAssetChange adds or removes an
// asset from the allowed-fee-asset set.
type FeeAssetChangeKind int

const (
	// FeeAssetAddition adds an asset to the allowed set.
	FeeAssetAddition FeeAssetChangeKind = iota
	// FeeAssetRemoval removes an asset, and is rejected if doing so would
	// empty the set.
	FeeAssetRemoval
)

// FeeAssetChange adds or removes an asset from the allowed-fee-asset set.
type FeeAssetChange struct {
	Kind  FeeAssetChangeKind
	Asset primitive.Asset
}

// Group implements Action.
func (FeeAssetChange) Group() Group { return UnbundleableSudo }

// CheckStateless implements Action.
func (FeeAssetChange) CheckStateless() error { return nil }

// CheckAndExecute implements Action. Removal is checked against the
// post-removal set, not the pre-removal one, matching the original
// handler's double-check (SPEC_FULL.md §C.7).
func (f FeeAssetChange) CheckAndExecute(ctx *Context) error {
	switch f.Kind {
	case FeeAssetAddition:
		return ctx.Accounts.AddAllowedFeeAsset(f.Asset.ToIbcPrefixed())
	case FeeAssetRemoval:
		return ctx.Accounts.RemoveAllowedFeeAsset(f.Asset.ToIbcPrefixed())
	default:
		return fmt.Errorf("unknown fee asset change kind %d", f.Kind)
	}
}

// IbcSudoChange replaces the chain's IBC sudo address.
type IbcSudoChange struct {
	NewAddress primitive.Address
}

// Group implements Action.
func (IbcSudoChange) Group() Group { return UnbundleableSudo }

// CheckStateless implements Action.
func (IbcSudoChange) CheckStateless() error { return nil }

// CheckAndExecute implements Action.
func (i IbcSudoChange) CheckAndExecute(ctx *Context) error {
	ctx.Bridge.PutIbcSudoAddress(i.NewAddress)
	return nil
}

// IbcRelayerChangeKind selects whether an IbcRelayerChange adds or
// removes an address from the allowed-relayer set.
type IbcRelayerChangeKind int

const (
	// IbcRelayerAddition adds an address to the allowed-relayer set.
	IbcRelayerAddition IbcRelayerChangeKind = iota
	// IbcRelayerRemoval removes an address from the allowed-relayer set.
	IbcRelayerRemoval
)

// IbcRelayerChange adds or removes an address from the allowed IBC
// relayer set.
type IbcRelayerChange struct {
	Kind    IbcRelayerChangeKind
	Address primitive.Address
}

// Group implements Action.
func (IbcRelayerChange) Group() Group { return UnbundleableSudo }

// CheckStateless implements Action.
func (IbcRelayerChange) CheckStateless() error { return nil }

// CheckAndExecute implements Action.
func (c IbcRelayerChange) CheckAndExecute(ctx *Context) error {
	switch c.Kind {
	case IbcRelayerAddition:
		return ctx.Bridge.AddIbcRelayer(c.Address)
	case IbcRelayerRemoval:
		return ctx.Bridge.RemoveIbcRelayer(c.Address)
	default:
		return fmt.Errorf("unknown ibc relayer change kind %d", c.Kind)
	}
}

package actions

import (
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
)

// InitBridgeAccount registers the signer as a bridge account for
// rollupID, fails if the signer already is one, and defaults sudo and
// withdrawer to the signer when left unset.
type InitBridgeAccount struct {
	RollupId   primitive.RollupId
	Asset      primitive.Asset
	Sudo       *primitive.Address
	Withdrawer *primitive.Address
	Fee        uint64
	FeeAsset   primitive.Asset
}

// Group implements Action.
func (InitBridgeAccount) Group() Group { return UnbundleableGeneral }

// CheckStateless implements Action.
func (InitBridgeAccount) CheckStateless() error { return nil }

// CheckAndExecute implements Action.
func (a InitBridgeAccount) CheckAndExecute(ctx *Context) error {
	if err := ctx.ChargeFee(a.FeeAsset, a.Fee); err != nil {
		return err
	}
	return ctx.Bridge.InitAccount(ctx.Signer, a.RollupId, a.Asset, a.Sudo, a.Withdrawer)
}

// BridgeLock transfers an asset into a bridge account and emits a
// Deposit for the destination rollup to observe.
type BridgeLock struct {
	To                   primitive.Address
	Asset                primitive.Asset
	Amount               uint64
	DestinationChainAddr string
	Fee                  uint64
	FeeAsset             primitive.Asset
}

// Group implements Action.
func (BridgeLock) Group() Group { return BundleableGeneral }

// CheckStateless implements Action.
func (b BridgeLock) CheckStateless() error {
	if b.Amount == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	return nil
}

// CheckAndExecute implements Action. The destination must be a bridge
// account and the asset must equal that account's registered allowed
// asset; execution is an internal Transfer followed by a Deposit.
func (b BridgeLock) CheckAndExecute(ctx *Context) error {
	acc, ok, err := ctx.Bridge.GetAccount(b.To)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("destination is not a bridge account")
	}
	if acc.IbcAsset != b.Asset.ToIbcPrefixed() {
		return fmt.Errorf("asset does not match the bridge account's allowed asset")
	}

	if err := ctx.ChargeFee(b.FeeAsset, b.Fee); err != nil {
		return err
	}
	if err := ctx.Accounts.DecreaseBalance(ctx.Signer, b.Asset, b.Amount); err != nil {
		return fmt.Errorf("bridge lock: %w", err)
	}
	if err := ctx.Accounts.IncreaseBalance(b.To, b.Asset, b.Amount); err != nil {
		return fmt.Errorf("bridge lock: %w", err)
	}

	*ctx.Deposits = append(*ctx.Deposits, Deposit{
		BridgeAddress:     b.To,
		RollupId:          acc.RollupId,
		Amount:            b.Amount,
		Asset:             b.Asset,
		DestinationAddr:   b.DestinationChainAddr,
		SourceTxId:        ctx.TxHash,
		SourceActionIndex: ctx.ActionIndex,
	})
	*ctx.Events = append(*ctx.Events, Event{
		Type: "bridge_lock",
		Attrs: map[string]string{
			"bridge_address": b.To.String(),
			"amount":         fmt.Sprintf("%d", b.Amount),
		},
	})
	return nil
}

// BridgeUnlock withdraws funds from a bridge account back to the chain,
// authorized by the account's registered withdrawer, deduplicated by
// rollup_withdrawal_event_id.
type BridgeUnlock struct {
	BridgeAddress         primitive.Address
	To                    primitive.Address
	Amount                uint64
	RollupWithdrawalEventID string
	RollupBlockNumber     uint64
	Fee                   uint64
	FeeAsset              primitive.Asset
}

// Group implements Action.
func (BridgeUnlock) Group() Group { return BundleableGeneral }

// CheckStateless implements Action.
func (b BridgeUnlock) CheckStateless() error {
	if l := len(b.RollupWithdrawalEventID); l < 1 || l > 256 {
		return fmt.Errorf("rollup withdrawal event id must be 1 to 256 bytes, got %d", l)
	}
	return nil
}

// CheckAndExecute implements Action.
func (b BridgeUnlock) CheckAndExecute(ctx *Context) error {
	acc, ok, err := ctx.Bridge.GetAccount(b.BridgeAddress)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not a bridge account")
	}
	if !acc.WithdrawerAddress().Equal(ctx.Signer) {
		return fmt.Errorf("signer is not the bridge's withdrawer")
	}

	if err := ctx.Bridge.CheckAndRecordWithdrawalEvent(b.BridgeAddress, b.RollupWithdrawalEventID, b.RollupBlockNumber); err != nil {
		return err
	}

	asset := primitive.NewIbcPrefixedAsset(acc.IbcAsset)
	if err := ctx.ChargeFee(b.FeeAsset, b.Fee); err != nil {
		return err
	}
	if err := ctx.Accounts.DecreaseBalance(b.BridgeAddress, asset, b.Amount); err != nil {
		return fmt.Errorf("bridge unlock: %w", err)
	}
	if err := ctx.Accounts.IncreaseBalance(b.To, asset, b.Amount); err != nil {
		return fmt.Errorf("bridge unlock: %w", err)
	}
	return nil
}

// BridgeSudoChange updates a bridge account's sudo/withdrawer addresses,
// authorized by the account's current sudo address. Supplemented per
// SPEC_FULL.md §C.6.
type BridgeSudoChange struct {
	BridgeAddress  primitive.Address
	NewSudo        *primitive.Address
	NewWithdrawer  *primitive.Address
	Fee            uint64
	FeeAsset       primitive.Asset
}

// Group implements Action.
func (BridgeSudoChange) Group() Group { return BundleableSudo }

// CheckStateless implements Action.
func (BridgeSudoChange) CheckStateless() error { return nil }

// CheckAndExecute implements Action.
func (b BridgeSudoChange) CheckAndExecute(ctx *Context) error {
	acc, ok, err := ctx.Bridge.GetAccount(b.BridgeAddress)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not a bridge account")
	}
	if !acc.SudoAddress().Equal(ctx.Signer) {
		return fmt.Errorf("signer is not the bridge's sudo address")
	}
	if err := ctx.ChargeFee(b.FeeAsset, b.Fee); err != nil {
		return err
	}
	return ctx.Bridge.UpdateSudoAndWithdrawer(b.BridgeAddress, b.NewSudo, b.NewWithdrawer)
}

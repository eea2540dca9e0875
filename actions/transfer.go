package actions

import (
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
)

// Transfer moves an asset balance from the signer to a destination
// address.
type Transfer struct {
	To     primitive.Address
	Asset  primitive.Asset
	Amount uint64
	Fee    uint64
}

// Group implements Action.
func (Transfer) Group() Group { return BundleableGeneral }

// CheckStateless implements Action.
func (t Transfer) CheckStateless() error {
	if t.Amount == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	return nil
}

// CheckAndExecute implements Action. The sender must not be a bridge
// account (those exit only via BridgeUnlock) and the destination must
// share the chain's configured base address prefix.
func (t Transfer) CheckAndExecute(ctx *Context) error {
	isBridge, err := ctx.Bridge.IsBridgeAccount(ctx.Signer)
	if err != nil {
		return err
	}
	if isBridge {
		return fmt.Errorf("bridge accounts cannot send a Transfer, use BridgeUnlock")
	}
	if ctx.BaseAddressPrefix != "" && t.To.Prefix() != "" && t.To.Prefix() != ctx.BaseAddressPrefix {
		return fmt.Errorf("destination address does not match base prefix %q", ctx.BaseAddressPrefix)
	}

	if err := ctx.ChargeFee(t.Asset, t.Fee); err != nil {
		return err
	}
	if err := ctx.Accounts.DecreaseBalance(ctx.Signer, t.Asset, t.Amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if err := ctx.Accounts.IncreaseBalance(t.To, t.Asset, t.Amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

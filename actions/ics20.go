package actions

import (
	"fmt"
	"strings"

	"github.com/astriaorg/astria-go/primitive"
)

// Ics20Withdrawal moves funds out over IBC. If BridgeAddress is set the
// signer must be its withdrawer and RollupEventID is deduplicated exactly
// like BridgeUnlock. The rollup return address, withdrawal event id and
// rollup block number are carried as fields of the action; Memo is not
// parsed, only length-checked.
type Ics20Withdrawal struct {
	Amount            uint64
	Denom             primitive.Asset
	Receiver          string
	SourcePort        string
	SourceChannel     string
	TimeoutTime       uint64
	Memo              string
	BridgeAddress     *primitive.Address
	RollupReturnAddr  string
	RollupEventID     string
	RollupBlockNumber uint64
	Fee               uint64
	FeeAsset          primitive.Asset
}

// Group implements Action.
func (Ics20Withdrawal) Group() Group { return BundleableGeneral }

// CheckStateless implements Action.
func (w Ics20Withdrawal) CheckStateless() error {
	if w.Amount == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	if len(w.Memo) > 64 {
		return fmt.Errorf("memo must not be more than 64 bytes")
	}
	if w.TimeoutTime == 0 {
		return fmt.Errorf("timeout time must be non-zero")
	}
	if w.BridgeAddress != nil {
		if l := len(w.RollupEventID); l < 1 || l > 256 {
			return fmt.Errorf("rollup withdrawal event id must be 1 to 256 bytes, got %d", l)
		}
	}
	return nil
}

// CheckAndExecute implements Action. When the chain is the *source* of
// the asset (its trace denom does not begin with this channel's own
// port/channel hop), funds move into a per-channel escrow balance;
// otherwise they are burned, since the chain is merely unwinding a trace
// that passed through it.
func (w Ics20Withdrawal) CheckAndExecute(ctx *Context) error {
	payer := ctx.Signer
	if w.BridgeAddress != nil {
		acc, ok, err := ctx.Bridge.GetAccount(*w.BridgeAddress)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("bridge address is not a bridge account")
		}
		if !acc.WithdrawerAddress().Equal(ctx.Signer) {
			return fmt.Errorf("signer is not the bridge's withdrawer")
		}
		if err := ctx.Bridge.CheckAndRecordWithdrawalEvent(*w.BridgeAddress, w.RollupEventID, w.RollupBlockNumber); err != nil {
			return err
		}
		payer = *w.BridgeAddress
	}

	if err := ctx.ChargeFee(w.FeeAsset, w.Fee); err != nil {
		return err
	}
	if err := ctx.Accounts.DecreaseBalance(payer, w.Denom, w.Amount); err != nil {
		return fmt.Errorf("ics20 withdrawal: %w", err)
	}

	if w.isSource() {
		escrowKey := fmt.Sprintf("ibc/escrow/%s/%s", w.SourceChannel, w.Denom.ToIbcPrefixed())
		current, err := ctx.Delta.GetVerifiable(escrowKey)
		if err != nil {
			return fmt.Errorf("reading escrow balance: %w", err)
		}
		ctx.Delta.PutVerifiable(escrowKey, addUint64(current, w.Amount))
	}
	// else: burned — the debit above is the entire effect.

	*ctx.Events = append(*ctx.Events, Event{
		Type: "ics20_withdrawal",
		Attrs: map[string]string{
			"receiver": w.Receiver,
			"amount":   fmt.Sprintf("%d", w.Amount),
		},
	})
	return nil
}

// isSource reports whether the chain is the source of the withdrawn
// denom: its trace does not begin with this withdrawal's own
// port/channel hop.
func (w Ics20Withdrawal) isSource() bool {
	trace, ok := w.Denom.TraceDenom()
	if !ok {
		return false
	}
	prefix := fmt.Sprintf("%s/%s/", w.SourcePort, w.SourceChannel)
	return !strings.HasPrefix(trace, prefix)
}

func addUint64(existing []byte, amount uint64) []byte {
	var current uint64
	if len(existing) == 8 {
		for _, b := range existing {
			current = current<<8 | uint64(b)
		}
	}
	current += amount
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(current)
		current >>= 8
	}
	return buf
}

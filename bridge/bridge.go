// Package bridge implements the bridge-account registry, IBC
// relayer/sudo policy, and withdrawal-event dedup table (Bridge & IBC
// State).
package bridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/astriaorg/astria-go/state"
)

const (
	ibcSudoAddressKey = "bridge/ibc_sudo_address"
	ibcRelayerSetKey  = "bridge/ibc_relayers"
)

func bridgeAccountKey(addr primitive.Address) string {
	raw := addr.AddressBytes()
	return fmt.Sprintf("bridge/accounts/%s", hex.EncodeToString(raw[:]))
}

func withdrawalEventKey(addr primitive.Address, eventID string) string {
	raw := addr.AddressBytes()
	return fmt.Sprintf("bridge/withdrawal_events/%s/%s", hex.EncodeToString(raw[:]), eventID)
}

// Account is the on-chain record of a bridge account: the rollup it
// bridges to, the asset it is allowed to hold, and its sudo/withdrawer
// addresses.
type Account struct {
	RollupId               primitive.RollupId         `json:"rollup_id"`
	IbcAsset               primitive.IbcPrefixed      `json:"ibc_asset"`
	SudoAddressBytes       [primitive.AddressLen]byte `json:"sudo_address"`
	WithdrawerAddressBytes [primitive.AddressLen]byte `json:"withdrawer_address"`
}

// SudoAddress returns the bridge account's current sudo address.
func (a Account) SudoAddress() primitive.Address {
	addr, _ := primitive.NewAddress(a.SudoAddressBytes[:], "")
	return addr
}

// WithdrawerAddress returns the bridge account's current withdrawer
// address.
func (a Account) WithdrawerAddress() primitive.Address {
	addr, _ := primitive.NewAddress(a.WithdrawerAddressBytes[:], "")
	return addr
}

// ErrNotABridgeAccount is returned when a bridge-only operation targets
// an address with no bridge account record.
var ErrNotABridgeAccount = fmt.Errorf("account is not a bridge account")

// ErrAlreadyABridgeAccount is returned by InitBridgeAccount when the
// target address already has a bridge account record.
var ErrAlreadyABridgeAccount = fmt.Errorf("account is already a bridge account")

// ErrWithdrawalEventAlreadyProcessed is returned when a
// rollup_withdrawal_event_id has already been recorded for a bridge
// account, enforcing at-most-once processing.
var ErrWithdrawalEventAlreadyProcessed = fmt.Errorf("withdrawal event id already processed")

// Accessor exposes bridge-state operations over a single StateDelta.
type Accessor struct {
	delta *state.StateDelta
}

// NewAccessor wraps a delta for bridge-state reads/writes.
func NewAccessor(delta *state.StateDelta) *Accessor {
	return &Accessor{delta: delta}
}

// GetAccount returns the bridge account record at addr, and whether one
// exists.
func (a *Accessor) GetAccount(addr primitive.Address) (Account, bool, error) {
	raw, err := a.delta.GetVerifiable(bridgeAccountKey(addr))
	if err != nil {
		return Account{}, false, fmt.Errorf("reading bridge account: %w", err)
	}
	if raw == nil {
		return Account{}, false, nil
	}
	var acc Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return Account{}, false, fmt.Errorf("decoding bridge account: %w", err)
	}
	return acc, true, nil
}

// IsBridgeAccount reports whether addr has a bridge account record.
func (a *Accessor) IsBridgeAccount(addr primitive.Address) (bool, error) {
	_, ok, err := a.GetAccount(addr)
	return ok, err
}

// InitAccount creates a new bridge account record at addr. It fails with
// ErrAlreadyABridgeAccount if one already exists. sudo and withdrawer
// default to the signer (addr) when left unset by the caller, per
// InitBridgeAccount's contract.
func (a *Accessor) InitAccount(addr primitive.Address, rollupID primitive.RollupId, asset primitive.Asset, sudo, withdrawer *primitive.Address) error {
	_, exists, err := a.GetAccount(addr)
	if err != nil {
		return err
	}
	if exists {
		return ErrAlreadyABridgeAccount
	}

	sudoAddr := addr
	if sudo != nil {
		sudoAddr = *sudo
	}
	withdrawerAddr := addr
	if withdrawer != nil {
		withdrawerAddr = *withdrawer
	}

	acc := Account{
		RollupId:               rollupID,
		IbcAsset:               asset.ToIbcPrefixed(),
		SudoAddressBytes:       sudoAddr.AddressBytes(),
		WithdrawerAddressBytes: withdrawerAddr.AddressBytes(),
	}
	return a.putAccount(addr, acc)
}

// UpdateSudoAndWithdrawer applies a BridgeSudoChange: new sudo and/or
// withdrawer addresses, authorized by the account's *current* sudo
// address (checked by the caller before invoking this).
func (a *Accessor) UpdateSudoAndWithdrawer(addr primitive.Address, newSudo, newWithdrawer *primitive.Address) error {
	acc, exists, err := a.GetAccount(addr)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotABridgeAccount
	}
	if newSudo != nil {
		acc.SudoAddressBytes = newSudo.AddressBytes()
	}
	if newWithdrawer != nil {
		acc.WithdrawerAddressBytes = newWithdrawer.AddressBytes()
	}
	return a.putAccount(addr, acc)
}

func (a *Accessor) putAccount(addr primitive.Address, acc Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("encoding bridge account: %w", err)
	}
	a.delta.PutVerifiable(bridgeAccountKey(addr), raw)
	return nil
}

// CheckAndRecordWithdrawalEvent enforces at-most-once processing of a
// rollup_withdrawal_event_id for a bridge account: it fails if the event
// id has already been recorded, and otherwise records it against the
// rollup block number that produced it.
func (a *Accessor) CheckAndRecordWithdrawalEvent(addr primitive.Address, eventID string, rollupBlockNumber uint64) error {
	key := withdrawalEventKey(addr, eventID)
	raw, err := a.delta.GetVerifiable(key)
	if err != nil {
		return fmt.Errorf("reading withdrawal event: %w", err)
	}
	if raw != nil {
		return ErrWithdrawalEventAlreadyProcessed
	}
	a.delta.PutVerifiable(key, encodeUint64(rollupBlockNumber))
	return nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}

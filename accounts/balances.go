package accounts

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/astriaorg/astria-go/state"
)

// ErrInsufficientFunds is returned by DecreaseBalance when an account's
// balance is below the requested decrement.
var ErrInsufficientFunds = fmt.Errorf("insufficient funds")

// Accessor exposes typed account operations over a single StateDelta, the
// unit of speculative execution a transaction runs against.
type Accessor struct {
	delta *state.StateDelta
}

// NewAccessor wraps a delta for typed account reads/writes.
func NewAccessor(delta *state.StateDelta) *Accessor {
	return &Accessor{delta: delta}
}

// GetBalance returns an account's balance of asset, or zero if the
// account has never held it.
func (a *Accessor) GetBalance(addr primitive.Address, asset primitive.Asset) (uint64, error) {
	raw, err := a.delta.GetVerifiable(balanceStorageKey(addr, asset))
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	if raw == nil {
		return 0, nil
	}
	return decodeUint64(raw), nil
}

// PutBalance sets an account's balance of asset outright.
func (a *Accessor) PutBalance(addr primitive.Address, asset primitive.Asset, amount uint64) {
	a.delta.PutVerifiable(balanceStorageKey(addr, asset), encodeUint64(amount))
}

// IncreaseBalance credits amount to an account's balance of asset.
func (a *Accessor) IncreaseBalance(addr primitive.Address, asset primitive.Asset, amount uint64) error {
	current, err := a.GetBalance(addr, asset)
	if err != nil {
		return err
	}
	next := current + amount
	if next < current {
		return fmt.Errorf("balance overflow crediting %d to account with balance %d", amount, current)
	}
	a.PutBalance(addr, asset, next)
	return nil
}

// DecreaseBalance debits amount from an account's balance of asset,
// failing with ErrInsufficientFunds on underflow.
func (a *Accessor) DecreaseBalance(addr primitive.Address, asset primitive.Asset, amount uint64) error {
	current, err := a.GetBalance(addr, asset)
	if err != nil {
		return err
	}
	if current < amount {
		return fmt.Errorf("%w: balance %d, requested decrement %d", ErrInsufficientFunds, current, amount)
	}
	a.PutBalance(addr, asset, current-amount)
	return nil
}

// GetNonce returns an account's current nonce, or zero if unset.
func (a *Accessor) GetNonce(addr primitive.Address) (uint32, error) {
	raw, err := a.delta.GetVerifiable(nonceStorageKey(addr))
	if err != nil {
		return 0, fmt.Errorf("reading nonce: %w", err)
	}
	if raw == nil {
		return 0, nil
	}
	return uint32(decodeUint64(raw)), nil
}

// PutNonce sets an account's nonce outright.
func (a *Accessor) PutNonce(addr primitive.Address, nonce uint32) {
	a.delta.PutVerifiable(nonceStorageKey(addr), encodeUint64(uint64(nonce)))
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(raw []byte) uint64 {
	if len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

// AssetBalance pairs an asset with the holding account's balance of it,
// as yielded by Snapshot.AccountAssetBalances.
type AssetBalance struct {
	Asset   primitive.Asset
	Balance uint64
}

// Snapshot exposes read-only, iteration-capable account queries over a
// committed Store, used by the gRPC query surface and by tests pinning
// storage key stability.
type Snapshot struct {
	store *state.Store
}

// NewSnapshot wraps a committed Store for account queries.
func NewSnapshot(store *state.Store) *Snapshot {
	return &Snapshot{store: store}
}

// AccountNonce returns an account's current committed nonce, or zero if
// unset — used by the gRPC query surface and by the composer's
// nonce-fetch (Composer Executor §4.8).
func (s *Snapshot) AccountNonce(addr primitive.Address) (uint32, error) {
	raw, err := s.store.GetVerifiable(nonceStorageKey(addr))
	if err != nil {
		return 0, fmt.Errorf("reading nonce: %w", err)
	}
	if raw == nil {
		return 0, nil
	}
	return uint32(decodeUint64(raw)), nil
}

// AccountAssetBalances streams every (asset, balance) pair an account
// currently holds, in ascending ibc-prefixed-asset order.
func (s *Snapshot) AccountAssetBalances(addr primitive.Address) ([]AssetBalance, error) {
	var out []AssetBalance
	prefix := assetBalancePrefix(addr)
	err := s.store.IterateVerifiablePrefix(prefix, func(key string, value []byte) error {
		idHex := strings.TrimPrefix(key[len(prefix):], "ibc/")
		var ibc primitive.IbcPrefixed
		decoded, err := hex.DecodeString(idHex)
		if err != nil {
			return fmt.Errorf("decoding asset id in key %q: %w", key, err)
		}
		copy(ibc[:], decoded)
		out = append(out, AssetBalance{
			Asset:   primitive.NewIbcPrefixedAsset(ibc),
			Balance: decodeUint64(value),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

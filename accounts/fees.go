package accounts

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
)

// ErrLastFeeAssetRemoval is returned when an allowed-fee-asset removal
// would leave the set empty.
var ErrLastFeeAssetRemoval = fmt.Errorf("cannot remove the last allowed fee asset")

// GetTransferBaseFee returns the flat fee charged per Transfer action.
func (a *Accessor) GetTransferBaseFee() (uint64, error) {
	raw, err := a.delta.GetVerifiable(transferBaseFeeKey)
	if err != nil {
		return 0, fmt.Errorf("reading transfer base fee: %w", err)
	}
	if raw == nil {
		return 0, nil
	}
	return decodeUint64(raw), nil
}

// PutTransferBaseFee sets the flat fee charged per Transfer action.
func (a *Accessor) PutTransferBaseFee(fee uint64) {
	a.delta.PutVerifiable(transferBaseFeeKey, encodeUint64(fee))
}

// GetActionFee returns the fee schedule entry for a named action variant
// ("bridge_lock", "ics20_withdrawal", ...), or zero if unset.
func (a *Accessor) GetActionFee(actionName string) (uint64, error) {
	raw, err := a.delta.GetVerifiable(feeRecordKey(actionName))
	if err != nil {
		return 0, fmt.Errorf("reading fee for %s: %w", actionName, err)
	}
	if raw == nil {
		return 0, nil
	}
	return decodeUint64(raw), nil
}

// PutActionFee sets the fee schedule entry for a named action variant.
func (a *Accessor) PutActionFee(actionName string, fee uint64) {
	a.delta.PutVerifiable(feeRecordKey(actionName), encodeUint64(fee))
}

// AllowedFeeAssets returns the current set of ibc-prefixed asset ids
// accepted for fee payment.
func (a *Accessor) AllowedFeeAssets() ([]primitive.IbcPrefixed, error) {
	raw, err := a.delta.GetVerifiable(allowedFeeAssetsKey)
	if err != nil {
		return nil, fmt.Errorf("reading allowed fee assets: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var hexIDs []string
	if err := json.Unmarshal(raw, &hexIDs); err != nil {
		return nil, fmt.Errorf("decoding allowed fee assets: %w", err)
	}
	out := make([]primitive.IbcPrefixed, 0, len(hexIDs))
	for _, h := range hexIDs {
		id, err := decodeIbcPrefixed(h)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// AddAllowedFeeAsset inserts an asset into the allowed set, a no-op if
// already present.
func (a *Accessor) AddAllowedFeeAsset(asset primitive.IbcPrefixed) error {
	current, err := a.AllowedFeeAssets()
	if err != nil {
		return err
	}
	for _, existing := range current {
		if existing == asset {
			return nil
		}
	}
	return a.putAllowedFeeAssets(append(current, asset))
}

// RemoveAllowedFeeAsset removes an asset from the allowed set. It is
// rejected with ErrLastFeeAssetRemoval if the post-removal set would be
// empty.
func (a *Accessor) RemoveAllowedFeeAsset(asset primitive.IbcPrefixed) error {
	current, err := a.AllowedFeeAssets()
	if err != nil {
		return err
	}
	next := make([]primitive.IbcPrefixed, 0, len(current))
	for _, existing := range current {
		if existing != asset {
			next = append(next, existing)
		}
	}
	if len(next) == 0 {
		return ErrLastFeeAssetRemoval
	}
	return a.putAllowedFeeAssets(next)
}

func (a *Accessor) putAllowedFeeAssets(assets []primitive.IbcPrefixed) error {
	hexIDs := make([]string, len(assets))
	for i, id := range assets {
		hexIDs[i] = hex.EncodeToString(id[:])
	}
	raw, err := json.Marshal(hexIDs)
	if err != nil {
		return fmt.Errorf("encoding allowed fee assets: %w", err)
	}
	a.delta.PutVerifiable(allowedFeeAssetsKey, raw)
	return nil
}

func decodeIbcPrefixed(s string) (primitive.IbcPrefixed, error) {
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return primitive.IbcPrefixed{}, fmt.Errorf("decoding ibc-prefixed asset id %q: %w", s, err)
	}
	var id primitive.IbcPrefixed
	copy(id[:], decoded)
	return id, nil
}

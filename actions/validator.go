package actions

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

const validatorSetKey = "validators/set"

// ValidatorUpdateAction adds, removes (power 0) or re-weights a
// validator. The signer must be the chain's sudo address (checked by the
// caller); removing the last validator or a non-existent one is
// rejected. Updates are buffered in ctx and applied at end-of-block
// rather than taking effect immediately.
type ValidatorUpdateAction struct {
	PubKey []byte
	Power  int64
}

// Group implements Action.
func (ValidatorUpdateAction) Group() Group { return UnbundleableSudo }

// CheckStateless implements Action.
func (v ValidatorUpdateAction) CheckStateless() error {
	if len(v.PubKey) == 0 {
		return fmt.Errorf("validator public key must not be empty")
	}
	if v.Power < 0 {
		return fmt.Errorf("validator power must not be negative")
	}
	return nil
}

// CheckAndExecute implements Action.
func (v ValidatorUpdateAction) CheckAndExecute(ctx *Context) error {
	current, err := readValidatorSet(ctx)
	if err != nil {
		return err
	}
	key := hex.EncodeToString(v.PubKey)
	_, existed := current[key]

	if v.Power == 0 {
		if !existed {
			return fmt.Errorf("cannot remove a validator that does not exist")
		}
		if len(current) == 1 {
			return fmt.Errorf("cannot remove the last validator")
		}
		delete(current, key)
	} else {
		current[key] = v.Power
	}

	if err := writeValidatorSet(ctx, current); err != nil {
		return err
	}
	*ctx.ValidatorUpdates = append(*ctx.ValidatorUpdates, ValidatorUpdate{
		PubKey: v.PubKey,
		Power:  v.Power,
	})
	return nil
}

func readValidatorSet(ctx *Context) (map[string]int64, error) {
	raw, err := ctx.Delta.GetVerifiable(validatorSetKey)
	if err != nil {
		return nil, fmt.Errorf("reading validator set: %w", err)
	}
	set := make(map[string]int64)
	if raw == nil {
		return set, nil
	}
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decoding validator set: %w", err)
	}
	return set, nil
}

func writeValidatorSet(ctx *Context, set map[string]int64) error {
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encoding validator set: %w", err)
	}
	ctx.Delta.PutVerifiable(validatorSetKey, raw)
	return nil
}

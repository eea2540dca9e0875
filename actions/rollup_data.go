package actions

import (
	"fmt"

	"github.com/astriaorg/astria-go/primitive"
)

// RollupDataSubmission carries opaque data destined for a rollup's
// execution layer. It has no state effect beyond accounting its bytes
// toward the block's rollup-data budget, which Block Assembly & Grouping
// tracks outside of action execution.
type RollupDataSubmission struct {
	RollupId primitive.RollupId
	Data     []byte
	Fee      uint64
	FeeAsset primitive.Asset
}

// Group implements Action.
func (RollupDataSubmission) Group() Group { return BundleableGeneral }

// CheckStateless implements Action.
func (r RollupDataSubmission) CheckStateless() error {
	if len(r.Data) == 0 {
		return fmt.Errorf("data must not be empty")
	}
	return nil
}

// CheckAndExecute implements Action. The handler itself has no balance
// effect beyond the fee; byte accounting against the rollup-data budget
// is the caller's (block/ package's) responsibility since it depends on
// the whole proposal, not a single action.
func (r RollupDataSubmission) CheckAndExecute(ctx *Context) error {
	return ctx.ChargeFee(r.FeeAsset, r.Fee)
}

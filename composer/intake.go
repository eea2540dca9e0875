package composer

import (
	"sync"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/primitive"
)

// Intake adapts a BundleFactory to grpc/collector.BundleIntake: incoming
// SubmitRollupTransaction calls carry only a rollup id and payload bytes,
// with no fee information, so the factory fee and fee asset configured for
// this composer instance are applied to every wrapped RollupDataSubmission.
type Intake struct {
	mu       sync.Mutex
	factory  *BundleFactory
	fee      uint64
	feeAsset primitive.Asset
}

func NewIntake(factory *BundleFactory, fee uint64, feeAsset primitive.Asset) *Intake {
	return &Intake{factory: factory, fee: fee, feeAsset: feeAsset}
}

// TryPush implements grpc/collector.BundleIntake.
func (in *Intake) TryPush(rollupID primitive.RollupId, data []byte) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.factory.TryPush(actions.RollupDataSubmission{
		RollupId: rollupID,
		Data:     data,
		Fee:      in.fee,
		FeeAsset: in.feeAsset,
	})
}

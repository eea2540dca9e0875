// Package composer implements the composer executor: it receives rollup
// transactions over SubmitRollupTransaction, bundles them, simulates each
// bundle against the rollup, and submits the result to the sequencer as a
// single RollupDataSubmission per bundle (Composer Executor §4.8, Bundle
// Factory & Simulator §4.9).
package composer

import (
	"errors"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/grpc/collector"
)

// ErrActionTooLarge is returned when a single action exceeds the bundle's
// configured max byte size and can never fit in any bundle.
var ErrActionTooLarge = errors.New("action exceeds max bundle size")

// actionOverhead approximates the non-data bytes an action contributes to
// a bundle (rollup id plus framing), so size accounting tracks real
// on-wire cost rather than just len(Data).
const actionOverhead = 40

func sizeOf(action actions.RollupDataSubmission) int {
	return len(action.Data) + actionOverhead
}

// SizedBundle accumulates RollupDataSubmission actions up to a byte
// budget.
type SizedBundle struct {
	actions []actions.RollupDataSubmission
	size    int
	maxSize int
}

// NewSizedBundle builds an empty bundle with room for maxSize bytes.
func NewSizedBundle(maxSize int) *SizedBundle {
	return &SizedBundle{maxSize: maxSize}
}

// TryPush appends action if it fits. ErrActionTooLarge means the action
// alone exceeds maxSize and will never fit in any bundle; any other
// error means it would overflow this particular bundle, and the caller
// should seal this one and retry against a fresh one.
var errWouldOverflow = errors.New("action would overflow bundle")

func (b *SizedBundle) TryPush(action actions.RollupDataSubmission) error {
	sz := sizeOf(action)
	if sz > b.maxSize {
		return ErrActionTooLarge
	}
	if b.size+sz > b.maxSize {
		return errWouldOverflow
	}
	b.actions = append(b.actions, action)
	b.size += sz
	return nil
}

// IsEmpty reports whether the bundle holds no actions.
func (b *SizedBundle) IsEmpty() bool {
	return len(b.actions) == 0
}

// Actions returns the bundle's actions in push order.
func (b *SizedBundle) Actions() []actions.RollupDataSubmission {
	return b.actions
}

// ActionsCount reports how many actions the bundle holds.
func (b *SizedBundle) ActionsCount() int {
	return len(b.actions)
}

// Size reports the bundle's accounted byte size.
func (b *SizedBundle) Size() int {
	return b.size
}

// BundleFactory fills a current bundle up to maxBytesPerBundle and queues
// sealed bundles up to queueCapacity deep (Bundle Factory & Simulator
// §4.9).
type BundleFactory struct {
	current           *SizedBundle
	finished          []*SizedBundle
	maxBytesPerBundle int
	queueCapacity     int
}

// NewBundleFactory builds an empty factory.
func NewBundleFactory(maxBytesPerBundle, queueCapacity int) *BundleFactory {
	return &BundleFactory{
		current:           NewSizedBundle(maxBytesPerBundle),
		maxBytesPerBundle: maxBytesPerBundle,
		queueCapacity:     queueCapacity,
	}
}

// TryPush appends action to the current bundle. If that would overflow
// it, the current bundle is sealed onto the finished queue and a fresh
// one absorbs action — unless the finished queue is already at capacity,
// in which case collector.ErrBundleFactoryFull is returned and the
// caller must not accept new traffic until space frees.
func (f *BundleFactory) TryPush(action actions.RollupDataSubmission) error {
	err := f.current.TryPush(action)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrActionTooLarge) {
		return err
	}

	if len(f.finished) >= f.queueCapacity {
		return collector.ErrBundleFactoryFull
	}
	f.finished = append(f.finished, f.current)
	f.current = NewSizedBundle(f.maxBytesPerBundle)
	return f.current.TryPush(action)
}

// IsFull reports whether the finished queue is at capacity; while it
// holds, a push that would overflow the current bundle is rejected as
// full.
func (f *BundleFactory) IsFull() bool {
	return len(f.finished) >= f.queueCapacity
}

// NextFinished pops the oldest sealed bundle, if any.
func (f *BundleFactory) NextFinished() (*SizedBundle, bool) {
	if len(f.finished) == 0 {
		return nil, false
	}
	b := f.finished[0]
	f.finished = f.finished[1:]
	return b, true
}

// PopNow forcibly seals the current bundle, regardless of its size, and
// starts a fresh one. Used by the block timer and the shutdown drain.
func (f *BundleFactory) PopNow() *SizedBundle {
	b := f.current
	f.current = NewSizedBundle(f.maxBytesPerBundle)
	return b
}

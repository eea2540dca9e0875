package composer

import (
	"errors"
	"testing"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/grpc/collector"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/stretchr/testify/require"
)

func testSubmission(rollup string, dataLen int) actions.RollupDataSubmission {
	return actions.RollupDataSubmission{
		RollupId: primitive.RollupIdFromName(rollup),
		Data:     make([]byte, dataLen),
		FeeAsset: primitive.NewAsset("test"),
	}
}

func TestSizedBundleRejectsActionLargerThanMaxSize(t *testing.T) {
	b := NewSizedBundle(50)
	err := b.TryPush(testSubmission("a", 100))
	require.ErrorIs(t, err, ErrActionTooLarge)
}

func TestBundleFactorySealsOnOverflowAndQueuesFinished(t *testing.T) {
	f := NewBundleFactory(120, 4)

	require.NoError(t, f.TryPush(testSubmission("a", 20)))
	require.NoError(t, f.TryPush(testSubmission("a", 20)))

	// this push cannot also fit in the current (now full) bundle, so it
	// seals and a fresh bundle absorbs the third action
	require.NoError(t, f.TryPush(testSubmission("a", 20)))

	finished, ok := f.NextFinished()
	require.True(t, ok)
	require.Equal(t, 2, finished.ActionsCount())

	_, ok = f.NextFinished()
	require.False(t, ok)
}

func TestBundleFactoryRejectsWhenFinishedQueueFull(t *testing.T) {
	f := NewBundleFactory(60, 1)

	require.NoError(t, f.TryPush(testSubmission("a", 10)))
	// overflow seals bundle 1 into the finished queue, now at capacity 1
	require.NoError(t, f.TryPush(testSubmission("a", 10)))
	require.True(t, f.IsFull())

	// any further overflow is rejected while the finished queue is full
	err := f.TryPush(testSubmission("a", 10))
	require.True(t, errors.Is(err, collector.ErrBundleFactoryFull))
}

func TestBundleFactoryPopNowSealsPartialBundle(t *testing.T) {
	f := NewBundleFactory(1000, 4)
	require.NoError(t, f.TryPush(testSubmission("a", 10)))

	sealed := f.PopNow()
	require.Equal(t, 1, sealed.ActionsCount())

	empty := f.PopNow()
	require.True(t, empty.IsEmpty())
}

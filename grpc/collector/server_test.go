package collector

import (
	"context"
	"testing"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeBundleIntake struct {
	full     bool
	received [][]byte
}

func (f *fakeBundleIntake) TryPush(rollupID primitive.RollupId, data []byte) error {
	if f.full {
		return ErrBundleFactoryFull
	}
	f.received = append(f.received, data)
	return nil
}

func TestSubmitRollupTransactionForwardsToIntake(t *testing.T) {
	intake := &fakeBundleIntake{}
	s := NewServer(intake)

	err := s.SubmitRollupTransaction(context.Background(), primitive.RollupIdFromName("rollup-a"), []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("payload")}, intake.received)
}

func TestSubmitRollupTransactionRejectsEmptyData(t *testing.T) {
	s := NewServer(&fakeBundleIntake{})
	err := s.SubmitRollupTransaction(context.Background(), primitive.RollupIdFromName("rollup-a"), nil)
	require.Error(t, err)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubmitRollupTransactionReportsResourceExhaustedWhenFull(t *testing.T) {
	s := NewServer(&fakeBundleIntake{full: true})
	err := s.SubmitRollupTransaction(context.Background(), primitive.RollupIdFromName("rollup-a"), []byte("payload"))
	require.Error(t, err)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
}

// Package collector implements GrpcCollectorService, the composer's
// submitter-facing intake RPC (spec.md §6): SubmitRollupTransaction(rollup_id,
// data) -> Empty, backed by the composer's bundle factory (C9).
package collector

import (
	"context"
	"errors"

	"github.com/astriaorg/astria-go/primitive"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	submitRequestCount = metrics.GetOrRegisterCounter("astria/collector_service/submit_requests", nil)
	submitDroppedCount = metrics.GetOrRegisterCounter("astria/collector_service/submit_dropped_full", nil)
)

// ErrBundleFactoryFull is returned by BundleIntake.TryPush when the
// composer's finished-bundle queue is at capacity (Bundle Factory &
// Simulator §4.9): the caller must not accept new traffic until space
// frees, and this service maps it to codes.ResourceExhausted.
var ErrBundleFactoryFull = errors.New("bundle factory is full")

// BundleIntake is the composer's bundle factory, as consumed by this
// service; kept as an interface so grpc/collector does not depend on
// composer's internal implementation.
type BundleIntake interface {
	TryPush(rollupID primitive.RollupId, data []byte) error
}

// Server implements GrpcCollectorService over a BundleIntake.
type Server struct {
	intake BundleIntake
}

// NewServer builds a Server over intake.
func NewServer(intake BundleIntake) *Server {
	return &Server{intake: intake}
}

// SubmitRollupTransaction appends data to the named rollup's current
// bundle. A full bundle factory is reported to the caller as
// codes.ResourceExhausted rather than silently dropped, per spec.md §6's
// "drop with an explicit error code and a metric increment".
func (s *Server) SubmitRollupTransaction(_ context.Context, rollupID primitive.RollupId, data []byte) error {
	submitRequestCount.Inc(1)
	if len(data) == 0 {
		return status.Error(codes.InvalidArgument, "data must not be empty")
	}

	if err := s.intake.TryPush(rollupID, data); err != nil {
		if errors.Is(err, ErrBundleFactoryFull) {
			submitDroppedCount.Inc(1)
			log.Warn("dropping rollup transaction: bundle factory full", "rollup_id", rollupID.String())
			return status.Error(codes.ResourceExhausted, "bundle factory is full")
		}
		return status.Errorf(codes.Internal, "submitting rollup transaction: %v", err)
	}
	return nil
}

// Package sequencer implements SequencerService, the external consumer
// gRPC surface named in spec.md §6: GetSequencerBlock and
// GetFilteredSequencerBlock, each serving a rollup's slice of a finalized
// block alongside the Merkle proofs it needs to verify non-censorship.
package sequencer

import (
	"context"

	"github.com/astriaorg/astria-go/block"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	getSequencerBlockRequestCount         = metrics.GetOrRegisterCounter("astria/sequencer_service/get_sequencer_block_requests", nil)
	getFilteredSequencerBlockRequestCount = metrics.GetOrRegisterCounter("astria/sequencer_service/get_filtered_sequencer_block_requests", nil)
	blockNotFoundCount                    = metrics.GetOrRegisterCounter("astria/sequencer_service/block_not_found", nil)
)

// BlockSource is the app/ package's view into finalized blocks, kept as an
// interface here so grpc/sequencer does not need to import app's full
// ABCI surface, only the part it consumes.
type BlockSource interface {
	SequencerBlockAt(height uint64) (*block.SequencerBlock, bool)
}

// Server implements SequencerService over a BlockSource.
type Server struct {
	source BlockSource
}

// NewServer builds a Server over source.
func NewServer(source BlockSource) *Server {
	return &Server{source: source}
}

// GetSequencerBlock returns the full rollup-data view of the block at
// height.
func (s *Server) GetSequencerBlock(_ context.Context, height uint64) (*block.SequencerBlock, error) {
	getSequencerBlockRequestCount.Inc(1)
	b, ok := s.source.SequencerBlockAt(height)
	if !ok {
		blockNotFoundCount.Inc(1)
		return nil, status.Errorf(codes.NotFound, "no sequencer block at height %d", height)
	}
	return b, nil
}

// GetFilteredSequencerBlock returns only the requested rollup ids' data
// from the block at height, plus Merkle proofs and the full rollup id set
// so a client can verify the server did not omit a requested rollup
// (spec.md §6).
func (s *Server) GetFilteredSequencerBlock(_ context.Context, height uint64, rollupIds []primitive.RollupId) (*block.FilteredSequencerBlock, error) {
	getFilteredSequencerBlockRequestCount.Inc(1)
	b, ok := s.source.SequencerBlockAt(height)
	if !ok {
		blockNotFoundCount.Inc(1)
		return nil, status.Errorf(codes.NotFound, "no sequencer block at height %d", height)
	}
	log.Debug("GetFilteredSequencerBlock called", "height", height, "rollup_ids", len(rollupIds))
	return b.Filter(rollupIds), nil
}

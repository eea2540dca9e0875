// Package execution wraps the rollup's ExecutionService as a client: the
// conductor drives rollup derivation through it (4.11), and the composer's
// bundle simulator streams speculative bundles against the same rollup
// (4.9). This is the rollup's side of the wire, not this core's — the
// teacher's ExecutionServiceServerV1 ran this service itself because flame
// *is* the rollup's execution client; here the sequencer core only ever
// calls it.
package execution

import (
	"context"
	"sync"
	"time"

	astriaGrpc "buf.build/gen/go/astria/execution-apis/grpc/go/astria/execution/v1/executionv1grpc"
	astriaPb "buf.build/gen/go/astria/execution-apis/protocolbuffers/go/astria/execution/v1"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	getGenesisInfoRequestCount        = metrics.GetOrRegisterCounter("astria/execution_client/get_genesis_info_requests", nil)
	getBlockRequestCount              = metrics.GetOrRegisterCounter("astria/execution_client/get_block_requests", nil)
	batchGetBlockRequestCount         = metrics.GetOrRegisterCounter("astria/execution_client/batch_get_block_requests", nil)
	executeBlockRequestCount          = metrics.GetOrRegisterCounter("astria/execution_client/execute_block_requests", nil)
	executeBlockPermissionDeniedCount = metrics.GetOrRegisterCounter("astria/execution_client/execute_block_permission_denied", nil)
	getCommitmentStateRequestCount    = metrics.GetOrRegisterCounter("astria/execution_client/get_commitment_state_requests", nil)
	updateCommitmentStateRequestCount = metrics.GetOrRegisterCounter("astria/execution_client/update_commitment_state_requests", nil)

	executeBlockTimer          = metrics.GetOrRegisterTimer("astria/execution_client/execute_block_time", nil)
	commitmentStateUpdateTimer = metrics.GetOrRegisterTimer("astria/execution_client/commitment_update_time", nil)
)

// Client wraps astriaGrpc.ExecutionServiceClient, serializing the two calls
// that mutate rollup state (ExecuteBlock, UpdateCommitmentState) behind a
// single mutex so that, per spec.md §5, "the executor serializes calls to
// the rollup execution service so that no two execute_block /
// update_commitment_state calls overlap" even if callers invoke concurrently.
type Client struct {
	mu   sync.Mutex
	conn astriaGrpc.ExecutionServiceClient
}

// NewClient builds a Client over an already-dialed gRPC connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{conn: astriaGrpc.NewExecutionServiceClient(cc)}
}

// GetGenesisInfo fetches the rollup's genesis parameters. Per 4.11.4 this
// is expected to be called at most once per conductor "life".
func (c *Client) GetGenesisInfo(ctx context.Context) (*astriaPb.GenesisInfo, error) {
	getGenesisInfoRequestCount.Inc(1)
	log.Debug("execution client: GetGenesisInfo called")
	return c.conn.GetGenesisInfo(ctx, &astriaPb.GetGenesisInfoRequest{})
}

// GetBlock fetches a single rollup block by identifier.
func (c *Client) GetBlock(ctx context.Context, id *astriaPb.BlockIdentifier) (*astriaPb.Block, error) {
	getBlockRequestCount.Inc(1)
	return c.conn.GetBlock(ctx, &astriaPb.GetBlockRequest{Identifier: id})
}

// BatchGetBlocks fetches multiple rollup blocks by identifier in one call.
func (c *Client) BatchGetBlocks(ctx context.Context, ids []*astriaPb.BlockIdentifier) (*astriaPb.BatchGetBlocksResponse, error) {
	batchGetBlockRequestCount.Inc(1)
	return c.conn.BatchGetBlocks(ctx, &astriaPb.BatchGetBlocksRequest{Identifiers: ids})
}

// ExecuteBlock drives derivation of a new rollup block from an ordered set
// of transactions. A codes.PermissionDenied status is not an error to this
// client — per 4.11.4 it is the rollup's restart signal, and callers must
// check status.Code(err) themselves rather than treat every error alike.
func (c *Client) ExecuteBlock(ctx context.Context, req *astriaPb.ExecuteBlockRequest) (*astriaPb.Block, error) {
	executeBlockRequestCount.Inc(1)
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	defer executeBlockTimer.UpdateSince(start)

	res, err := c.conn.ExecuteBlock(ctx, req)
	if err != nil {
		if status.Code(err) == codes.PermissionDenied {
			executeBlockPermissionDeniedCount.Inc(1)
		}
		log.Warn("execution client: ExecuteBlock failed", "err", err)
		return nil, err
	}
	return res, nil
}

// GetCommitmentState fetches the rollup's current soft/firm commitment
// state. Expected to be called at most once per conductor "life" (4.11.4).
func (c *Client) GetCommitmentState(ctx context.Context) (*astriaPb.CommitmentState, error) {
	getCommitmentStateRequestCount.Inc(1)
	return c.conn.GetCommitmentState(ctx, &astriaPb.GetCommitmentStateRequest{})
}

// UpdateCommitmentState replaces the rollup's whole commitment state.
func (c *Client) UpdateCommitmentState(ctx context.Context, state *astriaPb.CommitmentState) (*astriaPb.CommitmentState, error) {
	updateCommitmentStateRequestCount.Inc(1)
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	defer commitmentStateUpdateTimer.UpdateSince(start)

	return c.conn.UpdateCommitmentState(ctx, &astriaPb.UpdateCommitmentStateRequest{CommitmentState: state})
}

package composer

import (
	"context"

	"github.com/astriaorg/astria-go/app"
	"github.com/astriaorg/astria-go/primitive"
)

// BroadcastResult is the sequencer's response to a synchronous tx
// broadcast: an ABCI response code (0 is success) and a human-readable
// log, mirroring CometBFT's broadcast_tx_sync RPC response shape.
type BroadcastResult struct {
	Code uint32
	Log  string
}

// AbciCodeInvalidNonce is the ABCI application's error code for a
// rejected transaction whose nonce did not match the account's current
// nonce (ABCI Application §4.7, Composer Executor §4.8): the executor
// refetches the nonce and resubmits the same bundle under a new
// signature when it sees this code.
const AbciCodeInvalidNonce = app.CodeInvalidNonce

// SequencerClient is what the executor needs from a CometBFT RPC client:
// chain id, nonce lookups, and synchronous tx broadcast. Kept as an
// interface over github.com/cometbft/cometbft/rpc/client/http's HTTP
// client so tests can substitute a fake without a running sequencer.
type SequencerClient interface {
	ChainID(ctx context.Context) (string, error)
	LatestNonce(ctx context.Context, addr primitive.Address) (uint32, error)
	BroadcastTxSync(ctx context.Context, wireTx []byte) (BroadcastResult, error)
}

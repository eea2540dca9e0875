package conductor

import (
	"context"

	astriaPb "buf.build/gen/go/astria/execution-apis/protocolbuffers/go/astria/execution/v1"
	sequencerblockv1 "buf.build/gen/go/astria/sequencerblock-apis/protocolbuffers/go/astria/sequencerblock/v1"
	"github.com/astriaorg/astria-go/grpc/execution"
	"github.com/astriaorg/astria-go/primitive"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// RollupExecutionClient adapts grpc/execution.Client's wire types to the
// executor's RollupClient interface.
type RollupExecutionClient struct {
	client *execution.Client
}

// NewRollupExecutionClient wraps an already-dialed execution client.
func NewRollupExecutionClient(client *execution.Client) *RollupExecutionClient {
	return &RollupExecutionClient{client: client}
}

func (c *RollupExecutionClient) GetGenesisInfo(ctx context.Context) (GenesisInfo, error) {
	res, err := c.client.GetGenesisInfo(ctx)
	if err != nil {
		return GenesisInfo{}, err
	}
	rollupID, _ := primitive.RollupIdFromBytes(res.GetRollupId().GetInner())
	return GenesisInfo{
		RollupID:                    rollupID,
		SequencerGenesisBlockHeight: uint64(res.GetSequencerGenesisBlockHeight()),
		CelestiaBlockVariance:       res.GetCelestiaBlockVariance(),
	}, nil
}

func (c *RollupExecutionClient) GetCommitmentState(ctx context.Context) (CommitmentState, error) {
	res, err := c.client.GetCommitmentState(ctx)
	if err != nil {
		return CommitmentState{}, err
	}
	return commitmentStateFromPb(res), nil
}

// ExecuteBlock marshals each rollup-data payload into a RollupData
// wrapping raw sequenced bytes -- the shape the rollup's unbundler
// expects for ordinary (non-deposit) rollup transactions.
func (c *RollupExecutionClient) ExecuteBlock(ctx context.Context, req ExecuteBlockRequest) (BlockIdent, error) {
	txs := make([]*sequencerblockv1.RollupData, 0, len(req.Transactions))
	for _, data := range req.Transactions {
		txs = append(txs, &sequencerblockv1.RollupData{
			Value: &sequencerblockv1.RollupData_SequencedData{SequencedData: data},
		})
	}

	res, err := c.client.ExecuteBlock(ctx, &astriaPb.ExecuteBlockRequest{
		PrevBlockHash: req.PrevBlockHash,
		Transactions:  txs,
		Timestamp:     &timestamppb.Timestamp{Seconds: req.Timestamp.Unix()},
	})
	if err != nil {
		return BlockIdent{}, err
	}
	return blockIdentFromPb(res), nil
}

func (c *RollupExecutionClient) UpdateCommitmentState(ctx context.Context, state CommitmentState) (CommitmentState, error) {
	res, err := c.client.UpdateCommitmentState(ctx, state.toPb())
	if err != nil {
		return CommitmentState{}, err
	}
	return commitmentStateFromPb(res), nil
}

func blockIdentFromPb(b *astriaPb.Block) BlockIdent {
	if b == nil {
		return BlockIdent{}
	}
	return BlockIdent{Number: b.GetNumber(), Hash: b.GetHash(), Parent: b.GetParentBlockHash()}
}

func commitmentStateFromPb(cs *astriaPb.CommitmentState) CommitmentState {
	if cs == nil {
		return CommitmentState{}
	}
	return CommitmentState{
		Soft:               blockIdentFromPb(cs.GetSoft()),
		Firm:               blockIdentFromPb(cs.GetFirm()),
		BaseCelestiaHeight: cs.GetBaseCelestiaHeight(),
	}
}

func (cs CommitmentState) toPb() *astriaPb.CommitmentState {
	return &astriaPb.CommitmentState{
		Soft:               &astriaPb.Block{Number: cs.Soft.Number, Hash: cs.Soft.Hash, ParentBlockHash: cs.Soft.Parent},
		Firm:               &astriaPb.Block{Number: cs.Firm.Number, Hash: cs.Firm.Hash, ParentBlockHash: cs.Firm.Parent},
		BaseCelestiaHeight: cs.BaseCelestiaHeight,
	}
}

package conductor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/astriaorg/astria-go/block"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	softBlocksExecuted = metrics.GetOrRegisterCounter("astria/conductor/soft_blocks_executed", nil)
	firmBlocksApplied  = metrics.GetOrRegisterCounter("astria/conductor/firm_blocks_applied", nil)
	restartCount       = metrics.GetOrRegisterCounter("astria/conductor/restarts", nil)
)

// GenesisInfo is the subset of the rollup's genesis parameters the
// executor needs: which rollup it is driving and the Celestia height
// variance used to locate firm blocks.
type GenesisInfo struct {
	RollupID                    primitive.RollupId
	SequencerGenesisBlockHeight uint64
	CelestiaBlockVariance       uint64
}

// ExecuteBlockRequest is what the executor asks the rollup to derive a
// new block from: an ordered set of this rollup's transaction payloads
// on top of a named parent.
type ExecuteBlockRequest struct {
	PrevBlockHash []byte
	Transactions  [][]byte
	Timestamp     time.Time
}

// RollupClient is what the executor needs from the rollup's
// ExecutionService (4.11, grpc/execution.Client). A codes.PermissionDenied
// error from ExecuteBlock is not a transport failure -- it is the
// rollup's restart signal and must propagate as such rather than as a
// generic error.
type RollupClient interface {
	GetGenesisInfo(ctx context.Context) (GenesisInfo, error)
	GetCommitmentState(ctx context.Context) (CommitmentState, error)
	ExecuteBlock(ctx context.Context, req ExecuteBlockRequest) (BlockIdent, error)
	UpdateCommitmentState(ctx context.Context, state CommitmentState) (CommitmentState, error)
}

// SoftBlockSource is the sequencer's filtered-block surface (grpc/sequencer),
// as consumed by soft-block polling.
type SoftBlockSource interface {
	GetFilteredSequencerBlock(ctx context.Context, height uint64, rollupIDs []primitive.RollupId) (*block.FilteredSequencerBlock, error)
}

// FirmBlockSource reconstructs sequencer block subsets from Celestia
// blobs at a given Celestia height, already validated against the
// CometBFT commit and validator set they were published under. A
// concrete implementation belongs to the relayer's read path; this
// package only depends on the interface so it can be developed and
// tested independently of it.
type FirmBlockSource interface {
	GetFirmBlocks(ctx context.Context, celestiaHeight uint64, rollupID primitive.RollupId) ([]*block.FilteredSequencerBlock, error)
}

// Config parameterizes one Executor. SequencerStartHeight and StopHeight
// share the sequencer's own height numbering; this port treats a
// rollup's block number as advancing 1:1 with the sequencer height it
// was derived from, since every soft block a SoftOnly/SoftAndFirm
// conductor observes is executed in order. StopHeight == 0 means
// unbounded.
type Config struct {
	RollupID             primitive.RollupId
	CommitLevel          CommitLevel
	SequencerStartHeight uint64
	StopHeight           uint64
	HaltAtStopHeight     bool
	PollInterval         time.Duration
}

// Executor drives one rollup through its soft and firm commitments
// until its context is cancelled. Internally it rebuilds its whole life
// -- genesis info, commitment state, fork-choice queue -- every time the
// rollup requests a restart.
type Executor struct {
	cfg    Config
	rollup RollupClient
	soft   SoftBlockSource
	firm   FirmBlockSource
}

// NewExecutor builds an Executor over its three dependencies.
func NewExecutor(cfg Config, rollup RollupClient, soft SoftBlockSource, firm FirmBlockSource) *Executor {
	return &Executor{cfg: cfg, rollup: rollup, soft: soft, firm: firm}
}

// errRestart signals that the rollup's execution service asked for a
// restart (PermissionDenied) or that the executor reached its stop
// height without halt_at_stop_height configured; Run's outer loop
// catches it and rebuilds the executor's life.
var errRestart = errors.New("conductor: restarting executor life")

// Run drives the rollup until ctx is cancelled or an unrecoverable
// error occurs, transparently restarting the executor's internal life
// whenever the rollup or the stop-height policy asks for one.
func (e *Executor) Run(ctx context.Context) error {
	for {
		err := e.runLife(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, errRestart) {
			restartCount.Inc(1)
			log.Info("conductor restarting executor life")
			continue
		}
		return err
	}
}

// runLife re-reads genesis info and commitment state exactly once (per
// 4.11.4, these are expected to be called at most once per life) and
// then polls soft and firm sources until ctx is cancelled or a restart
// condition is hit.
func (e *Executor) runLife(ctx context.Context) error {
	genesis, err := e.rollup.GetGenesisInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetching genesis info: %w", err)
	}
	rollupID := genesis.RollupID
	if rollupID == (primitive.RollupId{}) {
		rollupID = e.cfg.RollupID
	}

	commitment, err := e.rollup.GetCommitmentState(ctx)
	if err != nil {
		return fmt.Errorf("fetching commitment state: %w", err)
	}

	queue := NewQueue()
	nextSoftHeight := e.cfg.SequencerStartHeight
	queue.SetHeadHeight(nextSoftHeight)
	nextCelestiaHeight := commitment.BaseCelestiaHeight
	haltedForever := false

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if haltedForever {
			continue
		}

		if e.cfg.CommitLevel.UpdatesFirm() {
			restart, err := e.consumeFirm(ctx, &commitment, &nextCelestiaHeight, rollupID)
			if err != nil {
				return err
			}
			if restart {
				return errRestart
			}
		}

		atOrPastStop := e.cfg.StopHeight != 0 && nextSoftHeight >= e.cfg.StopHeight
		if e.cfg.CommitLevel.ExecutesSoft() && !atOrPastStop {
			restart, err := e.consumeSoft(ctx, &commitment, &nextSoftHeight, rollupID, queue)
			if err != nil {
				return err
			}
			if restart {
				return errRestart
			}
		}

		if atOrPastStop && commitment.Firm.Number >= uint32(e.cfg.StopHeight) {
			if e.cfg.HaltAtStopHeight {
				log.Info("conductor reached stop height, halting", "stop_height", e.cfg.StopHeight)
				haltedForever = true
				continue
			}
			return errRestart
		}
	}
}

// consumeSoft fetches the next not-yet-seen soft block and feeds it
// through the fork-choice queue. Everything the queue now hands back is
// executed, in order -- the queue is the only fork-choice gate; once it
// releases a set of blocks at a height (including multiple blocks that
// raced for the same height), the executor runs every one of them
// through execute_block, matching the ported original's behavior. It
// reports restart=true when the rollup signals PermissionDenied.
func (e *Executor) consumeSoft(ctx context.Context, commitment *CommitmentState, nextHeight *uint64, rollupID primitive.RollupId, queue *Queue) (restart bool, err error) {
	fb, err := e.soft.GetFilteredSequencerBlock(ctx, *nextHeight, []primitive.RollupId{rollupID})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("fetching soft block at height %d: %w", *nextHeight, err)
	}
	queue.Insert(fb)
	*nextHeight++

	for _, sb := range queue.PopBlocks() {
		// a height the firm path already promoted to soft (it runs
		// first on every poll tick and can race ahead when Celestia data arrives
		// faster than the sequencer's live feed) must not be re-executed
		// or re-committed once the soft path catches up to it.
		if sb.Height <= uint64(commitment.Soft.Number) {
			log.Debug("skipping soft block already committed via firm promotion", "height", sb.Height)
			continue
		}

		newSoft, err := e.rollup.ExecuteBlock(ctx, ExecuteBlockRequest{
			PrevBlockHash: commitment.Soft.Hash,
			Transactions:  sb.Block.RollupTransactions[rollupID],
			Timestamp:     sb.Block.Time,
		})
		if err != nil {
			if status.Code(err) == codes.PermissionDenied {
				return true, nil
			}
			return false, fmt.Errorf("executing soft block at height %d: %w", sb.Height, err)
		}

		*commitment = commitment.withSoft(newSoft)
		updated, err := e.rollup.UpdateCommitmentState(ctx, *commitment)
		if err != nil {
			return false, fmt.Errorf("updating soft commitment state at height %d: %w", sb.Height, err)
		}
		*commitment = updated
		softBlocksExecuted.Inc(1)
	}
	return false, nil
}

// consumeFirm fetches any Celestia blocks newly available at the next
// unread Celestia height and applies them: if the rollup's soft
// commitment already matches, it is promoted to firm without
// re-execution; otherwise (e.g. immediately after a restart) it is
// executed first.
func (e *Executor) consumeFirm(ctx context.Context, commitment *CommitmentState, nextCelestiaHeight *uint64, rollupID primitive.RollupId) (restart bool, err error) {
	blocks, err := e.firm.GetFirmBlocks(ctx, *nextCelestiaHeight, rollupID)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("fetching firm blocks at celestia height %d: %w", *nextCelestiaHeight, err)
	}
	if len(blocks) == 0 {
		return false, nil
	}

	for _, fb := range blocks {
		// a rollup block's Number advances 1:1 with the sequencer height
		// it was derived from (Config's documented simplifying
		// assumption), so this is how firm promotion recognizes a block
		// the soft path already executed and avoids re-executing it.
		alreadyExecuted := uint64(commitment.Soft.Number) == fb.Height
		if !alreadyExecuted {
			newSoft, err := e.rollup.ExecuteBlock(ctx, ExecuteBlockRequest{
				PrevBlockHash: commitment.Soft.Hash,
				Transactions:  fb.RollupTransactions[rollupID],
				Timestamp:     fb.Time,
			})
			if err != nil {
				if status.Code(err) == codes.PermissionDenied {
					return true, nil
				}
				return false, fmt.Errorf("executing firm block at height %d: %w", fb.Height, err)
			}
			*commitment = commitment.withSoft(newSoft)
		}

		*commitment = commitment.withFirm(commitment.Soft, *nextCelestiaHeight)
		updated, err := e.rollup.UpdateCommitmentState(ctx, *commitment)
		if err != nil {
			return false, fmt.Errorf("updating firm commitment state at height %d: %w", fb.Height, err)
		}
		*commitment = updated
		firmBlocksApplied.Inc(1)
	}
	*nextCelestiaHeight++
	return false, nil
}

package relayer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/astriaorg/astria-go/block"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"golang.org/x/sync/errgroup"
)

var (
	submissionsCompleted = metrics.GetOrRegisterCounter("astria/relayer/submissions_completed", nil)
	submissionsReverted  = metrics.GetOrRegisterCounter("astria/relayer/submissions_reverted", nil)
)

// SequencerBlockSource is how the relayer discovers sequencer blocks still
// needing relaying to Celestia.
type SequencerBlockSource interface {
	// PendingBlocks returns sequencer blocks with height > afterHeight, in
	// ascending height order, up to whatever is currently available. An
	// empty slice (with a nil error) means nothing new is available yet.
	PendingBlocks(ctx context.Context, afterHeight uint64) ([]*block.SequencerBlock, error)
}

// Submitter drives one attempt at building, broadcasting, and confirming a
// blob transaction over a set of blobs (Relayer Submission Core, 4.10).
type Submitter struct {
	client  CelestiaClient
	encoder BlobTxEncoder
	signer  *Signer
	chainID string
}

// NewSubmitter builds a Submitter over its dependencies.
func NewSubmitter(client CelestiaClient, encoder BlobTxEncoder, signer *Signer, chainID string) *Submitter {
	return &Submitter{client: client, encoder: encoder, signer: signer, chainID: chainID}
}

// BuildTx fetches the Celestia app's current cost parameters and account
// info (in parallel, mirroring the original's tokio::try_join!), estimates
// gas and fee for blobs, and returns the signed wire bytes of the blob
// transaction ready to broadcast. lastErr is the previous attempt's
// rejection, if any, and drives fee recovery when it was an
// insufficient-fee rejection.
func (s *Submitter) BuildTx(ctx context.Context, blobs []Blob, lastErr *BroadcastError) ([]byte, error) {
	sizes, err := blobSizes(blobs)
	if err != nil {
		return nil, err
	}

	var blobParams BlobParams
	var authParams AuthParams
	var minGasPrice float64
	var account Account

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		blobParams, err = s.client.FetchBlobParams(gctx)
		return err
	})
	g.Go(func() (err error) {
		authParams, err = s.client.FetchAuthParams(gctx)
		return err
	})
	g.Go(func() (err error) {
		minGasPrice, err = s.client.FetchMinGasPrice(gctx)
		return err
	})
	g.Go(func() (err error) {
		account, err = s.client.FetchAccount(gctx)
		return err
	})
	log.Info("fetching cost params and account info from celestia app")
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching cost params and account info from celestia app: %w", err)
	}

	cost := CostParams{
		GasPerBlobByte:    blobParams.GasPerBlobByte,
		TxSizeCostPerByte: authParams.TxSizeCostPerByte,
		MinGasPrice:       minGasPrice,
	}
	gasLimit := estimateGas(sizes, cost)
	fee := calculateFee(cost, gasLimit, lastErr)
	log.Info("fetched cost params and account info from celestia app",
		"gas_per_blob_byte", cost.GasPerBlobByte, "tx_size_cost_per_byte", cost.TxSizeCostPerByte,
		"min_gas_price", cost.MinGasPrice, "account_number", account.AccountNumber, "sequence", account.Sequence)

	log.Info("broadcasting blob transaction to celestia app", "gas_limit", uint64(gasLimit), "fee_utia", fee)
	txBytes, err := s.encoder.Encode(ctx, blobs, account, gasLimit, fee, s.chainID, s.signer)
	if err != nil {
		return nil, fmt.Errorf("encoding blob transaction: %w", err)
	}
	return txBytes, nil
}

// Broadcast submits txBytes to the Celestia app's mempool.
func (s *Submitter) Broadcast(ctx context.Context, txBytes []byte) (TxHash, error) {
	txHash, err := s.client.BroadcastTx(ctx, txBytes)
	if err != nil {
		return "", err
	}
	log.Info("broadcast blob transaction succeeded", "tx_hash", txHash)
	return txHash, nil
}

// confirmPollMinInterval/confirmPollMaxInterval/confirmLogDelay/
// confirmLogInterval match the original's confirm_submission polling
// schedule exactly.
const (
	confirmPollMinInterval = 1 * time.Second
	confirmPollMaxInterval = 12 * time.Second
	confirmLogDelay        = 12 * time.Second
	confirmLogInterval     = 5 * time.Second
)

// Confirm polls GetTx for hash until it reports a confirming height or
// timeout has elapsed. While the tx is pending the poll interval is reset
// to 1s; each GetTx error, a *BroadcastError for a failed tx included, is
// logged and polled again with the interval doubled up to a 12s cap.
// Returns the confirming Celestia height, a timeout error once the
// deadline passes, or ctx's error; a GetTx error is never returned.
func (s *Submitter) Confirm(ctx context.Context, hash TxHash, timeout time.Duration) (uint64, error) {
	deadline := time.Now().Add(timeout)
	start := time.Now()
	lastLoggedAt := start
	sleep := confirmPollMinInterval

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, fmt.Errorf("confirming blob submission %s: timed out after %s", hash, timeout)
		}
		wait := sleep
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(wait):
		}

		height, found, err := s.client.GetTx(ctx, hash)
		switch {
		case err != nil:
			sleep = minDuration(sleep*2, confirmPollMaxInterval)
			if shouldLog(start, lastLoggedAt) {
				log.Warn("waiting to confirm blob submission", "tx_hash", hash, "reason", err, "elapsed", time.Since(start))
				lastLoggedAt = time.Now()
			}
		case found:
			return height, nil
		default:
			sleep = confirmPollMinInterval
			if shouldLog(start, lastLoggedAt) {
				log.Warn("waiting to confirm blob submission", "tx_hash", hash, "reason", "transaction still pending", "elapsed", time.Since(start))
				lastLoggedAt = time.Now()
			}
		}
	}
}

func shouldLog(start, lastLoggedAt time.Time) bool {
	return time.Since(start) > confirmLogDelay && time.Since(lastLoggedAt) > confirmLogInterval
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// Relayer ties the submission typestate FSM, a SequencerBlockSource, and a
// Submitter together into the relayer's run loop (4.10): gather
// not-yet-submitted sequencer blocks, prepare and broadcast a blob
// transaction over them, confirm or revert, repeat.
type Relayer struct {
	namespace    []byte
	blocks       SequencerBlockSource
	submitter    *Submitter
	pollInterval time.Duration
}

// NewRelayer builds a Relayer over its dependencies. namespace is the fixed
// Celestia namespace every blob is published under.
func NewRelayer(namespace []byte, blocks SequencerBlockSource, submitter *Submitter, pollInterval time.Duration) *Relayer {
	return &Relayer{namespace: namespace, blocks: blocks, submitter: submitter, pollInterval: pollInterval}
}

// Run drives the relayer from the submission state persisted at
// stateFilePath until ctx is cancelled.
func (r *Relayer) Run(ctx context.Context, stateFilePath string) error {
	startup, err := NewSubmissionStateFromPath(stateFilePath)
	if err != nil {
		return fmt.Errorf("reading submission state at startup: %w", err)
	}

	started, err := r.resolveStartup(ctx, startup)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var lastErr *BroadcastError
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		next, newLastErr, err := r.submitOnce(ctx, started, lastErr)
		if err != nil {
			return err
		}
		started = next
		lastErr = newLastErr
	}
}

// resolveStartup converts whatever typestate was found at startup into a
// StartedSubmission: Fresh converts directly; a Prepared submission left
// over from a previous run is given its remaining confirmation budget
// before being folded back into Started (confirmed or reverted).
func (r *Relayer) resolveStartup(ctx context.Context, startup SubmissionStateAtStartup) (StartedSubmission, error) {
	switch {
	case startup.Fresh != nil:
		return startup.Fresh.IntoStarted(), nil
	case startup.Started != nil:
		return *startup.Started, nil
	case startup.Prepared != nil:
		prepared := *startup.Prepared
		celestiaHeight, err := r.submitter.Confirm(ctx, TxHash(prepared.BlobTxHash().String()), prepared.ConfirmationTimeout())
		if err != nil {
			log.Info("reverting unconfirmed submission left over from a previous run", "reason", err)
			submissionsReverted.Inc(1)
			return prepared.Revert()
		}
		submissionsCompleted.Inc(1)
		return prepared.IntoStarted(celestiaHeight)
	default:
		return StartedSubmission{}, fmt.Errorf("submission state at startup is empty")
	}
}

// submitOnce gathers pending blocks, prepares and broadcasts one blob
// transaction over them, and resolves it to a new StartedSubmission. It
// returns the lastErr to feed into the next round's fee calculation.
func (r *Relayer) submitOnce(ctx context.Context, started StartedSubmission, lastErr *BroadcastError) (StartedSubmission, *BroadcastError, error) {
	pending, err := r.blocks.PendingBlocks(ctx, started.LastSubmissionSequencerHeight())
	if err != nil {
		return StartedSubmission{}, nil, fmt.Errorf("fetching pending sequencer blocks: %w", err)
	}
	if len(pending) == 0 {
		return started, lastErr, nil
	}

	blobs := make([]Blob, 0, len(pending))
	for _, b := range pending {
		blobs = append(blobs, NewBlob(r.namespace, encodeSequencerBlock(b)))
	}
	highestHeight := pending[len(pending)-1].Height

	txBytes, err := r.submitter.BuildTx(ctx, blobs, lastErr)
	if err != nil {
		return StartedSubmission{}, nil, fmt.Errorf("building blob transaction: %w", err)
	}
	blobTxHash := BlobTxHash(sha256.Sum256(txBytes))

	prepared, err := started.IntoPrepared(highestHeight, blobTxHash)
	if err != nil {
		return StartedSubmission{}, nil, fmt.Errorf("entering prepared submission state: %w", err)
	}

	txHash, err := r.submitter.Broadcast(ctx, txBytes)
	if err != nil {
		next, revertErr := prepared.Revert()
		if revertErr != nil {
			return StartedSubmission{}, nil, fmt.Errorf("reverting after failed broadcast: %w", revertErr)
		}
		submissionsReverted.Inc(1)
		var broadcastErr *BroadcastError
		asBroadcastError(err, &broadcastErr)
		return next, broadcastErr, nil
	}

	celestiaHeight, err := r.submitter.Confirm(ctx, txHash, prepared.ConfirmationTimeout())
	if err != nil {
		next, revertErr := prepared.Revert()
		if revertErr != nil {
			return StartedSubmission{}, nil, fmt.Errorf("reverting after failed confirmation: %w", revertErr)
		}
		submissionsReverted.Inc(1)
		var broadcastErr *BroadcastError
		asBroadcastError(err, &broadcastErr)
		return next, broadcastErr, nil
	}

	next, err := prepared.IntoStarted(celestiaHeight)
	if err != nil {
		return StartedSubmission{}, nil, fmt.Errorf("entering started submission state: %w", err)
	}
	submissionsCompleted.Inc(1)
	return next, nil, nil
}

// asBroadcastError sets *target if err is (or wraps) a *BroadcastError,
// leaving it nil otherwise — a failed broadcast/confirmation that was not
// an on-chain rejection (e.g. a transport error) carries no fee-recovery
// information into the next attempt.
func asBroadcastError(err error, target **BroadcastError) {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if be, ok := e.(*BroadcastError); ok {
			*target = be
			return
		}
		u, ok := e.(unwrapper)
		if !ok {
			return
		}
		e = u.Unwrap()
	}
}

// encodeSequencerBlock serializes a sequencer block into the bytes carried
// by one Celestia blob. The real on-wire encoding is out of scope (spec
// Non-goal: Celestia blob format internals); this is a deterministic
// stand-in sufficient for the relayer's own bookkeeping (height ordering,
// blob sizing) to be exercised and tested.
func encodeSequencerBlock(b *block.SequencerBlock) []byte {
	out := make([]byte, 0, 40)
	out = append(out, b.Hash[:]...)
	out = append(out, b.ParentHash[:]...)
	return out
}

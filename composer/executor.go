package composer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/app"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
)

// bundleDrainingDuration bounds how long the executor waits for in-flight
// and queued bundles to reach the sequencer during shutdown. It is shorter
// than the 17s the supervising process allots for the executor to stop, so
// the executor always has a chance to report its own drain timeout rather
// than being killed mid-drain.
const bundleDrainingDuration = 16 * time.Second

const nonceFetchMaxRetries = 1024
const submissionMaxRetries = 1024

// Status reports whether the executor is currently connected to the
// sequencer and actively submitting bundles.
type Status struct {
	Connected bool
}

// StatusWatcher lets callers observe Executor connectivity without polling.
type StatusWatcher struct {
	mu      sync.Mutex
	current Status
	subs    []chan Status
}

func newStatusWatcher() *StatusWatcher {
	return &StatusWatcher{}
}

// Subscribe returns a channel that receives the current status immediately,
// then every subsequent change. The channel is never closed by the watcher;
// callers stop reading when they no longer care.
func (w *StatusWatcher) Subscribe() <-chan Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Status, 1)
	ch <- w.current
	w.subs = append(w.subs, ch)
	return ch
}

func (w *StatusWatcher) set(s Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = s
	for _, ch := range w.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// bundleIntake is the narrow interface Handle needs from a bundle factory
// adapter: both *Intake and the notifying wrapper NewExecutor builds around
// it satisfy this.
type bundleIntake interface {
	TryPush(rollupID primitive.RollupId, data []byte) error
}

// Handle lets callers outside the executor's own goroutine push rollup data
// submissions into its bundle factory.
type Handle struct {
	intake bundleIntake
}

func NewHandle(intake bundleIntake) *Handle {
	return &Handle{intake: intake}
}

// Submit appends data to rollupID's current bundle. Returns
// collector.ErrBundleFactoryFull if the finished-bundle queue is full.
func (h *Handle) Submit(rollupID primitive.RollupId, data []byte) error {
	return h.intake.TryPush(rollupID, data)
}

// Executor bundles rollup transactions, simulates each bundle against the
// rollup, and submits the result to the sequencer as a single
// RollupDataSubmission per bundle (Composer Executor §4.8).
type Executor struct {
	factory   *BundleFactory
	simulator *BundleSimulator
	sequencer SequencerClient
	signer    *Signer
	encoder   TxEncoder
	status    *StatusWatcher
	notify    chan struct{}
	rollupID  primitive.RollupId
	feeAsset  primitive.Asset
	blockTime time.Duration
	chainID   string
	address   primitive.Address
}

// ExecutorConfig collects the fixed parameters an Executor is built from.
type ExecutorConfig struct {
	RollupID          primitive.RollupId
	FeeAsset          primitive.Asset
	BlockTime         time.Duration
	ChainID           string
	Address           primitive.Address
	MaxBytesPerBundle int
	QueueCapacity     int
}

// NewExecutor wires together a bundle factory, simulator, and sequencer
// client into a runnable Executor, along with the Handle its submitters use
// to feed it rollup transactions.
func NewExecutor(cfg ExecutorConfig, sequencer SequencerClient, simulator *BundleSimulator, signer *Signer, encoder TxEncoder, feeAmount uint64) (*Executor, *Handle) {
	factory := NewBundleFactory(cfg.MaxBytesPerBundle, cfg.QueueCapacity)
	e := &Executor{
		factory:   factory,
		simulator: simulator,
		sequencer: sequencer,
		signer:    signer,
		encoder:   encoder,
		status:    newStatusWatcher(),
		notify:    make(chan struct{}, 1),
		rollupID:  cfg.RollupID,
		feeAsset:  cfg.FeeAsset,
		blockTime: cfg.BlockTime,
		chainID:   cfg.ChainID,
		address:   cfg.Address,
	}
	intake := NewIntake(factory, feeAmount, cfg.FeeAsset)
	handle := NewHandle(&notifyingIntake{Intake: intake, notify: e.notify})
	return e, handle
}

// notifyingIntake wakes the executor's run loop after every successful push
// so a freshly-sealed bundle is picked up without polling.
type notifyingIntake struct {
	*Intake
	notify chan struct{}
}

func (n *notifyingIntake) TryPush(rollupID primitive.RollupId, data []byte) error {
	if err := n.Intake.TryPush(rollupID, data); err != nil {
		return err
	}
	select {
	case n.notify <- struct{}{}:
	default:
	}
	return nil
}

// Subscribe returns a channel reporting this executor's connectivity status.
func (e *Executor) Subscribe() <-chan Status {
	return e.status.Subscribe()
}

type submitOutcome struct {
	nonce uint32
	err   error
}

// Run drives the executor until ctx is cancelled, at which point it drains
// any outstanding bundles to the sequencer within bundleDrainingDuration
// before returning. A non-nil error means submission ultimately failed due
// to the sequencer transport, not merely a rejected transaction.
func (e *Executor) Run(ctx context.Context) error {
	chainID, err := e.sequencer.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed getting sequencer chain id: %w", err)
	}
	if chainID != e.chainID {
		return fmt.Errorf("configured chain id %q does not match sequencer chain id %q", e.chainID, chainID)
	}

	nonce, err := getLatestNonce(ctx, e.sequencer, e.address)
	if err != nil {
		return fmt.Errorf("failed getting initial nonce from sequencer: %w", err)
	}
	currentNonceGauge.Update(int64(nonce))

	blockTimer := time.NewTimer(e.blockTime)
	defer blockTimer.Stop()

	e.status.set(Status{Connected: true})

	var resultCh chan submitOutcome
	runErr := e.runLoop(ctx, &nonce, blockTimer, &resultCh)

	e.status.set(Status{Connected: false})

	if runErr != nil {
		return runErr
	}

	return e.drain(nonce, resultCh)
}

func (e *Executor) runLoop(ctx context.Context, nonce *uint32, blockTimer *time.Timer, resultCh *chan submitOutcome) error {
	for {
		// plain select does not prioritize among ready cases, but shutdown
		// must win over any other simultaneously-ready case, so it is
		// checked non-blocking up front before the real select below.
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return nil

		case outcome := <-*resultCh:
			*resultCh = nil
			if outcome.err != nil {
				return fmt.Errorf("failed submitting bundle to sequencer: %w", outcome.err)
			}
			*nonce = outcome.nonce
			currentNonceGauge.Update(int64(*nonce))
			resetTimer(blockTimer, e.blockTime)
			// a finished bundle may already be queued from while this
			// submission was in flight; start it now rather than waiting
			// on a notify signal that may never come if no new push
			// happens to re-arm it.
			e.tryStartNext(ctx, nonce, resultCh)

		case <-e.notify:
			e.tryStartNext(ctx, nonce, resultCh)

		case <-blockTimer.C:
			if *resultCh != nil {
				resetTimer(blockTimer, e.blockTime)
				continue
			}
			bundle := e.factory.PopNow()
			if bundle.IsEmpty() {
				resetTimer(blockTimer, e.blockTime)
				continue
			}
			log.Debug("forcing bundle submission to sequencer due to block timer")
			*resultCh = e.startSubmission(ctx, *nonce, bundle)
		}
	}
}

// tryStartNext starts submitting the next finished bundle if none is
// already in flight and one is available.
func (e *Executor) tryStartNext(ctx context.Context, nonce *uint32, resultCh *chan submitOutcome) {
	if *resultCh != nil {
		return
	}
	bundle, ok := e.factory.NextFinished()
	if !ok || bundle.IsEmpty() {
		return
	}
	*resultCh = e.startSubmission(ctx, *nonce, bundle)
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// startSubmission simulates and submits bundle in its own goroutine,
// returning a channel that receives exactly one submitOutcome.
func (e *Executor) startSubmission(ctx context.Context, nonce uint32, bundle *SizedBundle) chan submitOutcome {
	ch := make(chan submitOutcome, 1)
	go func() {
		newNonce, err := e.simulateAndSubmit(ctx, nonce, bundle)
		ch <- submitOutcome{nonce: newNonce, err: err}
	}()
	return ch
}

// simulateAndSubmit simulates bundle against the rollup, packages the
// surviving actions into a signed BuilderBundlePacket, and submits that
// packet to the sequencer as a single RollupDataSubmission, retrying on a
// stale nonce until the sequencer accepts it or a transport error aborts
// the attempt (Composer Executor §4.8, Bundle Factory & Simulator §4.9).
func (e *Executor) simulateAndSubmit(ctx context.Context, nonce uint32, bundle *SizedBundle) (uint32, error) {
	result, err := e.simulator.SimulateBundle(bundle)
	if err != nil {
		return nonce, fmt.Errorf("failed to simulate bundle: %w", err)
	}
	surviving := actionDataOf(bundle, result.IncludedActions)
	if dropped := len(bundle.Actions()) - len(surviving); dropped > 0 {
		txsDroppedTooLargeCount.Inc(int64(dropped))
		log.Warn("rollup simulation rejected some actions in this bundle", "rollup_id", e.rollupID.String(), "dropped", dropped)
	}

	packet, err := BuildSignedBundlePacket(e.signer, result)
	if err != nil {
		return nonce, fmt.Errorf("failed to sign builder bundle: %w", err)
	}
	action := WrapAsRollupDataSubmission(e.rollupID, e.feeAsset, packet)

	return e.submitWithNonceRefresh(ctx, nonce, action)
}

// submitWithNonceRefresh submits action at nonce, refetching the account's
// current nonce and resubmitting under it whenever the sequencer rejects
// the transaction with CodeInvalidNonce (ABCI Application §4.7). Any other
// non-zero ABCI code is logged and the bundle is dropped, returning the
// nonce unchanged since it was never consumed. Only a transport error is
// treated as fatal, breaking the executor's run loop.
func (e *Executor) submitWithNonceRefresh(ctx context.Context, nonce uint32, action actions.RollupDataSubmission) (uint32, error) {
	for {
		wireTx, err := e.encoder.Encode([]actions.Action{action}, nonce, e.chainID)
		if err != nil {
			return nonce, fmt.Errorf("failed to encode signed transaction: %w", err)
		}

		result, err := submitTx(ctx, e.sequencer, wireTx)
		if err != nil {
			sequencerSubmissionFailures.Inc(1)
			return nonce, fmt.Errorf("failed sending transaction to sequencer: %w", err)
		}

		switch result.Code {
		case app.CodeOK:
			log.Info("sequencer accepted bundle submission")
			bytesPerSubmission.Update(int64(len(action.Data)))
			txsPerSubmission.Update(1)
			return nonce + 1, nil
		case app.CodeInvalidNonce:
			log.Info("sequencer rejected transaction due to invalid nonce; fetching new nonce")
			newNonce, err := getLatestNonce(ctx, e.sequencer, e.address)
			if err != nil {
				return nonce, fmt.Errorf("failed getting latest nonce after rejection: %w", err)
			}
			nonce = newNonce
			continue
		default:
			log.Warn("sequencer rejected the transaction; the bundle is likely lost", "code", result.Code, "log", result.Log)
			sequencerSubmissionFailures.Inc(1)
			return nonce, nil
		}
	}
}

// getLatestNonce fetches addr's current nonce, retrying transport failures
// with exponential backoff (200ms base, 60s cap, 1024 attempts).
func getLatestNonce(ctx context.Context, client SequencerClient, addr primitive.Address) (uint32, error) {
	var nonce uint32
	op := func() error {
		nonceFetchCount.Inc(1)
		n, err := client.LatestNonce(ctx, addr)
		if err != nil {
			nonceFetchFailureCount.Inc(1)
			return err
		}
		nonce = n
		return nil
	}
	if err := withBackoff(ctx, nonceFetchMaxRetries, op); err != nil {
		return 0, fmt.Errorf("failed getting latest nonce after %d attempts: %w", nonceFetchMaxRetries, err)
	}
	return nonce, nil
}

// submitTx broadcasts wireTx, retrying transport failures with exponential
// backoff (200ms base, 60s cap, 1024 attempts). A non-nil BroadcastResult
// with a non-zero Code is a successful broadcast the sequencer rejected;
// that is not retried here, since resubmission semantics depend on the
// specific rejection code (see submitWithNonceRefresh).
func submitTx(ctx context.Context, client SequencerClient, wireTx []byte) (BroadcastResult, error) {
	var result BroadcastResult
	op := func() error {
		r, err := client.BroadcastTxSync(ctx, wireTx)
		if err != nil {
			return err
		}
		result = r
		return nil
	}
	if err := withBackoff(ctx, submissionMaxRetries, op); err != nil {
		return BroadcastResult{}, fmt.Errorf("failed sending transaction after %d attempts: %w", submissionMaxRetries, err)
	}
	return result, nil
}

// withBackoff retries op with an exponential backoff (200ms base interval,
// 60s cap, up to maxRetries attempts), aborting early if ctx is cancelled.
// backoff.WithMaxRetries counts retries after the first call, so it is
// given maxRetries-1.
func withBackoff(ctx context.Context, maxRetries uint64, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 60 * time.Second
	b.MaxElapsedTime = 0
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries-1), ctx))
}

// drain seals and submits every bundle still outstanding after Run's main
// loop exits cleanly (shutdown, not error): the current in-progress bundle,
// anything already finished and queued, and anything in flight at the
// moment of cancellation. Bounded by bundleDrainingDuration so a stuck
// sequencer cannot block shutdown indefinitely.
func (e *Executor) drain(nonce uint32, inFlight chan submitOutcome) error {
	deadline := time.Now().Add(bundleDrainingDuration)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	log.Info("draining already received transactions")

	if inFlight != nil {
		select {
		case outcome := <-inFlight:
			if outcome.err != nil {
				return fmt.Errorf("failed submitting in-flight bundle during shutdown: %w", outcome.err)
			}
			nonce = outcome.nonce
		case <-ctx.Done():
			return fmt.Errorf("executor shutdown timed out waiting for in-flight submission: %w", ctx.Err())
		}
	}

	var pending []*SizedBundle
	for {
		b, ok := e.factory.NextFinished()
		if !ok {
			break
		}
		pending = append(pending, b)
	}
	if last := e.factory.PopNow(); !last.IsEmpty() {
		pending = append(pending, last)
	}

	drained := 0
	for _, bundle := range pending {
		newNonce, err := e.simulateAndSubmit(ctx, nonce, bundle)
		if err != nil {
			log.Error("failed submitting bundle to sequencer during shutdown; aborting shutdown", "err", err, "drained", drained, "of", len(pending))
			return err
		}
		nonce = newNonce
		drained++
	}

	log.Info("submitted all outstanding bundles to sequencer during shutdown", "count", drained)
	return nil
}

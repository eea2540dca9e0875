// Package app wires the verifiable store, account/bridge state, action
// handlers, block assembly, and mempool into a CometBFT ABCI application
// (ABCI Application, C7).
package app

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/astriaorg/astria-go/accounts"
	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/block"
	"github.com/astriaorg/astria-go/bridge"
	"github.com/astriaorg/astria-go/mempool"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/astriaorg/astria-go/state"
)

var (
	prepareProposalCount = metrics.GetOrRegisterCounter("astria/app/prepare_proposal", nil)
	processProposalCount = metrics.GetOrRegisterCounter("astria/app/process_proposal", nil)
	finalizeBlockCount   = metrics.GetOrRegisterCounter("astria/app/finalize_block", nil)
	commitCount          = metrics.GetOrRegisterCounter("astria/app/commit", nil)
	fingerprintHitCount  = metrics.GetOrRegisterCounter("astria/app/fingerprint_reuse", nil)
	upgradeAppliedCount  = metrics.GetOrRegisterCounter("astria/app/upgrade_applied", nil)
)

// TxCodec decodes a raw CometBFT transaction into the fields block.Assemble
// needs. Concrete decoding of the wire `SignedTransaction`/`Action` oneof
// (protocol-apis) lives behind this boundary so the assembly and execution
// logic stays independent of the wire format's exact shape.
type TxCodec interface {
	Decode(raw []byte) (block.Tx, error)
}

// Config bundles the values Config (named external collaborator, AMBIENT
// STACK §A) would otherwise inject: chain identity, byte budgets, and the
// upgrade table.
type Config struct {
	ChainID           string
	BaseAddressPrefix string
	Budget            block.Budget
	Upgrades          UpgradeTable
}

// App implements abcitypes.Application over the sequencer's state machine.
type App struct {
	mu sync.Mutex

	cfg   Config
	store *state.Store
	pool  *mempool.Pool
	codec TxCodec

	// blockDelta is the speculative StateDelta FinalizeBlock executes
	// into; Commit flushes it to the store. Kept across FinalizeBlock
	// and Commit only, per the ABCI 2.0 two-step finalize/commit split.
	blockDelta *state.StateDelta

	// preparedOutcome/preparedFingerprint cache PrepareProposal's
	// execution results so a matching ProcessProposal on the same node
	// can reuse them instead of re-executing (ABCI Application §4.7).
	preparedOutcome     *block.Outcome
	preparedFingerprint block.Fingerprint
	preparedDelta       *state.StateDelta

	// rawTxs holds every CheckTx-admitted transaction's wire bytes keyed
	// by hash, since the mempool itself only tracks (sender, nonce, hash)
	// for priority ordering.
	rawTxs map[[32]byte][]byte

	// blockFeeBag and blockValidatorUpdates accumulate across every
	// transaction executed within the current FinalizeBlock call, for
	// the end-of-block fee transfer and validator-set update.
	blockFeeBag           map[primitive.IbcPrefixed]uint64
	blockValidatorUpdates []actions.ValidatorUpdate

	// sequencerBlocks caches the rollup-data view of recently finalized
	// blocks for grpc/sequencer's SequencerService to serve without
	// re-deriving it from committed state on every request.
	sequencerBlocks    map[uint64]*block.SequencerBlock
	sequencerBlockCap  int
	sequencerBlockKeys []uint64

	// lastBlockHash chains each SequencerBlock to its predecessor so
	// conductor's fork-choice queue can link blocks by parent hash; the
	// zero value at genesis height correctly signals "no parent".
	lastBlockHash [32]byte
}

// defaultSequencerBlockCap bounds the in-memory SequencerBlock cache so a
// long-running node doesn't grow it unboundedly; SequencerService callers
// are expected to consume near-head blocks, not replay full history.
const defaultSequencerBlockCap = 256

// New constructs an App over an already-open store.
func New(cfg Config, store *state.Store, pool *mempool.Pool, codec TxCodec) *App {
	return &App{
		cfg:               cfg,
		store:             store,
		pool:              pool,
		codec:             codec,
		rawTxs:            make(map[[32]byte][]byte),
		sequencerBlocks:   make(map[uint64]*block.SequencerBlock),
		sequencerBlockCap: defaultSequencerBlockCap,
	}
}

// SequencerBlockAt returns the rollup-data view of a previously finalized
// block, for grpc/sequencer's SequencerService.
func (a *App) SequencerBlockAt(height uint64) (*block.SequencerBlock, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.sequencerBlocks[height]
	return b, ok
}

// rememberSequencerBlock caches b, evicting the oldest cached height once
// the cache exceeds its bound.
func (a *App) rememberSequencerBlock(b *block.SequencerBlock) {
	a.sequencerBlocks[b.Height] = b
	a.sequencerBlockKeys = append(a.sequencerBlockKeys, b.Height)
	if len(a.sequencerBlockKeys) > a.sequencerBlockCap {
		oldest := a.sequencerBlockKeys[0]
		a.sequencerBlockKeys = a.sequencerBlockKeys[1:]
		delete(a.sequencerBlocks, oldest)
	}
}

var _ abcitypes.Application = (*App)(nil)

func (a *App) Info(_ context.Context, _ *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	return &abcitypes.ResponseInfo{
		LastBlockHeight:  a.store.Height(),
		LastBlockAppHash: a.store.AppHash(),
	}, nil
}

func (a *App) InitChain(_ context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	delta := a.store.NewDelta()
	appHash, _, err := a.store.Commit(delta)
	if err != nil {
		return nil, fmt.Errorf("committing genesis state: %w", err)
	}
	return &abcitypes.ResponseInitChain{
		AppHash:         appHash,
		ConsensusParams: req.ConsensusParams,
		Validators:      req.Validators,
	}, nil
}

func (a *App) Query(_ context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	snapshot := accounts.NewSnapshot(a.store)
	switch req.Path {
	case "accounts/balances":
		addr, err := primitive.ParseBech32m(string(req.Data))
		if err != nil {
			return &abcitypes.ResponseQuery{Code: CodeInternal, Log: err.Error()}, nil
		}
		balances, err := snapshot.AccountAssetBalances(addr)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: CodeInternal, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: CodeOK, Value: encodeBalances(balances)}, nil
	case "accounts/nonce":
		addr, err := primitive.ParseBech32m(string(req.Data))
		if err != nil {
			return &abcitypes.ResponseQuery{Code: CodeInternal, Log: err.Error()}, nil
		}
		nonce, err := snapshot.AccountNonce(addr)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: CodeInternal, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: CodeOK, Value: encodeNonce(nonce)}, nil
	default:
		return &abcitypes.ResponseQuery{Code: CodeInternal, Log: "unknown query path"}, nil
	}
}

func (a *App) CheckTx(_ context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	tx, err := a.codec.Decode(req.Tx)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeInternal, Log: err.Error()}, nil
	}
	for _, act := range tx.Actions {
		if err := act.CheckStateless(); err != nil {
			return &abcitypes.ResponseCheckTx{Code: CodeInternal, Log: err.Error()}, nil
		}
	}

	snapshot := accounts.NewSnapshot(a.store)
	nonce, err := snapshot.AccountNonce(tx.Sender)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeInternal, Log: err.Error()}, nil
	}
	if tx.Nonce < nonce {
		return &abcitypes.ResponseCheckTx{
			Code: CodeInvalidNonce,
			Log:  fmt.Sprintf("nonce %d already used, current account nonce is %d", tx.Nonce, nonce),
		}, nil
	}

	balances, err := snapshot.AccountAssetBalances(tx.Sender)
	if err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeInternal, Log: err.Error()}, nil
	}
	balance := make(mempool.Cost, len(balances))
	for _, b := range balances {
		balance[b.Asset.ToIbcPrefixed()] = b.Balance
	}

	cost, priority := txCostAndPriority(tx)
	if err := a.pool.Insert(tx.Sender, tx.Nonce, tx.Group, priority, cost, balance, tx.Hash); err != nil {
		return &abcitypes.ResponseCheckTx{Code: CodeMempoolRejected, Log: err.Error()}, nil
	}

	a.mu.Lock()
	a.rawTxs[tx.Hash] = req.Tx
	a.mu.Unlock()

	return &abcitypes.ResponseCheckTx{Code: CodeOK}, nil
}

// txCostAndPriority estimates, without executing tx, the per-asset
// balance it will debit and a block-building priority, by inspecting the
// same Fee/FeeAsset/Amount fields execute's ChargeFee and balance
// transfers would consume. Action variants with no balance effect
// (sudo/validator changes) contribute nothing to either.
func txCostAndPriority(tx block.Tx) (mempool.Cost, uint64) {
	cost := make(mempool.Cost)
	var priority uint64
	add := func(asset primitive.Asset, amount uint64) {
		if amount == 0 {
			return
		}
		cost[asset.ToIbcPrefixed()] += amount
	}
	for _, act := range tx.Actions {
		switch a := act.(type) {
		case actions.Transfer:
			add(a.Asset, a.Amount)
			add(a.Asset, a.Fee)
			priority += a.Fee
		case actions.BridgeLock:
			add(a.Asset, a.Amount)
			add(a.FeeAsset, a.Fee)
			priority += a.Fee
		case actions.BridgeUnlock:
			add(a.FeeAsset, a.Fee)
			priority += a.Fee
		case actions.InitBridgeAccount:
			add(a.FeeAsset, a.Fee)
			priority += a.Fee
		case actions.Ics20Withdrawal:
			add(a.Denom, a.Amount)
			add(a.FeeAsset, a.Fee)
			priority += a.Fee
		case actions.RollupDataSubmission:
			add(a.FeeAsset, a.Fee)
			priority += a.Fee
		}
	}
	return cost, priority
}

// PrepareProposal builds a candidate block from the mempool's priority
// queue, storing a fingerprint so a later ProcessProposal of this same
// proposal can skip re-execution (ABCI Application §4.7).
func (a *App) PrepareProposal(_ context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prepareProposalCount.Inc(1)

	delta := a.store.NewDelta()
	candidates := a.buildCandidates()

	outcome, err := block.Assemble(block.Prepare, a.cfg.Budget, candidates, delta, a.execute)
	if err != nil {
		return nil, fmt.Errorf("assembling proposal: %w", err)
	}

	fp := block.Fingerprint{ProposerAddress: fmt.Sprintf("%x", req.ProposerAddress), Timestamp: req.Time.UnixNano()}
	if err := block.StoreFingerprint(delta, fp); err != nil {
		return nil, err
	}

	a.applyOutcomeToMempool(outcome)

	a.preparedOutcome = outcome
	a.preparedFingerprint = fp
	a.preparedDelta = delta

	txs := make([][]byte, 0, len(outcome.Included))
	for _, tx := range outcome.Included {
		if raw, ok := a.rawTxs[tx.Hash]; ok {
			txs = append(txs, raw)
		}
	}
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// ProcessProposal validates a proposal authored by any validator. When the
// fingerprint matches our own last PrepareProposal, the cached outcome is
// reused; otherwise the proposal is re-executed from the latest committed
// snapshot (§4.7).
func (a *App) ProcessProposal(_ context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	processProposalCount.Inc(1)

	fp := block.Fingerprint{ProposerAddress: fmt.Sprintf("%x", req.ProposerAddress), Timestamp: req.Time.UnixNano()}

	if a.preparedOutcome != nil && a.preparedFingerprint == fp && block.MatchesStoredFingerprint(a.preparedDelta, fp) {
		fingerprintHitCount.Inc(1)
		if a.preparedOutcome.ProposalRejected {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
		return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
	}

	delta := a.store.NewDelta()
	candidates, err := a.decodeAll(req.Txs)
	if err != nil {
		return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
	}
	outcome, err := block.Assemble(block.Process, a.cfg.Budget, candidates, delta, a.execute)
	if err != nil {
		return nil, fmt.Errorf("re-executing proposal: %w", err)
	}
	if outcome.ProposalRejected {
		return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// FinalizeBlock always runs against a fresh delta keyed to the proposal it
// is given, so a stale speculative delta from PrepareProposal never
// escapes into a committed block (§4.7).
func (a *App) FinalizeBlock(_ context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	finalizeBlockCount.Inc(1)

	delta := a.store.NewDelta()
	if err := a.applyUpgradeIfDue(req.Height, delta); err != nil {
		return nil, fmt.Errorf("applying upgrade at height %d: %w", req.Height, err)
	}

	candidates, err := a.decodeAll(req.Txs)
	if err != nil {
		return nil, fmt.Errorf("decoding finalized transactions: %w", err)
	}

	a.blockFeeBag = make(map[primitive.IbcPrefixed]uint64)
	a.blockValidatorUpdates = nil

	outcome, err := block.Assemble(block.Process, a.cfg.Budget, candidates, delta, a.execute)
	if err != nil {
		return nil, fmt.Errorf("executing finalized block: %w", err)
	}
	if outcome.ProposalRejected {
		return nil, fmt.Errorf("finalized block failed execution: %s", outcome.RejectReason)
	}

	a.applyOutcomeToMempool(outcome)
	for _, tx := range outcome.Included {
		a.pool.PruneFinalized(tx.Sender, tx.Nonce)
		delete(a.rawTxs, tx.Hash)
	}

	if err := a.transferFeeBagToSudo(delta); err != nil {
		return nil, fmt.Errorf("transferring collected fees: %w", err)
	}
	a.blockDelta = delta

	var blockHash [32]byte
	copy(blockHash[:], req.Hash)
	proposer := fmt.Sprintf("%x", req.ProposerAddress)
	a.rememberSequencerBlock(block.NewSequencerBlock(uint64(req.Height), blockHash, a.lastBlockHash, req.Time, proposer, outcome.Included))
	a.lastBlockHash = blockHash

	txResults := make([]*abcitypes.ExecTxResult, len(outcome.Included))
	for i := range outcome.Included {
		txResults[i] = &abcitypes.ExecTxResult{Code: 0}
	}
	return &abcitypes.ResponseFinalizeBlock{
		TxResults:        txResults,
		ValidatorUpdates: toCometValidatorUpdates(a.blockValidatorUpdates),
		AppHash:          nil, // app-hash is only known after Commit's SaveVersion
	}, nil
}

// transferFeeBagToSudo credits every fee debited from transaction signers
// during this block to the chain's sudo address, matching the teacher's
// pattern of a single end-of-block settlement rather than per-action
// transfers (ABCI Application §4.7, end-of-block processing).
func (a *App) transferFeeBagToSudo(delta *state.StateDelta) error {
	if len(a.blockFeeBag) == 0 {
		return nil
	}
	sudo, ok := actions.GetSudoAddress(delta)
	if !ok {
		return nil
	}
	accessor := accounts.NewAccessor(delta)
	for ibcAsset, amount := range a.blockFeeBag {
		if err := accessor.IncreaseBalance(sudo, primitive.NewIbcPrefixedAsset(ibcAsset), amount); err != nil {
			return err
		}
	}
	return nil
}

func toCometValidatorUpdates(updates []actions.ValidatorUpdate) []abcitypes.ValidatorUpdate {
	out := make([]abcitypes.ValidatorUpdate, 0, len(updates))
	for _, u := range updates {
		out = append(out, abcitypes.ValidatorUpdate{
			PubKeyBytes: u.PubKey,
			PubKeyType:  "ed25519",
			Power:       u.Power,
		})
	}
	return out
}

// Commit prepares the write batch and only then replaces the app-hash; if
// the process crashes between FinalizeBlock and Commit, the next startup
// finds blockDelta nil and simply re-executes from the last committed
// snapshot when the consensus engine replays the block (§4.7).
func (a *App) Commit(_ context.Context, _ *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	commitCount.Inc(1)

	if a.blockDelta == nil {
		return &abcitypes.ResponseCommit{}, nil
	}
	if _, _, err := a.store.Commit(a.blockDelta); err != nil {
		return nil, fmt.Errorf("committing block: %w", err)
	}
	a.blockDelta = nil
	a.preparedOutcome = nil
	a.preparedDelta = nil
	return &abcitypes.ResponseCommit{}, nil
}

// ExtendVote returns an empty vote extension and VerifyVoteExtension
// accepts every extension, at every height; no upgrade changes this.
func (a *App) ExtendVote(_ context.Context, _ *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (a *App) VerifyVoteExtension(_ context.Context, _ *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

// State sync snapshots are not supported; this core does not implement
// them as a Non-goal (spec.md §1 names only the ABCI application surface).
func (a *App) ListSnapshots(_ context.Context, _ *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (a *App) OfferSnapshot(_ context.Context, _ *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{Result: abcitypes.ResponseOfferSnapshot_ABORT}, nil
}

func (a *App) LoadSnapshotChunk(_ context.Context, _ *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (a *App) ApplySnapshotChunk(_ context.Context, _ *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{Result: abcitypes.ResponseApplySnapshotChunk_ABORT}, nil
}

// buildCandidates pulls the mempool's priority-ordered queue and decodes
// each into a block.Tx; a transaction whose wire bytes are missing or fail
// to decode is skipped with a warning log rather than breaking proposal
// building.
func (a *App) buildCandidates() []block.Tx {
	entries := a.pool.BuilderQueue()
	out := make([]block.Tx, 0, len(entries))
	for _, e := range entries {
		raw, ok := a.rawTxs[e.Hash]
		if !ok {
			log.Warn("mempool entry missing cached wire bytes", "hash", fmt.Sprintf("%x", e.Hash))
			continue
		}
		tx, err := a.codec.Decode(raw)
		if err != nil {
			log.Warn("dropping undecodable mempool entry", "hash", fmt.Sprintf("%x", e.Hash), "err", err)
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (a *App) decodeAll(raw [][]byte) ([]block.Tx, error) {
	out := make([]block.Tx, 0, len(raw))
	for _, r := range raw {
		tx, err := a.codec.Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// execute runs one transaction's actions against the forked child delta,
// threading a Context through every action the teacher's way (one mutable
// scratch struct per transaction, not per action).
func (a *App) execute(tx block.Tx, child *state.StateDelta) error {
	accessor := accounts.NewAccessor(child)
	bridgeAccessor := bridge.NewAccessor(child)

	var deposits []actions.Deposit
	var events []actions.Event
	var validatorUpdates []actions.ValidatorUpdate

	ctx := &actions.Context{
		Accounts:          accessor,
		Bridge:            bridgeAccessor,
		Delta:             child,
		Signer:            tx.Sender,
		BaseAddressPrefix: a.cfg.BaseAddressPrefix,
		TxHash:            tx.Hash,
		Deposits:          &deposits,
		Events:            &events,
		ValidatorUpdates:  &validatorUpdates,
		FeeBag:            make(map[primitive.IbcPrefixed]uint64),
	}

	nonce, err := accessor.GetNonce(tx.Sender)
	if err != nil {
		return fmt.Errorf("reading signer nonce: %w", err)
	}
	if nonce != tx.Nonce {
		return actions.ErrInvalidNonce
	}

	for i, act := range tx.Actions {
		ctx.ActionIndex = uint32(i)
		// UnbundleableSudo actions (chain sudo/IBC-sudo/fee/validator
		// changes) are authorized here, against the chain's own sudo
		// address; BundleableSudo actions (e.g. BridgeSudoChange) check
		// their own authority internally against bridge-account state.
		if act.Group() == actions.UnbundleableSudo {
			if err := requireSudoSigner(child, tx.Sender); err != nil {
				return err
			}
		}
		if err := act.CheckAndExecute(ctx); err != nil {
			return fmt.Errorf("action execution failed: %w", err)
		}
	}

	accessor.PutNonce(tx.Sender, nonce+1)

	if a.blockFeeBag != nil {
		for asset, amount := range ctx.FeeBag {
			a.blockFeeBag[asset] += amount
		}
		a.blockValidatorUpdates = append(a.blockValidatorUpdates, validatorUpdates...)
	}

	return nil
}

// applyOutcomeToMempool feeds block.Assemble's classification straight
// back into the mempool: invalid-nonce transactions stay, everything else
// evicted is dropped along with the rest of its sender's nonce chain.
func (a *App) applyOutcomeToMempool(outcome *block.Outcome) {
	for senderKey, fromNonce := range outcome.EvictedSenders {
		addr, err := primitive.NewAddress([]byte(senderKey), a.cfg.BaseAddressPrefix)
		if err != nil {
			continue
		}
		a.pool.EvictSenderChain(addr, fromNonce)
	}
}

// requireSudoSigner rejects execution unless signer is the chain's
// currently configured sudo address.
func requireSudoSigner(delta *state.StateDelta, signer primitive.Address) error {
	sudo, ok := actions.GetSudoAddress(delta)
	if !ok {
		return fmt.Errorf("no sudo address configured")
	}
	if !sudo.Equal(signer) {
		return fmt.Errorf("signer is not the chain's sudo address")
	}
	return nil
}

func encodeBalances(balances []accounts.AssetBalance) []byte {
	out := make([]byte, 0, len(balances)*16)
	for _, b := range balances {
		out = append(out, []byte(b.Asset.ToIbcPrefixed().String())...)
		out = append(out, '=')
	}
	return out
}

func encodeNonce(nonce uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, nonce)
	return out
}

package conductor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/astriaorg/astria-go/block"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testRollupID(t *testing.T) primitive.RollupId {
	t.Helper()
	return primitive.RollupIdFromName("test-rollup")
}

type fakeRollupClient struct {
	mu sync.Mutex

	genesis    GenesisInfo
	commitment CommitmentState

	nextHeight    uint32
	executeErr    error
	denyOnce      bool
	executedCount int
	updateCount   int
	genesisCalls  int
}

func (f *fakeRollupClient) GetGenesisInfo(context.Context) (GenesisInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genesisCalls++
	return f.genesis, nil
}

func (f *fakeRollupClient) genesisCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.genesisCalls
}

func (f *fakeRollupClient) GetCommitmentState(context.Context) (CommitmentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitment, nil
}

func (f *fakeRollupClient) ExecuteBlock(_ context.Context, req ExecuteBlockRequest) (BlockIdent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.nextHeight
	if f.denyOnce {
		f.denyOnce = false
		return BlockIdent{}, status.Error(codes.PermissionDenied, "rollup requests restart")
	}
	if f.executeErr != nil {
		return BlockIdent{}, f.executeErr
	}

	f.nextHeight++
	f.executedCount++
	return BlockIdent{Number: next, Hash: []byte{byte(next)}, Parent: req.PrevBlockHash}, nil
}

func (f *fakeRollupClient) UpdateCommitmentState(_ context.Context, state CommitmentState) (CommitmentState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitment = state
	f.updateCount++
	return state, nil
}

func (f *fakeRollupClient) commitmentSnapshot() CommitmentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitment
}

func (f *fakeRollupClient) counts() (executed, updated int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.executedCount, f.updateCount
}

type fakeSoftSource struct {
	mu     sync.Mutex
	blocks map[uint64]*block.FilteredSequencerBlock
}

func newFakeSoftSource() *fakeSoftSource {
	return &fakeSoftSource{blocks: make(map[uint64]*block.FilteredSequencerBlock)}
}

func (f *fakeSoftSource) set(height uint64, b *block.FilteredSequencerBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[height] = b
}

func (f *fakeSoftSource) GetFilteredSequencerBlock(_ context.Context, height uint64, _ []primitive.RollupId) (*block.FilteredSequencerBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[height]
	if !ok {
		return nil, status.Error(codes.NotFound, "no block at height")
	}
	return b, nil
}

type fakeFirmSource struct {
	mu     sync.Mutex
	blocks map[uint64][]*block.FilteredSequencerBlock
}

func newFakeFirmSource() *fakeFirmSource {
	return &fakeFirmSource{blocks: make(map[uint64][]*block.FilteredSequencerBlock)}
}

func (f *fakeFirmSource) set(celestiaHeight uint64, blocks ...*block.FilteredSequencerBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[celestiaHeight] = blocks
}

func (f *fakeFirmSource) GetFirmBlocks(_ context.Context, celestiaHeight uint64, _ primitive.RollupId) ([]*block.FilteredSequencerBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[celestiaHeight]
	if !ok {
		return nil, status.Error(codes.NotFound, "no block at celestia height")
	}
	return b, nil
}

func seqBlock(t *testing.T, height uint64, hash, parent [32]byte, rollupID primitive.RollupId, txs ...[]byte) *block.FilteredSequencerBlock {
	t.Helper()
	return &block.FilteredSequencerBlock{
		Height:     height,
		Hash:       hash,
		ParentHash: parent,
		Time:       time.Unix(int64(height), 0),
		RollupTransactions: map[primitive.RollupId][][]byte{
			rollupID: txs,
		},
	}
}

func waitForCond(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.FailNow(t, "condition not met before timeout")
}

func runExecutor(t *testing.T, e *Executor) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestExecutorExecutesSoftBlocksInOrder(t *testing.T) {
	rollupID := testRollupID(t)
	rollup := &fakeRollupClient{genesis: GenesisInfo{RollupID: rollupID}}
	soft := newFakeSoftSource()
	soft.set(1, seqBlock(t, 1, hashOf("b1"), [32]byte{}, rollupID, []byte("tx1")))
	soft.set(2, seqBlock(t, 2, hashOf("b2"), hashOf("b1"), rollupID, []byte("tx2")))

	e := NewExecutor(Config{
		RollupID:             rollupID,
		CommitLevel:          SoftOnly,
		SequencerStartHeight: 1,
		PollInterval:         5 * time.Millisecond,
	}, rollup, soft, newFakeFirmSource())

	stop := runExecutor(t, e)
	defer stop()

	waitForCond(t, time.Second, func() bool {
		executed, _ := rollup.counts()
		return executed == 2
	})
}

// Acceptance property: when soft and firm blocks land at the same
// height, firm promotion must not re-execute a block the soft path
// already applied -- exactly one execute_block call, one soft
// update_commitment_state, and the firm update promotes without a
// second execution.
func TestSoftThenFirmAtSameHeightDoesNotReexecute(t *testing.T) {
	rollupID := testRollupID(t)
	// nextHeight tracks the rollup's own block-number counter; seeding
	// it at SequencerStartHeight keeps it lined up with the sequencer
	// heights this test executes, matching the executor's documented
	// Number<->height correspondence.
	rollup := &fakeRollupClient{genesis: GenesisInfo{RollupID: rollupID}, nextHeight: 1}
	soft := newFakeSoftSource()
	b1 := seqBlock(t, 1, hashOf("b1"), [32]byte{}, rollupID, []byte("tx1"))
	soft.set(1, b1)

	firm := newFakeFirmSource()

	e := NewExecutor(Config{
		RollupID:             rollupID,
		CommitLevel:          SoftAndFirm,
		SequencerStartHeight: 1,
		PollInterval:         5 * time.Millisecond,
	}, rollup, soft, firm)

	stop := runExecutor(t, e)
	defer stop()

	waitForCond(t, time.Second, func() bool {
		executed, updated := rollup.counts()
		return executed == 1 && updated == 1
	})

	// the same block is now also reconstructable from Celestia; firm
	// promotion must recognize the soft commitment already covers this
	// height and must not execute it a second time.
	firm.set(0, b1)

	waitForCond(t, time.Second, func() bool {
		snap := rollup.commitmentSnapshot()
		return snap.Firm.Number == 1
	})

	executed, _ := rollup.counts()
	require.Equal(t, 1, executed, "firm promotion of an already-soft-committed height must not re-execute it")
}

// Acceptance property: a firm block that arrives before its soft
// counterpart must execute and commit firm at that height; the soft
// block, when it later arrives, executes on top without a duplicate
// firm update.
func TestFirmBeforeSoftExecutesOnceEach(t *testing.T) {
	rollupID := testRollupID(t)
	rollup := &fakeRollupClient{genesis: GenesisInfo{RollupID: rollupID}, nextHeight: 1}
	soft := newFakeSoftSource()
	firm := newFakeFirmSource()

	b1 := seqBlock(t, 1, hashOf("b1"), [32]byte{}, rollupID, []byte("tx1"))
	b2 := seqBlock(t, 2, hashOf("b2"), hashOf("b1"), rollupID, []byte("tx2"))
	firm.set(0, b1)

	e := NewExecutor(Config{
		RollupID:             rollupID,
		CommitLevel:          SoftAndFirm,
		SequencerStartHeight: 1,
		PollInterval:         5 * time.Millisecond,
	}, rollup, soft, firm)

	stop := runExecutor(t, e)
	defer stop()

	waitForCond(t, time.Second, func() bool {
		executed, _ := rollup.counts()
		return executed == 1
	})

	// now the soft path catches up with both blocks; block 1's firm
	// execution must not be repeated, only block 2 executes afresh.
	soft.set(1, b1)
	soft.set(2, b2)

	waitForCond(t, time.Second, func() bool {
		executed, _ := rollup.counts()
		return executed == 2
	})

	executed, _ := rollup.counts()
	require.Equal(t, 2, executed)
}

func TestPermissionDeniedTriggersRestart(t *testing.T) {
	rollupID := testRollupID(t)
	rollup := &fakeRollupClient{genesis: GenesisInfo{RollupID: rollupID}, denyOnce: true}
	soft := newFakeSoftSource()
	soft.set(1, seqBlock(t, 1, hashOf("b1"), [32]byte{}, rollupID, []byte("tx1")))

	e := NewExecutor(Config{
		RollupID:             rollupID,
		CommitLevel:          SoftOnly,
		SequencerStartHeight: 1,
		PollInterval:         5 * time.Millisecond,
	}, rollup, soft, newFakeFirmSource())

	stop := runExecutor(t, e)
	defer stop()

	// the first execute_block attempt is denied, forcing a restart;
	// genesis/commitment state get re-read, the deny is one-shot so it
	// no longer applies, and the block eventually executes.
	waitForCond(t, time.Second, func() bool {
		executed, _ := rollup.counts()
		return executed >= 1
	})
	require.GreaterOrEqual(t, rollup.genesisCallCount(), 2)
}

func TestStopHeightSuppressesSoftButNotFirm(t *testing.T) {
	rollupID := testRollupID(t)
	rollup := &fakeRollupClient{genesis: GenesisInfo{RollupID: rollupID}, nextHeight: 1}
	soft := newFakeSoftSource()
	soft.set(1, seqBlock(t, 1, hashOf("b1"), [32]byte{}, rollupID, []byte("tx1")))

	firm := newFakeFirmSource()
	b1 := seqBlock(t, 1, hashOf("b1"), [32]byte{}, rollupID, []byte("tx1"))
	firm.set(0, b1)

	e := NewExecutor(Config{
		RollupID:             rollupID,
		CommitLevel:          SoftAndFirm,
		SequencerStartHeight: 1,
		StopHeight:           1,
		HaltAtStopHeight:     true,
		PollInterval:         5 * time.Millisecond,
	}, rollup, soft, firm)

	stop := runExecutor(t, e)
	defer stop()

	// soft execution is suppressed at/above the stop height, but firm
	// promotion of the same block still proceeds and halts the executor
	// once the firm commitment reaches the stop height.
	waitForCond(t, time.Second, func() bool {
		executed, updated := rollup.counts()
		return executed == 1 && updated == 1
	})

	time.Sleep(30 * time.Millisecond)
	executed, updated := rollup.counts()
	require.Equal(t, 1, executed, "soft execution must stay suppressed at the stop height")
	require.Equal(t, 1, updated)
}

func TestStopHeightRestartsWithoutHalt(t *testing.T) {
	rollupID := testRollupID(t)
	rollup := &fakeRollupClient{genesis: GenesisInfo{RollupID: rollupID}, nextHeight: 1}
	soft := newFakeSoftSource()
	firm := newFakeFirmSource()
	firm.set(0, seqBlock(t, 1, hashOf("b1"), [32]byte{}, rollupID, []byte("tx1")))

	e := NewExecutor(Config{
		RollupID:             rollupID,
		CommitLevel:          FirmOnly,
		SequencerStartHeight: 1,
		StopHeight:           1,
		HaltAtStopHeight:     false,
		PollInterval:         5 * time.Millisecond,
	}, rollup, soft, firm)

	stop := runExecutor(t, e)
	defer stop()

	waitForCond(t, time.Second, func() bool {
		executed, _ := rollup.counts()
		return executed == 1
	})

	// without halt_at_stop_height, reaching the stop height restarts the
	// executor's life (genesis/commitment re-read) rather than stopping
	// it; genesis gets fetched more than once as a result.
	waitForCond(t, time.Second, func() bool {
		return rollup.genesisCallCount() >= 2
	})
}

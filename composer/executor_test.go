package composer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/app"
	"github.com/astriaorg/astria-go/grpc/optimistic"
	"github.com/astriaorg/astria-go/primitive"
	"github.com/stretchr/testify/require"
)

type fakeSequencerClient struct {
	mu         sync.Mutex
	chainID    string
	nonce      uint32
	broadcasts [][]byte
	code       uint32
}

func (f *fakeSequencerClient) ChainID(context.Context) (string, error) {
	return f.chainID, nil
}

func (f *fakeSequencerClient) LatestNonce(context.Context, primitive.Address) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeSequencerClient) BroadcastTxSync(_ context.Context, wireTx []byte) (BroadcastResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, wireTx)
	return BroadcastResult{Code: f.code}, nil
}

func (f *fakeSequencerClient) broadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.broadcasts)
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(acts []actions.Action, nonce uint32, chainID string) ([]byte, error) {
	return []byte(fmt.Sprintf("tx-%d-%s-%d", nonce, chainID, len(acts))), nil
}

func newTestExecutor(t *testing.T, client *fakeSequencerClient, responses []*SimulateBundleResponse, blockTime time.Duration) (*Executor, *Handle) {
	t.Helper()
	rollupID := primitive.RollupIdFromName("test-rollup")
	asset := primitive.NewAsset("test")
	stream := optimistic.NewMockBidirectionalStreaming[SimulateBundleResponse, SimulateBundleRequest](responses)
	simulator := NewBundleSimulator(stream, rollupID)
	signer := NewSigner(&fakeKeyring{sig: []byte("sig")}, "operator", testAddress(t, 0x01))

	return NewExecutor(ExecutorConfig{
		RollupID:          rollupID,
		FeeAsset:          asset,
		BlockTime:         blockTime,
		ChainID:           client.chainID,
		Address:           testAddress(t, 0x02),
		MaxBytesPerBundle: 1000,
		QueueCapacity:     4,
	}, client, simulator, signer, fakeEncoder{}, 0)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestExecutorSubmitsPushedBundleToSequencer(t *testing.T) {
	client := &fakeSequencerClient{chainID: "astria-test", nonce: 3, code: app.CodeOK}
	responses := []*SimulateBundleResponse{
		{IncludedActions: [][]byte{[]byte("payload")}, ParentHash: []byte("parent")},
	}
	executor, handle := newTestExecutor(t, client, responses, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- executor.Run(ctx) }()

	require.NoError(t, handle.Submit(primitive.RollupIdFromName("test-rollup"), []byte("payload")))

	// the pushed action sits in the current (unsealed) bundle until the
	// block timer forces a PopNow, so wait out at least one timer tick.
	waitFor(t, 3*time.Second, func() bool { return client.broadcastCount() == 1 })

	cancel()
	require.NoError(t, <-done)
}

func TestExecutorReportsStatusConnectedWhileRunning(t *testing.T) {
	client := &fakeSequencerClient{chainID: "astria-test", nonce: 0, code: app.CodeOK}
	executor, _ := newTestExecutor(t, client, nil, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- executor.Run(ctx) }()

	statusCh := executor.Subscribe()
	waitFor(t, 2*time.Second, func() bool {
		select {
		case s := <-statusCh:
			return s.Connected
		default:
			return false
		}
	})

	cancel()
	require.NoError(t, <-done)
}

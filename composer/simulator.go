package composer

import (
	"fmt"
	"io"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/primitive"
)

// SimulateBundleRequest is sent to the rollup's execution service to
// simulate a bundle of rollup data submissions against its pending block,
// without committing the result (Bundle Factory & Simulator §4.9).
type SimulateBundleRequest struct {
	RollupId primitive.RollupId
	Bundle   *SizedBundle
}

// SimulateBundleResponse reports which of the submitted actions the rollup
// would actually include, and the parent block hash they were simulated
// against. Actions the rollup rejects (e.g. would revert) are left out of
// the resulting on-chain bundle rather than retried; the executor logs and
// counts how many were dropped.
type SimulateBundleResponse struct {
	IncludedActions [][]byte
	ParentHash      []byte
}

// bundleSimulationStream is the subset of a bidirectional gRPC stream the
// simulator needs: send a request, receive the next response. Matched
// structurally by both a real generated stream client and, in tests, by
// grpc/optimistic.MockBidirectionalStreaming with its type parameters
// swapped (K=SimulateBundleResponse is what Recv yields, V=SimulateBundleRequest
// is what Send accumulates) since Send/Recv there are role-agnostic.
type bundleSimulationStream interface {
	Send(*SimulateBundleRequest) error
	Recv() (*SimulateBundleResponse, error)
}

// BundleSimulator submits bundles to a rollup's execution service over a
// long-lived bidirectional stream and reports back which actions survived
// simulation.
type BundleSimulator struct {
	stream   bundleSimulationStream
	rollupID primitive.RollupId
}

func NewBundleSimulator(stream bundleSimulationStream, rollupID primitive.RollupId) *BundleSimulator {
	return &BundleSimulator{stream: stream, rollupID: rollupID}
}

// BundleSimulationResult is the simulator's verdict for one bundle: the
// subset of rollup data payloads the rollup would include, and the parent
// hash they were evaluated against.
type BundleSimulationResult struct {
	IncludedActions [][]byte
	ParentHash      []byte
}

// SimulateBundle sends bundle to the rollup and waits for its verdict. An
// io.EOF from Recv means the rollup closed the stream; the caller should
// treat that as a transport failure requiring reconnection, same as any
// other error here.
func (s *BundleSimulator) SimulateBundle(bundle *SizedBundle) (BundleSimulationResult, error) {
	req := &SimulateBundleRequest{RollupId: s.rollupID, Bundle: bundle}
	if err := s.stream.Send(req); err != nil {
		return BundleSimulationResult{}, fmt.Errorf("sending bundle to simulator: %w", err)
	}

	resp, err := s.stream.Recv()
	if err != nil {
		if err == io.EOF {
			return BundleSimulationResult{}, fmt.Errorf("simulator closed stream: %w", err)
		}
		return BundleSimulationResult{}, fmt.Errorf("receiving simulation result: %w", err)
	}

	return BundleSimulationResult{IncludedActions: resp.IncludedActions, ParentHash: resp.ParentHash}, nil
}

// actionDataOf returns the bundle's actions whose payloads appear in
// included, in included's order. The executor uses it only to count the
// actions simulation dropped; the submitted packet is built from the
// simulation result itself.
func actionDataOf(bundle *SizedBundle, included [][]byte) []actions.RollupDataSubmission {
	byData := make(map[string]actions.RollupDataSubmission, len(bundle.Actions()))
	for _, a := range bundle.Actions() {
		byData[string(a.Data)] = a
	}

	out := make([]actions.RollupDataSubmission, 0, len(included))
	for _, data := range included {
		if a, ok := byData[string(data)]; ok {
			out = append(out, a)
		}
	}
	return out
}

package relayer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/astriaorg/astria-go/block"
	"github.com/stretchr/testify/require"
)

type fakeCelestiaClient struct {
	blobParams  BlobParams
	authParams  AuthParams
	minGasPrice float64
	account     Account

	broadcastErr error
	broadcastTx  TxHash

	getTxResults []getTxResult
	getTxCalls   int
}

type getTxResult struct {
	height uint64
	found  bool
	err    error
}

func (f *fakeCelestiaClient) FetchBlobParams(context.Context) (BlobParams, error) { return f.blobParams, nil }
func (f *fakeCelestiaClient) FetchAuthParams(context.Context) (AuthParams, error) { return f.authParams, nil }
func (f *fakeCelestiaClient) FetchMinGasPrice(context.Context) (float64, error)   { return f.minGasPrice, nil }
func (f *fakeCelestiaClient) FetchAccount(context.Context) (Account, error)       { return f.account, nil }

func (f *fakeCelestiaClient) BroadcastTx(context.Context, []byte) (TxHash, error) {
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	return f.broadcastTx, nil
}

func (f *fakeCelestiaClient) GetTx(context.Context, TxHash) (uint64, bool, error) {
	idx := f.getTxCalls
	if idx >= len(f.getTxResults) {
		idx = len(f.getTxResults) - 1
	}
	f.getTxCalls++
	r := f.getTxResults[idx]
	return r.height, r.found, r.err
}

type fakeEncoder struct{ encoded []byte }

func (f *fakeEncoder) Encode(context.Context, []Blob, Account, GasLimit, uint64, string, *Signer) ([]byte, error) {
	return f.encoded, nil
}

type fakeBlockSource struct {
	blocks []*block.SequencerBlock
}

func (f *fakeBlockSource) PendingBlocks(_ context.Context, afterHeight uint64) ([]*block.SequencerBlock, error) {
	var out []*block.SequencerBlock
	for _, b := range f.blocks {
		if b.Height > afterHeight {
			out = append(out, b)
		}
	}
	return out, nil
}

func blockAt(height uint64) *block.SequencerBlock {
	return &block.SequencerBlock{Height: height, Hash: [32]byte{byte(height)}}
}

func TestSubmitterBuildTxEstimatesGasAndFee(t *testing.T) {
	client := &fakeCelestiaClient{
		blobParams:  BlobParams{GasPerBlobByte: 8},
		authParams:  AuthParams{TxSizeCostPerByte: 10},
		minGasPrice: 0.02,
		account:     Account{AccountNumber: 7, Sequence: 1},
	}
	encoder := &fakeEncoder{encoded: []byte("signed-tx")}
	submitter := NewSubmitter(client, encoder, nil, "celestia-test")

	txBytes, err := submitter.BuildTx(context.Background(), []Blob{NewBlob([]byte("ns"), []byte("data"))}, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("signed-tx"), txBytes)
}

func TestSubmitterConfirmReturnsHeightOnSuccess(t *testing.T) {
	client := &fakeCelestiaClient{
		getTxResults: []getTxResult{{found: false}, {found: true, height: 42}},
	}
	submitter := NewSubmitter(client, nil, nil, "celestia-test")

	height, err := submitter.Confirm(context.Background(), "abc", time.Second*5)
	require.NoError(t, err)
	require.Equal(t, uint64(42), height)
}

func TestSubmitterConfirmTimesOut(t *testing.T) {
	client := &fakeCelestiaClient{
		getTxResults: []getTxResult{{found: false}},
	}
	submitter := NewSubmitter(client, nil, nil, "celestia-test")

	_, err := submitter.Confirm(context.Background(), "abc", 10*time.Millisecond)
	require.ErrorContains(t, err, "timed out")
}

func TestRelayerSubmitOnceFullRoundTrip(t *testing.T) {
	dir := t.TempDir()
	statePath := dir + "/state.json"
	require.NoError(t, writeState(freshState(), statePath, tempFilePathFor(statePath)))

	client := &fakeCelestiaClient{
		account:     Account{AccountNumber: 1, Sequence: 1},
		minGasPrice: 0.02,
		broadcastTx: "deadbeef",
		getTxResults: []getTxResult{
			{found: true, height: 100},
		},
	}
	encoder := &fakeEncoder{encoded: []byte("tx-bytes")}
	submitter := NewSubmitter(client, encoder, nil, "celestia-test")
	blocks := &fakeBlockSource{blocks: []*block.SequencerBlock{blockAt(1), blockAt(2)}}
	relayer := NewRelayer([]byte("ns"), blocks, submitter, time.Millisecond)

	startup, err := NewSubmissionStateFromPath(statePath)
	require.NoError(t, err)
	started, err := relayer.resolveStartup(context.Background(), startup)
	require.NoError(t, err)

	next, lastErr, err := relayer.submitOnce(context.Background(), started, nil)
	require.NoError(t, err)
	require.Nil(t, lastErr)
	require.Equal(t, uint64(2), next.LastSubmissionSequencerHeight())
	require.Equal(t, uint64(100), next.LastSubmissionCelestiaHeight())
}

func TestRelayerSubmitOnceRevertsOnBroadcastFailure(t *testing.T) {
	dir := t.TempDir()
	statePath := dir + "/state.json"
	require.NoError(t, writeState(freshState(), statePath, tempFilePathFor(statePath)))

	client := &fakeCelestiaClient{
		account:      Account{AccountNumber: 1, Sequence: 1},
		minGasPrice:  0.02,
		broadcastErr: &BroadcastError{Code: insufficientFeeCode, Log: "insufficient fees; got: 100utia required: 500utia: insufficient fee"},
	}
	encoder := &fakeEncoder{encoded: []byte("tx-bytes")}
	submitter := NewSubmitter(client, encoder, nil, "celestia-test")
	blocks := &fakeBlockSource{blocks: []*block.SequencerBlock{blockAt(1)}}
	relayer := NewRelayer([]byte("ns"), blocks, submitter, time.Millisecond)

	startup, err := NewSubmissionStateFromPath(statePath)
	require.NoError(t, err)
	started, err := relayer.resolveStartup(context.Background(), startup)
	require.NoError(t, err)

	next, lastErr, err := relayer.submitOnce(context.Background(), started, nil)
	require.NoError(t, err)
	require.NotNil(t, lastErr)
	require.Equal(t, uint32(insufficientFeeCode), lastErr.Code)
	require.Equal(t, uint64(0), next.LastSubmissionSequencerHeight())
}

func TestPreparedSubmissionRevertsAfterConfirmationTimeout(t *testing.T) {
	dir := t.TempDir()
	statePath := dir + "/state.json"
	require.NoError(t, writeState(freshState(), statePath, tempFilePathFor(statePath)))

	client := &fakeCelestiaClient{getTxResults: []getTxResult{{found: false}}}
	submitter := NewSubmitter(client, nil, nil, "celestia-test")

	started := StartedSubmission{stateFilePath: statePath, tempFilePath: tempFilePathFor(statePath)}
	prepared, err := started.IntoPrepared(1, BlobTxHash{1})
	require.NoError(t, err)

	_, err = submitter.Confirm(context.Background(), "deadbeef", 5*time.Millisecond)
	require.Error(t, err)

	reverted, err := prepared.Revert()
	require.NoError(t, err)
	require.Equal(t, uint64(0), reverted.LastSubmissionSequencerHeight())
}

func TestAsBroadcastErrorUnwraps(t *testing.T) {
	inner := &BroadcastError{Code: insufficientFeeCode}
	wrapped := errors.New("wrapping")
	var target *BroadcastError
	asBroadcastError(wrapped, &target)
	require.Nil(t, target)

	asBroadcastError(inner, &target)
	require.Equal(t, inner, target)

	target = nil
	asBroadcastError(fmt.Errorf("confirming: %w", inner), &target)
	require.Equal(t, inner, target)
}

func TestEncodeSequencerBlockIncludesHashAndParent(t *testing.T) {
	b := &block.SequencerBlock{Hash: [32]byte{1}, ParentHash: [32]byte{2}}
	encoded := encodeSequencerBlock(b)
	require.Len(t, encoded, 64)
	require.Equal(t, byte(1), encoded[0])
	require.Equal(t, byte(2), encoded[32])
}

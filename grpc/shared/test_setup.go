// Package shared holds a test-harness constructor for tests that drive the
// ABCI application — adapted from the teacher's SetupSharedService, which
// built a geth eth.Ethereum fixture; this core has no EVM, so the fixture
// it builds is an app.App over a temp-dir store instead. Only this
// package's own test uses it.
package shared

import (
	"errors"
	"testing"

	"github.com/astriaorg/astria-go/app"
	"github.com/astriaorg/astria-go/block"
	"github.com/astriaorg/astria-go/mempool"
	"github.com/astriaorg/astria-go/state"
	"github.com/stretchr/testify/require"
)

// StubCodec is a TxCodec backed by a hash-addressable lookup table,
// standing in for the real protocol-apis Transaction decoder wherever a
// test needs to round-trip a block.Tx through the ABCI surface.
type StubCodec struct {
	byHash map[[32]byte]block.Tx
}

// NewStubCodec builds an empty StubCodec.
func NewStubCodec() *StubCodec {
	return &StubCodec{byHash: make(map[[32]byte]block.Tx)}
}

// Register makes tx decodable, returning the "wire bytes" (its hash) a
// caller should hand to CheckTx/PrepareProposal/FinalizeBlock.
func (c *StubCodec) Register(tx block.Tx) []byte {
	c.byHash[tx.Hash] = tx
	return tx.Hash[:]
}

// Decode implements app.TxCodec.
func (c *StubCodec) Decode(raw []byte) (block.Tx, error) {
	var hash [32]byte
	copy(hash[:], raw)
	tx, ok := c.byHash[hash]
	if !ok {
		return block.Tx{}, errNotRegistered
	}
	return tx, nil
}

var errNotRegistered = errors.New("no transaction registered for hash")

// AppHarness is the fixture SetupAppHarness returns: an App over a
// temp-dir-backed store, the codec that feeds it, and the mempool it was
// constructed with, so a caller can drive CheckTx/PrepareProposal/
// FinalizeBlock and then assert against either the App or the pool
// directly.
type AppHarness struct {
	App   *app.App
	Codec *StubCodec
	Pool  *mempool.Pool
}

// SetupAppHarness builds an App over a fresh temp-dir store with the given
// chain id and address prefix, ready for a test to register transactions
// against via Codec.Register and drive through the ABCI cycle.
func SetupAppHarness(t *testing.T, chainID, addressPrefix string) *AppHarness {
	t.Helper()
	store, err := state.Open(state.Config{Dir: t.TempDir()})
	require.NoError(t, err, "can't open state store")
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	codec := NewStubCodec()
	pool := mempool.New()
	a := app.New(app.Config{
		ChainID:           chainID,
		BaseAddressPrefix: addressPrefix,
		Budget:            block.Budget{CometBFTMaxBytes: 1 << 20, SequencerMaxRollupDataBytes: 1 << 20},
	}, store, pool, codec)

	return &AppHarness{App: a, Codec: codec, Pool: pool}
}

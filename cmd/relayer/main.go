// Command relayer runs the Relayer (C10): it reads sequencer blocks and
// submits them to Celestia as blobs under the relayer's Celestia account
// key, tracking progress through the durable submission state file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	"github.com/ethereum/go-ethereum/log"

	"github.com/astriaorg/astria-go/block"
	"github.com/astriaorg/astria-go/relayer"
)

// unverifiedCelestiaClient stands in for a real Celestia app gRPC client:
// satisfying relayer.CelestiaClient concretely needs the celestia-app
// cosmos-sdk query/tx service bindings, unverified from this sandbox (see
// relayer.BlobTxEncoder's doc comment for the matching seam).
type unverifiedCelestiaClient struct{}

func (unverifiedCelestiaClient) FetchBlobParams(context.Context) (relayer.BlobParams, error) {
	return relayer.BlobParams{}, fmt.Errorf("relayer: no celestia client wired")
}
func (unverifiedCelestiaClient) FetchAuthParams(context.Context) (relayer.AuthParams, error) {
	return relayer.AuthParams{}, fmt.Errorf("relayer: no celestia client wired")
}
func (unverifiedCelestiaClient) FetchMinGasPrice(context.Context) (float64, error) {
	return 0, fmt.Errorf("relayer: no celestia client wired")
}
func (unverifiedCelestiaClient) FetchAccount(context.Context) (relayer.Account, error) {
	return relayer.Account{}, fmt.Errorf("relayer: no celestia client wired")
}
func (unverifiedCelestiaClient) BroadcastTx(context.Context, []byte) (relayer.TxHash, error) {
	return "", fmt.Errorf("relayer: no celestia client wired")
}
func (unverifiedCelestiaClient) GetTx(context.Context, relayer.TxHash) (uint64, bool, error) {
	return 0, false, fmt.Errorf("relayer: no celestia client wired")
}

// unverifiedBlobTxEncoder stands in for the real celestia-app blob tx
// builder and signer; see relayer.CelestiaClient's doc comment for why it
// cannot be built here.
type unverifiedBlobTxEncoder struct{}

func (unverifiedBlobTxEncoder) Encode(context.Context, []relayer.Blob, relayer.Account, relayer.GasLimit, uint64, string, *relayer.Signer) ([]byte, error) {
	return nil, fmt.Errorf("relayer: no blob tx encoder wired")
}

// unverifiedSequencerBlockSource stands in for the sequencer's SequencerService
// read path (grpc/sequencer), whose generated bindings were never verified
// from this sandbox.
type unverifiedSequencerBlockSource struct{}

func (unverifiedSequencerBlockSource) PendingBlocks(context.Context, uint64) ([]*block.SequencerBlock, error) {
	return nil, fmt.Errorf("relayer: no sequencer block source wired")
}

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))

	cfg := configFromEnv()

	kr, err := keyring.New("astria-relayer", cfg.keyringBackend, cfg.keyringDir, os.Stdin, nil)
	if err != nil {
		log.Crit("opening relayer keyring", "err", err)
	}
	signer := relayer.NewSigner(kr, cfg.keyringUID, cfg.celestiaAddress)

	submitter := relayer.NewSubmitter(unverifiedCelestiaClient{}, unverifiedBlobTxEncoder{}, signer, cfg.celestiaChainID)
	r := relayer.NewRelayer([]byte(cfg.namespace), unverifiedSequencerBlockSource{}, submitter, cfg.pollInterval)

	log.Info("relayer started", "namespace", cfg.namespace, "celestia_chain_id", cfg.celestiaChainID, "state_file", cfg.stateFilePath)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := r.Run(ctx, cfg.stateFilePath); err != nil && ctx.Err() == nil {
		log.Error("relayer exited", "err", err)
	}

	log.Info("relayer shutting down")
}

type relayerConfig struct {
	namespace       string
	celestiaChainID string
	celestiaAddress string
	stateFilePath   string
	pollInterval    time.Duration
	keyringBackend  string
	keyringDir      string
	keyringUID      string
}

func configFromEnv() relayerConfig {
	return relayerConfig{
		namespace:       envOr("ASTRIA_RELAYER_CELESTIA_NAMESPACE", "astria"),
		celestiaChainID: envOr("ASTRIA_RELAYER_CELESTIA_CHAIN_ID", "celestia"),
		celestiaAddress: envOr("ASTRIA_RELAYER_CELESTIA_ADDRESS", ""),
		stateFilePath:   envOr("ASTRIA_RELAYER_STATE_FILE", "/tmp/astria-relayer/state.json"),
		pollInterval:    time.Duration(envOrInt("ASTRIA_RELAYER_POLL_INTERVAL_MS", 500)) * time.Millisecond,
		keyringBackend:  envOr("ASTRIA_RELAYER_KEYRING_BACKEND", "test"),
		keyringDir:      envOr("ASTRIA_RELAYER_KEYRING_DIR", "/tmp/astria-relayer/keyring"),
		keyringUID:      envOr("ASTRIA_RELAYER_KEYRING_UID", "relayer"),
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("ignoring unparseable env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

// Command composer runs the Composer Executor (C8): it collects rollup
// transactions over the GrpcCollectorService, bundles them, and submits
// them to the sequencer under the operator's signing key.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	"github.com/ethereum/go-ethereum/log"

	"github.com/astriaorg/astria-go/actions"
	"github.com/astriaorg/astria-go/composer"
	grpccollector "github.com/astriaorg/astria-go/grpc/collector"
	"github.com/astriaorg/astria-go/node"
	"github.com/astriaorg/astria-go/primitive"
)

// unverifiedSequencerClient stands in for a real CometBFT RPC client
// (github.com/cometbft/cometbft/rpc/client/http): satisfying
// composer.SequencerClient concretely needs the protocol-apis generated
// Transaction/Action bindings to interpret broadcast responses, which this
// sandbox could not verify (see composer.TxEncoder's doc comment).
type unverifiedSequencerClient struct{ chainID string }

func (c unverifiedSequencerClient) ChainID(context.Context) (string, error) { return c.chainID, nil }
func (c unverifiedSequencerClient) LatestNonce(context.Context, primitive.Address) (uint32, error) {
	return 0, fmt.Errorf("composer: no sequencer rpc client wired")
}
func (c unverifiedSequencerClient) BroadcastTxSync(context.Context, []byte) (composer.BroadcastResult, error) {
	return composer.BroadcastResult{}, fmt.Errorf("composer: no sequencer rpc client wired")
}

// unverifiedTxEncoder stands in for the real protocol-apis wire encoder;
// see composer.TxEncoder's doc comment for why it cannot be built here.
type unverifiedTxEncoder struct{}

func (unverifiedTxEncoder) Encode(_ []actions.Action, _ uint32, _ string) ([]byte, error) {
	return nil, fmt.Errorf("composer: no protocol-apis tx encoder wired")
}

// handleToIntake adapts composer.Handle's Submit method to
// grpc/collector.BundleIntake's TryPush, the only thing standing between
// the executor and the collector service — the two interfaces describe the
// same operation under different names because BundleIntake mirrors the
// generated gRPC service method name and Handle mirrors the executor's own
// vocabulary.
type handleToIntake struct{ handle *composer.Handle }

func (h handleToIntake) TryPush(rollupID primitive.RollupId, data []byte) error {
	return h.handle.Submit(rollupID, data)
}

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))

	cfg := configFromEnv()

	rawAddr, err := hex.DecodeString(cfg.operatorAddressHex)
	if err != nil {
		log.Crit("parsing operator address hex", "err", err)
	}
	addr, err := primitive.NewAddress(rawAddr, cfg.addressPrefix)
	if err != nil {
		log.Crit("parsing operator address", "err", err)
	}

	backend := cfg.keyringBackend
	kr, err := keyring.New("astria-composer", backend, cfg.keyringDir, os.Stdin, nil)
	if err != nil {
		log.Crit("opening operator keyring", "err", err)
	}
	signer := composer.NewSigner(kr, cfg.keyringUID, addr)

	rollupID := primitive.RollupIdFromName(cfg.rollupName)
	feeAsset := primitive.NewAsset(cfg.feeAssetDenom)

	executor, handle := composer.NewExecutor(composer.ExecutorConfig{
		RollupID:          rollupID,
		FeeAsset:          feeAsset,
		BlockTime:         cfg.blockTime,
		ChainID:           cfg.sequencerChainID,
		Address:           addr,
		MaxBytesPerBundle: cfg.maxBytesPerBundle,
		QueueCapacity:     cfg.queueCapacity,
	}, unverifiedSequencerClient{chainID: cfg.sequencerChainID}, nil, signer, unverifiedTxEncoder{}, cfg.feeAmount)

	// grpc/collector.Server implements the collector's business logic, but
	// registering it against *grpc.Server needs the generated
	// GrpcCollectorService binding (composer-apis), unverified from this
	// sandbox — the same seam node's package doc describes. The handler is
	// built with no registrars so it listens (for future registration) but
	// serves nothing yet; a deployment with the generated stubs available
	// would pass a registrar closure wrapping collectorServer here.
	collectorServer := grpccollector.NewServer(handleToIntake{handle: handle})
	_ = collectorServer

	grpcHandler := node.NewGRPCServerHandler(cfg.grpcAddr)
	if err := grpcHandler.Start(); err != nil {
		log.Crit("starting grpc server", "err", err)
	}
	defer grpcHandler.Stop()

	log.Info("composer started", "grpc_addr", cfg.grpcAddr, "rollup", cfg.rollupName, "chain_id", cfg.sequencerChainID)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := executor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("executor exited", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("composer shutting down")
}

type composerConfig struct {
	rollupName         string
	sequencerChainID   string
	addressPrefix      string
	operatorAddressHex string
	feeAssetDenom      string
	feeAmount          uint64
	maxBytesPerBundle  int
	queueCapacity      int
	blockTime          time.Duration
	grpcAddr           string
	keyringBackend     string
	keyringDir         string
	keyringUID         string
}

func configFromEnv() composerConfig {
	return composerConfig{
		rollupName:         envOr("ASTRIA_COMPOSER_ROLLUP_NAME", "astria-rollup"),
		sequencerChainID:   envOr("ASTRIA_COMPOSER_SEQUENCER_CHAIN_ID", "astria-dev"),
		addressPrefix:      envOr("ASTRIA_COMPOSER_ADDRESS_PREFIX", "astria"),
		operatorAddressHex: envOr("ASTRIA_COMPOSER_OPERATOR_ADDRESS", ""),
		feeAssetDenom:      envOr("ASTRIA_COMPOSER_FEE_ASSET", "nria"),
		feeAmount:          uint64(envOrInt("ASTRIA_COMPOSER_FEE_AMOUNT", 0)),
		maxBytesPerBundle:  envOrInt("ASTRIA_COMPOSER_MAX_BYTES_PER_BUNDLE", 200_000),
		queueCapacity:      envOrInt("ASTRIA_COMPOSER_QUEUE_CAPACITY", 64),
		blockTime:          time.Duration(envOrInt("ASTRIA_COMPOSER_BLOCK_TIME_MS", 2_000)) * time.Millisecond,
		grpcAddr:           envOr("ASTRIA_COMPOSER_GRPC_ADDR", "0.0.0.0:8081"),
		keyringBackend:     envOr("ASTRIA_COMPOSER_KEYRING_BACKEND", "test"),
		keyringDir:         envOr("ASTRIA_COMPOSER_KEYRING_DIR", "/tmp/astria-composer/keyring"),
		keyringUID:         envOr("ASTRIA_COMPOSER_KEYRING_UID", "operator"),
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

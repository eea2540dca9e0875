// Command sequencer runs the ABCI Application (C7) over CometBFT's socket
// protocol and starts a gRPC listener on which no service
// (SequencerService, GrpcCollectorService) is registered.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	abciserver "github.com/cometbft/cometbft/abci/server"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/log"

	"github.com/astriaorg/astria-go/app"
	"github.com/astriaorg/astria-go/block"
	"github.com/astriaorg/astria-go/mempool"
	"github.com/astriaorg/astria-go/node"
	"github.com/astriaorg/astria-go/state"
)

// unverifiedTxCodec stands in for the concrete SignedTransaction/Action
// decoder: decoding the real wire format needs the protocol-apis generated
// bindings, which could not be verified from this sandbox (see app.TxCodec
// and node's package doc for the same seam). A process wired against it
// fails CheckTx/PrepareProposal for every transaction rather than silently
// misinterpreting bytes.
type unverifiedTxCodec struct{}

func (unverifiedTxCodec) Decode(raw []byte) (block.Tx, error) {
	return block.Tx{}, fmt.Errorf("sequencer: no protocol-apis transaction codec wired (%d raw bytes)", len(raw))
}

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))

	cfg := configFromEnv()

	store, err := state.Open(state.Config{Dir: cfg.stateDir, CacheSize: cfg.cacheSize})
	if err != nil {
		log.Crit("opening state store", "err", err)
	}
	defer store.Close()

	pool := mempool.New()
	application := app.New(app.Config{
		ChainID:           cfg.chainID,
		BaseAddressPrefix: cfg.addressPrefix,
		Budget: block.Budget{
			CometBFTMaxBytes:            cfg.cometBFTMaxBytes,
			SequencerMaxRollupDataBytes: cfg.rollupDataMaxBytes,
		},
	}, store, pool, unverifiedTxCodec{})

	// SequencerService and GrpcCollectorService registration is deferred to
	// node's own documented seam: the sequencerblock-apis/composer-apis
	// generated bindings were never verified from this sandbox. A deployment
	// with those bindings available would pass concrete registrars here.
	grpcHandler := node.NewGRPCServerHandler(cfg.grpcAddr)
	if err := grpcHandler.Start(); err != nil {
		log.Crit("starting grpc server", "err", err)
	}
	defer grpcHandler.Stop()

	abciSrv, err := abciserver.NewServer(cfg.abciAddr, "socket", application)
	if err != nil {
		log.Crit("constructing abci server", "err", err)
	}
	abciSrv.SetLogger(cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stderr)))
	if err := abciSrv.Start(); err != nil {
		log.Crit("starting abci server", "err", err)
	}
	defer abciSrv.Stop()

	log.Info("sequencer started", "abci_addr", cfg.abciAddr, "grpc_addr", cfg.grpcAddr, "chain_id", cfg.chainID)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	log.Info("sequencer shutting down")
}

type sequencerConfig struct {
	chainID            string
	addressPrefix      string
	stateDir           string
	cacheSize          int
	abciAddr           string
	grpcAddr           string
	cometBFTMaxBytes   int
	rollupDataMaxBytes int
}

func configFromEnv() sequencerConfig {
	return sequencerConfig{
		chainID:            envOr("ASTRIA_SEQUENCER_CHAIN_ID", "astria-dev"),
		addressPrefix:      envOr("ASTRIA_SEQUENCER_ADDRESS_PREFIX", "astria"),
		stateDir:           envOr("ASTRIA_SEQUENCER_DB_DIR", "/tmp/astria-sequencer/state"),
		cacheSize:          envOrInt("ASTRIA_SEQUENCER_STATE_CACHE_SIZE", 100_000),
		abciAddr:           envOr("ASTRIA_SEQUENCER_LISTEN_ADDR", "tcp://0.0.0.0:26658"),
		grpcAddr:           envOr("ASTRIA_SEQUENCER_GRPC_ADDR", "0.0.0.0:8080"),
		cometBFTMaxBytes:   envOrInt("ASTRIA_SEQUENCER_MAX_COMETBFT_BYTES", 1_000_000),
		rollupDataMaxBytes: envOrInt("ASTRIA_SEQUENCER_MAX_ROLLUP_DATA_BYTES", 600_000),
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

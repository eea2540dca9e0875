// Command conductor drives one rollup through its soft and firm
// commitments (Conductor Executor, C11) against a real rollup execution
// gRPC endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/astriaorg/astria-go/block"
	"github.com/astriaorg/astria-go/conductor"
	"github.com/astriaorg/astria-go/grpc/execution"
	"github.com/astriaorg/astria-go/primitive"
)

// unverifiedSoftBlockSource stands in for grpc/sequencer's read path over
// SequencerService, whose generated bindings were never verified from this
// sandbox (see node's package doc for the same seam).
type unverifiedSoftBlockSource struct{}

func (unverifiedSoftBlockSource) GetFilteredSequencerBlock(context.Context, uint64, []primitive.RollupId) (*block.FilteredSequencerBlock, error) {
	return nil, fmt.Errorf("conductor: no sequencer block source wired")
}

// unverifiedFirmBlockSource stands in for the relayer's read path over
// already-published Celestia blobs, which this module does not yet expose
// as a queryable service.
type unverifiedFirmBlockSource struct{}

func (unverifiedFirmBlockSource) GetFirmBlocks(context.Context, uint64, primitive.RollupId) ([]*block.FilteredSequencerBlock, error) {
	return nil, fmt.Errorf("conductor: no firm block source wired")
}

func main() {
	log.SetDefault(log.NewLogger(log.NewTerminalHandler(os.Stderr, true)))

	cfg := configFromEnv()

	conn, err := grpc.NewClient(cfg.rollupExecutionAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Crit("dialing rollup execution service", "err", err)
	}
	defer conn.Close()

	rollupClient := conductor.NewRollupExecutionClient(execution.NewClient(conn))

	rollupID := primitive.RollupIdFromName(cfg.rollupName)

	executor := conductor.NewExecutor(conductor.Config{
		RollupID:             rollupID,
		CommitLevel:          cfg.commitLevel,
		SequencerStartHeight: cfg.sequencerStartHeight,
		StopHeight:           cfg.stopHeight,
		HaltAtStopHeight:     cfg.haltAtStopHeight,
		PollInterval:         cfg.pollInterval,
	}, rollupClient, unverifiedSoftBlockSource{}, unverifiedFirmBlockSource{})

	log.Info("conductor started", "rollup", cfg.rollupName, "rollup_execution_addr", cfg.rollupExecutionAddr, "commit_level", cfg.commitLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := executor.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("conductor exited", "err", err)
	}

	log.Info("conductor shutting down")
}

type conductorConfig struct {
	rollupName           string
	rollupExecutionAddr  string
	commitLevel          conductor.CommitLevel
	sequencerStartHeight uint64
	stopHeight           uint64
	haltAtStopHeight     bool
	pollInterval         time.Duration
}

func configFromEnv() conductorConfig {
	return conductorConfig{
		rollupName:           envOr("ASTRIA_CONDUCTOR_ROLLUP_NAME", "astria-rollup"),
		rollupExecutionAddr:  envOr("ASTRIA_CONDUCTOR_EXECUTION_RPC_ADDR", "127.0.0.1:50051"),
		commitLevel:          commitLevelFromEnv("ASTRIA_CONDUCTOR_COMMIT_LEVEL", conductor.SoftAndFirm),
		sequencerStartHeight: uint64(envOrInt("ASTRIA_CONDUCTOR_SEQUENCER_START_HEIGHT", 1)),
		stopHeight:           uint64(envOrInt("ASTRIA_CONDUCTOR_STOP_HEIGHT", 0)),
		haltAtStopHeight:     envOrBool("ASTRIA_CONDUCTOR_HALT_AT_STOP_HEIGHT", false),
		pollInterval:         time.Duration(envOrInt("ASTRIA_CONDUCTOR_POLL_INTERVAL_MS", 1_000)) * time.Millisecond,
	}
}

func commitLevelFromEnv(key string, fallback conductor.CommitLevel) conductor.CommitLevel {
	switch envOr(key, "") {
	case "soft-only":
		return conductor.SoftOnly
	case "firm-only":
		return conductor.FirmOnly
	case "soft-and-firm":
		return conductor.SoftAndFirm
	case "":
		return fallback
	default:
		log.Warn("ignoring unrecognized commit level, using default", "key", key)
		return fallback
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

func envOrBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn("ignoring unparseable env var, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return b
}

// Package node wires the long-running gRPC listeners a sequencer process
// exposes: SequencerService and GrpcCollectorService (spec.md §6). The
// generated protocol-apis bindings for those two services could not be
// verified from this sandbox (no network fetch of
// buf.build/gen/go/astria/{sequencerblock,composer}-apis), so registration
// is left to a caller-supplied closure rather than a concrete
// RegisterXXXServer call guessed at the risk of referencing nonexistent
// generated types — the same seam as app.TxCodec.
package node

import (
	"net"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"google.golang.org/grpc"
)

// Registrar attaches a service implementation to srv, e.g.
//
//	func(srv *grpc.Server) {
//	    sequencerpb.RegisterSequencerServiceServer(srv, sequencerServer)
//	}
type Registrar func(srv *grpc.Server)

// GRPCServerHandler owns the TCP listener for this process's gRPC services
// so it can be started and stopped alongside the rest of the node.
type GRPCServerHandler struct {
	mu sync.Mutex

	tcpEndpoint string
	server      *grpc.Server
}

// NewGRPCServerHandler builds a grpc.Server, runs every registrar against
// it, and returns a handler that listens on tcpEndpoint once Start is
// called. An empty tcpEndpoint disables the server: Start becomes a no-op,
// matching how a process without a configured gRPC address should behave.
func NewGRPCServerHandler(tcpEndpoint string, registrars ...Registrar) *GRPCServerHandler {
	srv := grpc.NewServer()
	for _, register := range registrars {
		register(srv)
	}
	return &GRPCServerHandler{tcpEndpoint: tcpEndpoint, server: srv}
}

// Start starts the gRPC server if a tcp endpoint is configured.
func (h *GRPCServerHandler) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tcpEndpoint == "" {
		return nil
	}

	lis, err := net.Listen("tcp", h.tcpEndpoint)
	if err != nil {
		return err
	}

	go func() {
		if err := h.server.Serve(lis); err != nil {
			log.Error("gRPC server stopped serving", "err", err)
		}
	}()
	log.Info("gRPC server started", "tcpEndpoint", h.tcpEndpoint)
	return nil
}

// Stop gracefully stops the gRPC server.
func (h *GRPCServerHandler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tcpEndpoint == "" {
		return nil
	}
	h.server.GracefulStop()
	log.Info("gRPC server stopped", "tcpEndpoint", h.tcpEndpoint)
	return nil
}

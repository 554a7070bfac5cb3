// Package core wires a fluxmesh.Config into a ready-to-use api.Context:
// dialing or mocking a net.Group, constructing the shared mem.BlockPool,
// and starting the stream.Multiplexer on top of it (spec §9 "Bring-up").
// Context and the stage runtime (RunStage/RunAction) live directly in
// package api instead of here, since every node constructor already
// takes *api.Context as its first argument the way Thrill's API takes a
// Context&; core's job is strictly the one-time wiring a host does
// before building any DIA, not anything the DIA operators themselves
// need (DESIGN.md Open Question decision (h)).
package core

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	fluxmesh "github.com/grafana/fluxmesh"
	"github.com/grafana/fluxmesh/api"
	"github.com/grafana/fluxmesh/mem"
	"github.com/grafana/fluxmesh/net"
	"github.com/grafana/fluxmesh/stream"
)

// RunLocalMock builds NumHosts in-process Contexts wired together over
// net.NewMockGroups, for tests and the cmd/fluxctl demo harness. Each
// Context gets its own BlockPool and Multiplexer, matching one Context
// per host (spec §9; each Context's Workers is set from cfg.WorkersPerHost).
func RunLocalMock(cfg fluxmesh.Config, logger log.Logger) ([]*api.Context, error) {
	if cfg.NumHosts <= 0 {
		return nil, fmt.Errorf("core.RunLocalMock: NumHosts must be positive, got %d", cfg.NumHosts)
	}
	groups := net.NewMockGroups(cfg.NumHosts)
	runID := uuid.New().String()

	ctxs := make([]*api.Context, cfg.NumHosts)
	for r, g := range groups {
		poolCfg := cfg.Pool
		hostLogger := log.With(logger, "rank", r, "run_id", runID)
		pool, err := mem.NewPool(&poolCfg, hostLogger)
		if err != nil {
			return nil, fmt.Errorf("core.RunLocalMock: rank %d: %w", r, err)
		}
		mux := stream.NewMultiplexer(g, pool)
		ctx := api.NewContext(pool, g, mux, hostLogger)
		ctx.Workers = cfg.WorkersPerHost
		ctx.SelfVerify = cfg.SelfVerify
		ctx.RunID = runID
		ctxs[r] = ctx
	}
	return ctxs, nil
}

// Dial builds a single Context for this process's rank over a TCP
// transport, connecting to the peer addresses named in cfg.TCPPeers
// (spec §3 "tcp transport"). rank must index cfg.TCPPeers.
func Dial(cfg fluxmesh.Config, rank int, logger log.Logger) (*api.Context, error) {
	if cfg.Transport != "tcp" {
		return nil, fmt.Errorf("core.Dial: Transport must be tcp, got %q", cfg.Transport)
	}
	if rank < 0 || rank >= len(cfg.TCPPeers) {
		return nil, fmt.Errorf("core.Dial: rank %d out of range for %d peers", rank, len(cfg.TCPPeers))
	}
	// Each process dials independently with no bootstrap channel to agree
	// on a shared id beforehand, so unlike RunLocalMock's single shared
	// RunID, a tcp run's hosts each mint their own.
	runID := uuid.New().String()
	hostLogger := log.With(logger, "rank", rank, "run_id", runID)
	g, err := net.DialTCP(cfg.TCPPeers, rank, hostLogger)
	if err != nil {
		return nil, fmt.Errorf("core.Dial: %w", err)
	}
	poolCfg := cfg.Pool
	pool, err := mem.NewPool(&poolCfg, hostLogger)
	if err != nil {
		return nil, fmt.Errorf("core.Dial: %w", err)
	}
	mux := stream.NewMultiplexer(g, pool)
	ctx := api.NewContext(pool, g, mux, hostLogger)
	ctx.Workers = cfg.WorkersPerHost
	ctx.SelfVerify = cfg.SelfVerify
	ctx.RunID = runID
	return ctx, nil
}

// CloseAll tears down every Context's Multiplexer (which in turn closes
// its Group), the mirror image of RunLocalMock/Dial.
func CloseAll(ctxs ...*api.Context) error {
	var err error
	for _, ctx := range ctxs {
		err = multierr.Append(err, ctx.Mux.Close())
	}
	return err
}

// Package api implements the user-facing DIA handle, its fused
// function-stack composition, the node DAG, and the representative
// operator set (spec §4.7 "DIA Node, Function Stack, Stage Runtime").
package api

import (
	"github.com/go-kit/log"

	"github.com/grafana/fluxmesh/mem"
	"github.com/grafana/fluxmesh/net"
	"github.com/grafana/fluxmesh/stream"
)

// Context is the per-host handle every DIA operation is built against: it
// bundles the memory, network, and stream-multiplexing resources a node's
// pre-op/execute/push-data cycle needs, replacing Thrill's process-wide
// singletons (Design Notes §9).
type Context struct {
	Pool   *mem.BlockPool
	Group  net.Group
	Mux    *stream.Multiplexer
	Logger log.Logger

	// Workers is the number of local compute workers sharing this host's
	// Pool/Group/Mux; WorkerID identifies which of them this Context's
	// caller acts as. A mock single-process run typically uses Workers=1.
	Workers  int
	WorkerID int

	// SelfVerify threads the engine-wide self-verify header setting
	// (spec §6) into every Writer/Reader this package constructs.
	SelfVerify bool

	// RunID correlates every host's log lines back to one dataflow run;
	// every Context built by the same bring-up call shares the same
	// RunID, the way a single core.RunLocalMock/core.Dial invocation
	// represents one run across hosts.
	RunID string

	nextStreamID uint64
	nextNodeID   uint64
}

// NewContext builds a Context over already-dialed resources.
func NewContext(pool *mem.BlockPool, group net.Group, mux *stream.Multiplexer, logger log.Logger) *Context {
	return &Context{Pool: pool, Group: group, Mux: mux, Logger: logger, Workers: 1, SelfVerify: false}
}

// newStreamID hands out the next logical stream id from this Context's
// own counter, matching Thrill's Context::next_dia_id()/id_generator for
// streams opened by node Execute() phases. Every host's Context issues the
// same sequence, so hosts that open streams in the same order agree on ids.
func (c *Context) newStreamID() uint64 {
	c.nextStreamID++
	return c.nextStreamID
}

func (c *Context) newNodeID() uint64 {
	c.nextNodeID++
	return c.nextNodeID
}

func (c *Context) rank() int      { return c.Group.Rank() }
func (c *Context) numHosts() int  { return c.Group.NumPeers() }

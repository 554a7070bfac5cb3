package stream

import (
	"fmt"
	"sync"

	"github.com/grafana/fluxmesh/data"
	"github.com/grafana/fluxmesh/fluxerr"
	"github.com/grafana/fluxmesh/mem"
	"github.com/grafana/fluxmesh/net"
)

// setKey identifies one logical stream instance on this rank: a stream id
// scoped to the local worker that owns it (spec §4.6: "the stream-set for
// stream_id on the target local worker").
type setKey struct {
	id     uint64
	worker int
}

// Multiplexer owns one stream-set per (stream_id, local_worker), lazily
// created on first header or first Writer acquisition, and the background
// receive loops that demultiplex incoming headers off every peer
// connection in the Group.
type Multiplexer struct {
	group net.Group
	pool  *mem.BlockPool
	rank  int
	peers int

	mu   sync.Mutex
	sets map[setKey]*set
}

// NewMultiplexer starts one receive goroutine per remote peer in g and
// returns a Multiplexer ready to mint CatStream/MixStream handles.
// Incoming blocks are reconstructed as pinned ByteBlocks allocated from
// pool at the header's size: a pooled block when that equals the pool's
// block size, a one-off allocation otherwise.
func NewMultiplexer(g net.Group, pool *mem.BlockPool) *Multiplexer {
	m := &Multiplexer{
		group: g,
		pool:  pool,
		rank:  g.Rank(),
		peers: g.NumPeers(),
		sets:  make(map[setKey]*set),
	}
	for peer := 0; peer < m.peers; peer++ {
		if peer == m.rank {
			continue
		}
		go m.receiveLoop(peer)
	}
	return m
}

// receiveLoop asynchronously reads headers from one peer connection and
// routes each to its stream-set (spec §4.6 "Receive side"). It exits
// silently once the connection is closed or returns a read error; any
// substreams left open on it remain open, since a clean stream close
// always arrives as an explicit zero-size header (connection teardown is
// not itself treated as end-of-stream here, ordinary Close() is).
func (m *Multiplexer) receiveLoop(peer int) {
	conn := m.group.Connection(peer)
	for {
		h, err := readHeader(conn)
		if err != nil {
			return
		}
		s := m.setFor(h.Magic, h.StreamID, int(h.ReceiverLocalWorker))
		if h.IsClose() {
			s.closeSubstream(int(h.SenderRank))
			continue
		}
		bb, err := m.pool.Allocate(int(h.Size), true)
		if err != nil {
			return
		}
		payload, err := conn.Receive(int(h.Size))
		if err != nil {
			return
		}
		if _, err := bb.Write(payload); err != nil {
			return
		}
		blk := data.NewBlock(bb, 0, int(h.Size), int(h.NumItems), int(h.FirstItem))
		s.deliver(int(h.SenderRank), blk)
	}
}

func (m *Multiplexer) setFor(magic Magic, id uint64, worker int) *set {
	key := setKey{id: id, worker: worker}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[key]; ok {
		return s
	}
	s := newSet(m, magic, id, worker)
	m.sets[key] = s
	return s
}

// CatStream returns the cat-ordered stream instance for (id, worker) on
// this rank, creating it on first use.
func (m *Multiplexer) CatStream(id uint64, worker int) (*CatStream, error) {
	s, err := m.streamFor(MagicCat, id, worker)
	if err != nil {
		return nil, err
	}
	return &CatStream{set: s}, nil
}

// MixStream returns the mix-ordered stream instance for (id, worker) on
// this rank, creating it on first use.
func (m *Multiplexer) MixStream(id uint64, worker int) (*MixStream, error) {
	s, err := m.streamFor(MagicMix, id, worker)
	if err != nil {
		return nil, err
	}
	return newMixStream(s), nil
}

// Close shuts down the underlying Group, which causes every receive loop
// to observe a read error and exit.
func (m *Multiplexer) Close() error {
	return m.group.Close()
}

func (m *Multiplexer) streamFor(magic Magic, id uint64, worker int) (*set, error) {
	s := m.setFor(magic, id, worker)
	if s.magic != magic {
		return nil, fluxerr.New(fluxerr.UsageError, "stream.Multiplexer",
			fmt.Errorf("stream %d/worker %d already opened as %s, not %s", id, worker, s.magic, magic))
	}
	return s, nil
}

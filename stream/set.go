package stream

import (
	"sync"

	"github.com/grafana/fluxmesh/data"
)

// set is the shared machinery behind CatStream and MixStream: one
// BlockQueue per sender rank, fed either by the Multiplexer's receive
// loops (remote senders) or a direct loopback enqueue (the local sender,
// spec §4.6 "Send side"), plus per-substream close accounting so the
// stream as a whole can report end-of-stream once every peer and the
// local half have closed.
type set struct {
	mux    *Multiplexer
	magic  Magic
	id     uint64
	worker int

	rank  int
	peers int

	mu        sync.Mutex
	queues    []*data.BlockQueue // indexed by sender rank
	remaining int                // substreams (peers, including local) not yet closed
}

func newSet(m *Multiplexer, magic Magic, id uint64, worker int) *set {
	n := m.peers
	s := &set{
		mux:       m,
		magic:     magic,
		id:        id,
		worker:    worker,
		rank:      m.rank,
		peers:     n,
		queues:    make([]*data.BlockQueue, n),
		remaining: n,
	}
	for r := 0; r < n; r++ {
		s.queues[r] = data.NewBlockQueue(4)
	}
	return s
}

// deliver routes a block received from senderRank into its substream
// queue. Called from the Multiplexer's receive loop, or directly by a
// loopback writer when senderRank == this rank.
func (s *set) deliver(senderRank int, blk *data.Block) {
	s.mu.Lock()
	q := s.queues[senderRank]
	s.mu.Unlock()
	_ = q.Append(blk)
}

// closeSubstream marks senderRank's substream closed, closing its queue
// so readers see end-of-stream on it, and decrements the outstanding
// substream count (spec §4.6 "Stream closure").
func (s *set) closeSubstream(senderRank int) {
	s.mu.Lock()
	q := s.queues[senderRank]
	s.remaining--
	s.mu.Unlock()
	_ = q.Close()
}

// writerFor returns the Sink a Writer[T] should use to send blocks to
// peer, choosing the loopback path when peer is this rank.
func (s *set) writerFor(peer, senderWorker int) data.Sink {
	return &peerWriter{set: s, peer: peer, senderWorker: senderWorker}
}

// Writers returns one Sink per destination peer rank, in rank order, for
// fanning this local worker's output into the stream (spec §4.6: "a
// stream exposes one Writer per destination peer").
func (s *set) Writers(senderWorker int) []data.Sink {
	out := make([]data.Sink, s.peers)
	for p := 0; p < s.peers; p++ {
		out[p] = s.writerFor(p, senderWorker)
	}
	return out
}

package stream

import (
	"sync"

	"github.com/grafana/fluxmesh/data"
)

// peerWriter is the Sink a data.Writer[T] appends to when sending this
// local worker's output to one destination peer rank. For peer == the
// local rank it enqueues directly into the set's own substream queue,
// bypassing the socket entirely (spec §4.6 "loopback"); otherwise it
// serializes a header and the block payload onto the peer's Connection.
type peerWriter struct {
	set          *set
	peer         int
	senderWorker int
	closeOnce    sync.Once
}

func (w *peerWriter) Append(blk *data.Block) error {
	if w.peer == w.set.rank {
		w.set.deliver(w.set.rank, blk)
		return nil
	}

	if err := blk.Pin(); err != nil {
		return err
	}
	h := Header{
		Magic:               w.set.magic,
		Size:                uint64(blk.Len()),
		FirstItem:           uint64(blk.FirstItemOffset),
		NumItems:            uint64(blk.NumItems),
		StreamID:            w.set.id,
		SenderRank:          uint64(w.set.rank),
		ReceiverLocalWorker: uint64(w.set.worker),
		SenderLocalWorker:   uint64(w.senderWorker),
	}
	conn := w.set.mux.group.Connection(w.peer)
	if err := writeHeader(conn, h); err != nil {
		blk.Release()
		return err
	}
	payload := blk.Bytes()
	err := conn.Send(payload)
	blk.Release()
	return err
}

// Close sends (or loops back) the zero-size close header for this
// substream. Idempotent: data.Writer[T].Close calls it at most once per
// Writer, but callers composing Sinks by hand may call it more.
func (w *peerWriter) Close() error {
	var err error
	w.closeOnce.Do(func() {
		if w.peer == w.set.rank {
			w.set.closeSubstream(w.set.rank)
			return
		}
		h := Header{
			Magic:               w.set.magic,
			Size:                0,
			StreamID:            w.set.id,
			SenderRank:          uint64(w.set.rank),
			ReceiverLocalWorker: uint64(w.set.worker),
			SenderLocalWorker:   uint64(w.senderWorker),
		}
		conn := w.set.mux.group.Connection(w.peer)
		err = writeHeader(conn, h)
	})
	return err
}

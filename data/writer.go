package data

import (
	"encoding/binary"

	"github.com/grafana/fluxmesh/mem"
)

// Sink receives completed blocks from a Writer, in order. File and
// BlockQueue both implement it through their Append methods.
type Sink interface {
	Append(blk *Block) error
}

// Writer serializes a stream of T into pool-backed Blocks and hands each
// completed Block to a Sink as soon as it fills (spec §3 "Writer/Reader").
// An item may span multiple blocks; NumItems/FirstItemOffset on each
// emitted Block records only the items that *start* within it.
type Writer[T any] struct {
	pool       *mem.BlockPool
	sink       Sink
	ser        Serializer[T]
	selfVerify bool

	current    *mem.ByteBlock
	numItems   int
	firstStart int // offset of first item-start in current block, -1 until set
	closed     bool
}

// NewWriter constructs a Writer. If selfVerify is set, every item is
// prefixed with an 8-byte type tag the corresponding Reader checks
// (spec §4.2/§6: "each item-level put/get is prefixed by a 64-bit
// type-id hash").
func NewWriter[T any](pool *mem.BlockPool, sink Sink, ser Serializer[T], selfVerify bool) *Writer[T] {
	w := &Writer[T]{
		pool:       pool,
		sink:       sink,
		ser:        ser,
		selfVerify: selfVerify,
		firstStart: -1,
	}
	return w
}

// Put serializes and appends one item, flushing full blocks to the sink as
// needed.
func (w *Writer[T]) Put(item T) error {
	encoded := w.ser.Marshal(item)

	var headerBuf [12]byte
	header := headerBuf[:0]
	if w.selfVerify {
		var tagBuf [8]byte
		binary.LittleEndian.PutUint64(tagBuf[:], typeTag(w.ser))
		header = append(header, tagBuf[:]...)
	}
	if w.ser.FixedSize() == 0 {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(encoded)))
		header = append(header, lenBuf[:]...)
	}

	if err := w.markItemStart(); err != nil {
		return err
	}
	if len(header) > 0 {
		if err := w.writeBytes(header); err != nil {
			return err
		}
	}
	return w.writeBytes(encoded)
}

func (w *Writer[T]) markItemStart() error {
	if err := w.ensureCurrent(); err != nil {
		return err
	}
	if w.numItems == 0 {
		w.firstStart = w.current.Used()
	}
	w.numItems++
	return nil
}

func (w *Writer[T]) ensureCurrent() error {
	if w.current != nil {
		return nil
	}
	b, err := w.pool.Allocate(w.pool.BlockSize(), true)
	if err != nil {
		return err
	}
	w.current = b
	w.numItems = 0
	w.firstStart = -1
	return nil
}

func (w *Writer[T]) writeBytes(data []byte) error {
	for len(data) > 0 {
		if err := w.ensureCurrent(); err != nil {
			return err
		}
		n, _ := w.current.Write(data[:min(len(data), w.current.Remaining())])
		data = data[n:]
		if w.current.Remaining() == 0 {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// flush hands the current block to the sink and unpins it; the sink (File
// or BlockQueue) owns the reference from here on.
func (w *Writer[T]) flush() error {
	if w.current == nil || w.current.Used() == 0 {
		if w.current != nil {
			w.pool.Unpin(w.current)
			w.current.Release()
		}
		w.current = nil
		return nil
	}
	first := w.firstStart
	if first < 0 {
		first = 0
	}
	blk := newBlock(w.current, 0, w.current.Used(), w.numItems, first)
	w.pool.Unpin(w.current)
	w.current = nil
	w.numItems = 0
	w.firstStart = -1
	return w.sink.Append(blk)
}

// Close flushes any partial trailing block and signals end-of-stream to
// the sink.
func (w *Writer[T]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flush(); err != nil {
		return err
	}
	if closer, ok := w.sink.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

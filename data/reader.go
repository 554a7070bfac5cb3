package data

import (
	"encoding/binary"
	"io"

	"github.com/grafana/fluxmesh/fluxerr"
)

// Source yields Blocks in write order, terminated by (nil, nil). It is the
// read-side counterpart of Sink; File and BlockQueue both provide one.
type Source interface {
	NextBlock() (*Block, error)
}

// Reader deserializes a stream of T previously produced by a Writer[T]
// (spec §3 "Writer/Reader"). It consumes whole Blocks from a Source,
// pinning each lazily and releasing it once fully drained.
type Reader[T any] struct {
	src        Source
	ser        Serializer[T]
	selfVerify bool

	blk    *Block
	pos    int
	atEnd  bool
	closed bool
}

func NewReader[T any](src Source, ser Serializer[T], selfVerify bool) *Reader[T] {
	return &Reader[T]{src: src, ser: ser, selfVerify: selfVerify}
}

// Next decodes and returns the next item. It returns io.EOF once the
// stream is exhausted, and an Underrun error if the stream ends partway
// through an item.
func (r *Reader[T]) Next() (T, error) {
	var zero T
	if r.selfVerify {
		tagBytes, err := r.readExact(8, false)
		if err != nil {
			return zero, err
		}
		got := binary.LittleEndian.Uint64(tagBytes)
		want := typeTag(r.ser)
		if got != want {
			return zero, fluxerr.New(fluxerr.ProtocolError, "data.Reader.Next", errTypeMismatch)
		}
	}

	size := r.ser.FixedSize()
	if size == 0 {
		lenBytes, err := r.readExact(4, r.selfVerify)
		if err != nil {
			return zero, err
		}
		size = int(binary.LittleEndian.Uint32(lenBytes))
	}
	payload, err := r.readExact(size, r.selfVerify || r.ser.FixedSize() == 0)
	if err != nil {
		return zero, err
	}
	return r.ser.Unmarshal(payload)
}

// readExact returns exactly n bytes, pulling and pinning further blocks
// from the source as needed. The returned slice may be a fresh copy when
// the item spans a block boundary. midItem reports that earlier bytes of
// the current item were already read, so running out of blocks is an
// Underrun rather than a clean io.EOF.
func (r *Reader[T]) readExact(n int, midItem bool) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		if r.blk == nil {
			if r.atEnd {
				return nil, endOfSource(midItem || len(out) > 0)
			}
			blk, err := r.src.NextBlock()
			if err != nil {
				return nil, err
			}
			if blk == nil {
				r.atEnd = true
				return nil, endOfSource(midItem || len(out) > 0)
			}
			if err := blk.Pin(); err != nil {
				return nil, err
			}
			r.blk = blk
			r.pos = 0
		}
		buf := r.blk.Bytes()
		avail := len(buf) - r.pos
		take := n - len(out)
		if take > avail {
			take = avail
		}
		out = append(out, buf[r.pos:r.pos+take]...)
		r.pos += take
		if r.pos >= len(buf) {
			r.blk.Release()
			r.blk = nil
		}
	}
	return out, nil
}

// endOfSource is io.EOF when the source ended on an item boundary and an
// Underrun error when it ended inside an item.
func endOfSource(partial bool) error {
	if partial {
		return fluxerr.New(fluxerr.Underrun, "data.Reader.Next", io.ErrUnexpectedEOF)
	}
	return io.EOF
}

// Close releases any partially-consumed block held by the reader.
func (r *Reader[T]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.blk != nil {
		r.blk.Release()
		r.blk = nil
	}
	return nil
}

var errTypeMismatch = typeMismatchError{}

type typeMismatchError struct{}

func (typeMismatchError) Error() string {
	return "data: stream type tag does not match reader's Serializer"
}

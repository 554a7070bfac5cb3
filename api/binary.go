package api

import (
	"fmt"
	"os"

	"github.com/grafana/fluxmesh/data"
)

// binaryPath names this rank's shard file for a WriteBinary/ReadBinary
// pair, following Thrill's "path pattern with a host-index placeholder"
// convention (original_source/thrill/api/write_binary.hpp,
// read_binary.hpp) collapsed to a fixed ".<rank>" suffix, the rank
// zero-padded to four digits, since this engine has no glob-pattern path
// DSL.
func binaryPath(base string, rank int) string {
	return fmt.Sprintf("%s.%04d", base, rank)
}

// writeBinaryNode is an ACTION node: it serializes every item it
// receives to this rank's shard file and produces no further DIA.
type writeBinaryNode[T any] struct {
	nodeBase
	ser  data.Serializer[T]
	path string
	f    *os.File
	w    *data.Writer[T]
}

// WriteBinary runs d to completion, writing this host's partition of
// items to path.<rank> via the pooled Writer[T] wire encoding (spec §6).
func WriteBinary[T any](d DIA[T], ser data.Serializer[T], path string) error {
	node := &writeBinaryNode[T]{
		nodeBase: newNodeBase(d.ctx, ActionNode, d.node),
		ser:      ser,
		path:     path,
	}
	attach(d, node, node.preOp)
	return RunAction(d.ctx, node)
}

func (n *writeBinaryNode[T]) preOp(item T) { _ = n.w.Put(item) }

func (n *writeBinaryNode[T]) StartPreOp() {
	f, err := os.Create(binaryPath(n.path, n.ctx.rank()))
	if err != nil {
		panic(err) // surfaces as a fatal error on the invoking worker, per spec §4.7 failure semantics
	}
	n.f = f
	n.w = data.NewWriter[T](n.ctx.Pool, fileByteSink{n.f}, n.ser, n.ctx.SelfVerify)
}

func (n *writeBinaryNode[T]) Execute() error { return nil }

func (n *writeBinaryNode[T]) PushData(consume bool) error {
	if err := n.w.Close(); err != nil {
		return err
	}
	return n.f.Close()
}

func (n *writeBinaryNode[T]) Dispose() {}

// fileByteSink adapts an *os.File into a data.Sink by writing each
// block's raw bytes back-to-back, the same framing-free layout the spill
// file uses (spec §6 "Block on-disk representation").
type fileByteSink struct{ f *os.File }

func (s fileByteSink) Append(blk *data.Block) error {
	if err := blk.Pin(); err != nil {
		return err
	}
	_, err := s.f.Write(blk.Bytes())
	blk.Release()
	return err
}

// readBinaryNode is a SOURCE node reading back this rank's shard file
// written by WriteBinary.
type readBinaryNode[T any] struct {
	nodeBase
	sink *fileSink[T]
	path string
}

func ReadBinary[T any](ctx *Context, ser data.Serializer[T], path string) DIA[T] {
	node := &readBinaryNode[T]{
		nodeBase: newNodeBase(ctx, SourceNode),
		sink:     newFileSink[T](ctx, ser),
		path:     path,
	}
	return newDIA[T](ctx, node)
}

func (n *readBinaryNode[T]) StartPreOp() {}

func (n *readBinaryNode[T]) Execute() error {
	raw, err := os.ReadFile(binaryPath(n.path, n.ctx.rank()))
	if err != nil {
		if os.IsNotExist(err) {
			n.sink.closeWriter()
			return nil
		}
		return err
	}
	bb, err := n.ctx.Pool.Allocate(len(raw), true)
	if err != nil {
		return err
	}
	if _, err := bb.Write(raw); err != nil {
		return err
	}
	src := &oneBlockSource{blk: data.NewBlock(bb, 0, len(raw), 0, 0)}
	r := data.NewReader[T](src, n.sink.ser, n.ctx.SelfVerify)
	for {
		v, err := r.Next()
		if err != nil {
			break
		}
		n.sink.put(v)
	}
	n.sink.closeWriter()
	return nil
}

func (n *readBinaryNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *readBinaryNode[T]) Dispose()                     {}
func (n *readBinaryNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

// oneBlockSource exposes a single already-pinned Block as a Source,
// terminating on the second call (spec §3 Source contract). Used to feed
// a Reader[T] a payload that was read into memory in one shot (e.g.
// ReadBinary's shard file), rather than arriving incrementally off a
// File or BlockQueue.
type oneBlockSource struct {
	blk  *data.Block
	done bool
}

func (s *oneBlockSource) NextBlock() (*data.Block, error) {
	if s.done {
		return nil, nil
	}
	s.done = true
	return s.blk, nil
}

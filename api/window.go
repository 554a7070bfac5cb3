package api

import "github.com/grafana/fluxmesh/data"

// windowNode is a DOP node applying f to every size-length contiguous
// slice of this host's local shard, in arrival order (spec §1's
// representative operator set). Windows do not cross host boundaries;
// rebalancing or gathering upstream if a window must see every host's
// data is the caller's responsibility, the same boundary Thrill's own
// WindowNode draws per-worker (original_source/thrill/api/window.hpp).
type windowNode[T, U any] struct {
	nodeBase
	ser  data.Serializer[U]
	size int
	f    func([]T) U

	local []T
	sink  *fileSink[U]
}

func Window[T, U any](d DIA[T], ser data.Serializer[U], size int, f func([]T) U) DIA[U] {
	node := &windowNode[T, U]{
		nodeBase: newNodeBase(d.ctx, DOPNode, d.node),
		ser:      ser,
		size:     size,
		f:        f,
		sink:     newFileSink[U](d.ctx, ser),
	}
	attach(d, node, func(item T) { node.local = append(node.local, item) })
	return newDIA[U](d.ctx, node)
}

func (n *windowNode[T, U]) StartPreOp() {}

func (n *windowNode[T, U]) Execute() error {
	for i := 0; i+n.size <= len(n.local); i++ {
		n.sink.put(n.f(n.local[i : i+n.size]))
	}
	n.sink.closeWriter()
	return nil
}

func (n *windowNode[T, U]) PushData(consume bool) error {
	return pushFile[U](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *windowNode[T, U]) Dispose()                     {}
func (n *windowNode[T, U]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

package api

import "github.com/grafana/fluxmesh/data"

// zipNode is a DOP node combining two DIAs index-wise: item i of the
// result is combine(left[i], right[i]), per this host's local shards
// (spec supplement from original_source/thrill/api/zip.hpp). Hosts are
// expected to carry equal-length shards of both inputs, the common case
// when both were produced by the same partitioning upstream; zip does not
// itself rebalance skewed inputs (pass them through Rebalance first if
// that's not guaranteed).
type zipNode[T, U, V any] struct {
	nodeBase
	ser     data.Serializer[V]
	combine func(T, U) V

	left  []T
	right []U
	sink  *fileSink[V]
}

func Zip[T, U, V any](a DIA[T], b DIA[U], ser data.Serializer[V], combine func(T, U) V) DIA[V] {
	node := &zipNode[T, U, V]{
		nodeBase: newNodeBase(a.ctx, DOPNode, a.node, b.node),
		ser:      ser,
		combine:  combine,
		sink:     newFileSink[V](a.ctx, ser),
	}
	attach(a, node, func(item T) { node.left = append(node.left, item) })
	attach(b, node, func(item U) { node.right = append(node.right, item) })
	return newDIA[V](a.ctx, node)
}

func (n *zipNode[T, U, V]) StartPreOp() {}

func (n *zipNode[T, U, V]) Execute() error {
	count := len(n.left)
	if len(n.right) < count {
		count = len(n.right)
	}
	for i := 0; i < count; i++ {
		n.sink.put(n.combine(n.left[i], n.right[i]))
	}
	n.sink.closeWriter()
	return nil
}

func (n *zipNode[T, U, V]) PushData(consume bool) error {
	return pushFile[V](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *zipNode[T, U, V]) Dispose()                     {}
func (n *zipNode[T, U, V]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

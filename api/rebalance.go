package api

import "github.com/grafana/fluxmesh/data"

// rebalanceNode is a DOP node evening out per-worker skew left behind by
// an upstream Merge or Read by gathering the full union (rank order
// preserved) and reslicing it into exactly-even contiguous shards
// (original_source/thrill/api/rebalance.hpp). Shares Sort/Merge's
// gather-then-reslice machinery; see DESIGN.md.
type rebalanceNode[T any] struct {
	nodeBase
	ser data.Serializer[T]

	local []T
	sink  *fileSink[T]
}

func Rebalance[T any](d DIA[T], ser data.Serializer[T]) DIA[T] {
	node := &rebalanceNode[T]{
		nodeBase: newNodeBase(d.ctx, DOPNode, d.node),
		ser:      ser,
		sink:     newFileSink[T](d.ctx, ser),
	}
	attach(d, node, func(item T) { node.local = append(node.local, item) })
	return newDIA[T](d.ctx, node)
}

func (n *rebalanceNode[T]) StartPreOp() {}

func (n *rebalanceNode[T]) Execute() error {
	all, err := gatherAllHosts(n.ctx, n.ser, n.local)
	if err != nil {
		return err
	}
	for _, v := range shardSlice(all, n.ctx.rank(), n.ctx.numHosts()) {
		n.sink.put(v)
	}
	n.sink.closeWriter()
	return nil
}

func (n *rebalanceNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *rebalanceNode[T]) Dispose()                     {}
func (n *rebalanceNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

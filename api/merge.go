package api

import (
	"sort"
	"sync"

	"github.com/grafana/fluxmesh/data"
)

// mergeNode is a DOP node with two parents, both assumed already sorted
// by less. Like sortNode, it takes the simplified full-gather-then-
// reslice route rather than Thrill's true streaming k-way merge
// (original_source/thrill/api/merge.hpp); since every host's shard ends
// up an exactly-even slice of the merged union, the spec's "per-worker
// count may differ from n/P by at most 10" skew bound holds trivially
// (see DESIGN.md).
type mergeNode[T any] struct {
	nodeBase
	ser  data.Serializer[T]
	less func(a, b T) bool

	mu    sync.Mutex // both parents push into local concurrently
	local []T
	sink  *fileSink[T]
}

// Merge combines two sorted DIAs of the same element type into one
// sorted DIA.
func Merge[T any](a, b DIA[T], ser data.Serializer[T], less func(x, y T) bool) DIA[T] {
	node := &mergeNode[T]{
		nodeBase: newNodeBase(a.ctx, DOPNode, a.node, b.node),
		ser:      ser,
		less:     less,
		sink:     newFileSink[T](a.ctx, ser),
	}
	collect := func(item T) {
		node.mu.Lock()
		node.local = append(node.local, item)
		node.mu.Unlock()
	}
	attach(a, node, collect)
	attach(b, node, collect)
	return newDIA[T](a.ctx, node)
}

func (n *mergeNode[T]) StartPreOp() {}

func (n *mergeNode[T]) Execute() error {
	all, err := gatherAllHosts(n.ctx, n.ser, n.local)
	if err != nil {
		return err
	}
	sort.Slice(all, func(i, j int) bool { return n.less(all[i], all[j]) })
	for _, v := range shardSlice(all, n.ctx.rank(), n.ctx.numHosts()) {
		n.sink.put(v)
	}
	n.sink.closeWriter()
	return nil
}

func (n *mergeNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *mergeNode[T]) Dispose()                     {}
func (n *mergeNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

package api

import (
	"sort"

	"github.com/grafana/fluxmesh/data"
	"github.com/grafana/fluxmesh/net"
)

// sortNode is a DOP node producing a globally sorted DIA. It gathers
// every host's local partition onto every host (the same broadcast-per-
// root round AllGather uses), sorts the union once per host, then keeps
// only this host's contiguous slice of the result — a deliberate
// simplification of Thrill's sample-sort-and-multiway-merge
// (original_source/thrill/api/sort.hpp) appropriate at the scale this
// engine targets; see DESIGN.md.
type sortNode[T any] struct {
	nodeBase
	ser  data.Serializer[T]
	less func(a, b T) bool

	local []T
	sink  *fileSink[T]
}

func Sort[T any](d DIA[T], ser data.Serializer[T], less func(a, b T) bool) DIA[T] {
	node := &sortNode[T]{
		nodeBase: newNodeBase(d.ctx, DOPNode, d.node),
		ser:      ser,
		less:     less,
		sink:     newFileSink[T](d.ctx, ser),
	}
	attach(d, node, func(item T) { node.local = append(node.local, item) })
	return newDIA[T](d.ctx, node)
}

func (n *sortNode[T]) StartPreOp() {}

func (n *sortNode[T]) Execute() error {
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

func (n *sortNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *sortNode[T]) Dispose()                     {}
func (n *sortNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

// gatherAllHosts broadcasts local from every host in turn and concatenates
// the results, giving every host the same full union in host-rank order
// (shared by Sort, Merge, and Rebalance).
func gatherAllHosts[T any](ctx *Context, ser data.Serializer[T], local []T) ([]T, error) {
	var all []T
	hosts := ctx.numHosts()
	rank := ctx.rank()
	for r := 0; r < hosts; r++ {
		var payload []byte
		if r == rank {
			payload = encodeItems(local, ser)
		}
		got, err := net.Broadcast(ctx.Group, r, payload)
		if err != nil {
			return nil, err
		}
		items, err := decodeItems[T](got, ser)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// shardSlice returns rank's contiguous [start,end) slice of a length-n
// union split as evenly as possible across hosts hosts total.
func shardSlice[T any](all []T, rank, hosts int) []T {
	n := len(all)
	start := n * rank / hosts
	end := n * (rank + 1) / hosts
	return all[start:end]
}

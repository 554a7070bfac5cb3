package api

import (
	"math/rand"

	"github.com/grafana/fluxmesh/data"
)

// sampleNode is a DOP node producing a uniform sample of k items from the
// whole of d, spread back across hosts (supplement from
// original_source/thrill/api/sample.hpp). Each host first draws a local
// reservoir sample of size k (Algorithm R), then the union of every
// host's local reservoir is gathered and resampled down to k, and finally
// sharded back out so the result stays a distributed DIA rather than
// collapsing onto one host.
type sampleNode[T any] struct {
	nodeBase
	ser data.Serializer[T]
	k   int
	rnd *rand.Rand

	reservoir []T
	seen      int
	sink      *fileSink[T]
}

func Sample[T any](d DIA[T], ser data.Serializer[T], k int) DIA[T] {
	node := &sampleNode[T]{
		nodeBase: newNodeBase(d.ctx, DOPNode, d.node),
		ser:      ser,
		k:        k,
		rnd:      rand.New(rand.NewSource(int64(d.ctx.rank()) + 1)),
		sink:     newFileSink[T](d.ctx, ser),
	}
	attach(d, node, node.preOp)
	return newDIA[T](d.ctx, node)
}

func (n *sampleNode[T]) preOp(item T) {
	n.seen++
	if len(n.reservoir) < n.k {
		n.reservoir = append(n.reservoir, item)
		return
	}
	j := n.rnd.Intn(n.seen)
	if j < n.k {
		n.reservoir[j] = item
	}
}

func (n *sampleNode[T]) StartPreOp() {}

func (n *sampleNode[T]) Execute() error {
	all, err := gatherAllHosts(n.ctx, n.ser, n.reservoir)
	if err != nil {
		return err
	}
	// gatherAllHosts hands every host the identical union in the same
	// rank order, so the final downsample must use a seed shared across
	// hosts rather than n.rnd (seeded per-rank for the local reservoir
	// above): otherwise each host would pick a different k-subset of the
	// same union and the result would no longer be one coherent sample.
	global := reservoirSample(all, n.k, rand.New(rand.NewSource(1)))
	for _, v := range shardSlice(global, n.ctx.rank(), n.ctx.numHosts()) {
		n.sink.put(v)
	}
	n.sink.closeWriter()
	return nil
}

func reservoirSample[T any](items []T, k int, rnd *rand.Rand) []T {
	if len(items) <= k {
		return items
	}
	out := append([]T(nil), items[:k]...)
	for i := k; i < len(items); i++ {
		j := rnd.Intn(i + 1)
		if j < k {
			out[j] = items[i]
		}
	}
	return out
}

func (n *sampleNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *sampleNode[T]) Dispose()                     {}
func (n *sampleNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

package api

import (
	"fmt"

	farm "github.com/dgryski/go-farm"

	"github.com/grafana/fluxmesh/data"
)

// hashKey maps an arbitrary comparable key to a destination host by
// hashing its fmt representation, the same farm-hash family the data
// package already uses for self-verify type tags, rather than requiring
// every key type to also supply a Serializer just to be partitioned.
func hashKey[K comparable](k K, hosts int) int {
	h := farm.Hash64([]byte(fmt.Sprintf("%v", k)))
	return int(h % uint64(hosts))
}

// reduceByKeyNode is a DOP node: every item is routed by key hash to its
// owning host over a mix-stream (arrival order doesn't matter, only that
// every item with the same key lands on the same host), then folded
// locally with combine (spec supplement from
// original_source/thrill/api/reduce_by_key.hpp, "ReduceNode").
type reduceByKeyNode[T any, K comparable] struct {
	nodeBase
	ser     data.Serializer[T]
	keyOf   func(T) K
	combine func(a, b T) T

	writers   []*data.Writer[T]
	mixSource data.Source
	sink      *fileSink[T]
	streamID  uint64
}

// ReduceByKey groups d's items by keyOf and folds each group with combine,
// producing one item per distinct key (order unspecified across hosts).
func ReduceByKey[T any, K comparable](d DIA[T], ser data.Serializer[T], keyOf func(T) K, combine func(a, b T) T) DIA[T] {
	node := &reduceByKeyNode[T, K]{
		nodeBase: newNodeBase(d.ctx, DOPNode, d.node),
		ser:      ser,
		keyOf:    keyOf,
		combine:  combine,
		sink:     newFileSink[T](d.ctx, ser),
	}
	attach(d, node, node.preOp)
	return newDIA[T](d.ctx, node)
}

func (n *reduceByKeyNode[T, K]) preOp(item T) {
	peer := hashKey(n.keyOf(item), n.ctx.numHosts())
	_ = n.writers[peer].Put(item)
}

func (n *reduceByKeyNode[T, K]) StartPreOp() {
	n.streamID = n.ctx.newStreamID()
	ms, err := n.ctx.Mux.MixStream(n.streamID, n.ctx.WorkerID)
	if err != nil {
		panic(err)
	}
	sinks := ms.Writers(n.ctx.WorkerID)
	n.writers = make([]*data.Writer[T], len(sinks))
	for i, s := range sinks {
		n.writers[i] = data.NewWriter[T](n.ctx.Pool, s, n.ser, n.ctx.SelfVerify)
	}
	n.mixSource = ms
}

func (n *reduceByKeyNode[T, K]) Execute() error {
	for _, w := range n.writers {
		if err := w.Close(); err != nil {
			return err
		}
	}
	r := data.NewReader[T](n.mixSource, n.ser, n.ctx.SelfVerify)
	groups := make(map[K]T)
	seen := make(map[K]bool)
	for {
		v, err := r.Next()
		if err != nil {
			break
		}
		k := n.keyOf(v)
		if seen[k] {
			groups[k] = n.combine(groups[k], v)
		} else {
			groups[k] = v
			seen[k] = true
		}
	}
	for _, v := range groups {
		n.sink.put(v)
	}
	n.sink.closeWriter()
	return nil
}

func (n *reduceByKeyNode[T, K]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *reduceByKeyNode[T, K]) Dispose()                     {}
func (n *reduceByKeyNode[T, K]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

// KeyGroup is one key's complete group of items, GroupByKey's element
// type (spec supplement from
// original_source/thrill/api/group_by_key.hpp).
type KeyGroup[K comparable, T any] struct {
	Key   K
	Items []T
}

// groupByKeyNode shuffles by key exactly like reduceByKeyNode, but
// materializes every item of a group instead of folding them.
type groupByKeyNode[T any, K comparable] struct {
	nodeBase
	ser     data.Serializer[T]
	keyOf   func(T) K
	groupSer data.Serializer[KeyGroup[K, T]]

	writers   []*data.Writer[T]
	mixSource data.Source
	sink      *fileSink[KeyGroup[K, T]]
	streamID  uint64
}

func GroupByKey[T any, K comparable](d DIA[T], ser data.Serializer[T], keyOf func(T) K, groupSer data.Serializer[KeyGroup[K, T]]) DIA[KeyGroup[K, T]] {
	node := &groupByKeyNode[T, K]{
		nodeBase: newNodeBase(d.ctx, DOPNode, d.node),
		ser:      ser,
		keyOf:    keyOf,
		groupSer: groupSer,
		sink:     newFileSink[KeyGroup[K, T]](d.ctx, groupSer),
	}
	attach(d, node, node.preOp)
	return newDIA[KeyGroup[K, T]](d.ctx, node)
}

func (n *groupByKeyNode[T, K]) preOp(item T) {
	peer := hashKey(n.keyOf(item), n.ctx.numHosts())
	_ = n.writers[peer].Put(item)
}

func (n *groupByKeyNode[T, K]) StartPreOp() {
	n.streamID = n.ctx.newStreamID()
	ms, err := n.ctx.Mux.MixStream(n.streamID, n.ctx.WorkerID)
	if err != nil {
		panic(err)
	}
	sinks := ms.Writers(n.ctx.WorkerID)
	n.writers = make([]*data.Writer[T], len(sinks))
	for i, s := range sinks {
		n.writers[i] = data.NewWriter[T](n.ctx.Pool, s, n.ser, n.ctx.SelfVerify)
	}
	n.mixSource = ms
}

func (n *groupByKeyNode[T, K]) Execute() error {
	for _, w := range n.writers {
		if err := w.Close(); err != nil {
			return err
		}
	}
	r := data.NewReader[T](n.mixSource, n.ser, n.ctx.SelfVerify)
	order := make([]K, 0)
	groups := make(map[K][]T)
	for {
		v, err := r.Next()
		if err != nil {
			break
		}
		k := n.keyOf(v)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], v)
	}
	for _, k := range order {
		n.sink.put(KeyGroup[K, T]{Key: k, Items: groups[k]})
	}
	n.sink.closeWriter()
	return nil
}

func (n *groupByKeyNode[T, K]) PushData(consume bool) error {
	return pushFile[KeyGroup[K, T]](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *groupByKeyNode[T, K]) Dispose() {}
func (n *groupByKeyNode[T, K]) AcceptFile(f *data.File) bool {
	return n.sink.acceptFile(f)
}

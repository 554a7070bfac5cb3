package api

import "github.com/grafana/fluxmesh/data"

// cacheNode materializes its parent's items into a File that can be
// pushed to many children without re-running the parent's pre-op chain,
// Thrill's mechanism for avoiding recomputation when a DIA is consumed
// more than once (original_source/thrill/api/cache.hpp).
type cacheNode[T any] struct {
	nodeBase
	sink *fileSink[T]
}

func Cache[T any](d DIA[T], ser data.Serializer[T]) DIA[T] {
	node := &cacheNode[T]{
		nodeBase: newNodeBase(d.ctx, CacheNode, d.node),
		sink:     newFileSink[T](d.ctx, ser),
	}
	attach(d, node, node.sink.put)
	return newDIA[T](d.ctx, node)
}

func (n *cacheNode[T]) StartPreOp()      {}
func (n *cacheNode[T]) Execute() error   { n.sink.closeWriter(); return nil }
func (n *cacheNode[T]) Dispose()         {}
func (n *cacheNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *cacheNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

// collapseNode flattens its parent DIA's fused function stack into a
// materialized File, starting the next operator's stack empty so it can
// take the whole-block pre-op fast path even if several Map/Filter calls
// preceded it (original_source/thrill/api/collapse.hpp).
type collapseNode[T any] struct {
	nodeBase
	sink *fileSink[T]
}

func Collapse[T any](d DIA[T], ser data.Serializer[T]) DIA[T] {
	node := &collapseNode[T]{
		nodeBase: newNodeBase(d.ctx, CollapseNode, d.node),
		sink:     newFileSink[T](d.ctx, ser),
	}
	attach(d, node, node.sink.put)
	return newDIA[T](d.ctx, node)
}

func (n *collapseNode[T]) StartPreOp()    {}
func (n *collapseNode[T]) Execute() error { n.sink.closeWriter(); return nil }
func (n *collapseNode[T]) Dispose()       {}
func (n *collapseNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *collapseNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

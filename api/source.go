package api

import (
	"bufio"
	"fmt"
	"os"

	"github.com/grafana/fluxmesh/data"
)

// generateNode is a SOURCE node producing n items by calling a
// user-supplied generator over this host's shard of [0,n) (spec §4.7
// "a source node has no parents and produces from an external iterator
// or generator").
type generateNode[T any] struct {
	nodeBase
	sink *fileSink[T]
	n    int
	gen  func(int) T
}

// Generate partitions [0,n) into contiguous per-host blocks of n/hosts
// indices, the last host absorbing the remainder, matching the offset
// and local_elements computation in c7a's GenerateNode::execute
// (original_source/c7a/api/generate_node.hpp). Rank r's shard therefore
// always holds an ascending contiguous range, so a cat-ordered read
// across ranks reconstructs the original [0,n) sequence.
func Generate[T any](ctx *Context, n int, ser data.Serializer[T], gen func(int) T) DIA[T] {
	node := &generateNode[T]{
		nodeBase: newNodeBase(ctx, SourceNode),
		sink:     newFileSink[T](ctx, ser),
		n:        n,
		gen:      gen,
	}
	return newDIA[T](ctx, node)
}

func (n *generateNode[T]) StartPreOp() {}

func (n *generateNode[T]) Execute() error {
	hosts := n.ctx.numHosts()
	rank := n.ctx.rank()
	perHost := n.n / hosts
	offset := perHost * rank
	local := perHost
	if rank == hosts-1 {
		local = n.n - perHost*(hosts-1)
	}
	for i := 0; i < local; i++ {
		n.sink.put(n.gen(offset + i))
	}
	n.sink.closeWriter()
	return nil
}

func (n *generateNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}

func (n *generateNode[T]) Dispose() {}

// AcceptFile implements FileAcceptor. A source node never has a parent
// to receive it from, but implementing it keeps every node type uniform
// and lets a future operator offer Generate's output the fast path too.
func (n *generateNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

// distributeNode turns a host-local slice into a DIA shard: rank r's
// input slice contributes directly to rank r's shard, matching Thrill's
// DIA<T> Distribute(ctx, local_vec) entry point for data the caller has
// already partitioned per host (supplement from
// original_source/thrill/api/distribute.hpp).
type distributeNode[T any] struct {
	nodeBase
	sink  *fileSink[T]
	local []T
}

func Distribute[T any](ctx *Context, ser data.Serializer[T], local []T) DIA[T] {
	node := &distributeNode[T]{
		nodeBase: newNodeBase(ctx, SourceNode),
		sink:     newFileSink[T](ctx, ser),
		local:    local,
	}
	return newDIA[T](ctx, node)
}

func (n *distributeNode[T]) StartPreOp() {}
func (n *distributeNode[T]) Execute() error {
	for _, v := range n.local {
		n.sink.put(v)
	}
	n.sink.closeWriter()
	return nil
}
func (n *distributeNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *distributeNode[T]) Dispose()                     {}
func (n *distributeNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

// generateFromFileNode reads a per-host text file and round-robin
// assigns its lines to this rank via index-modulo-hosts, unlike the
// contiguous per-host blocks Generate uses (supplement from
// original_source/thrill/api/generate_from_file.hpp).
type generateFromFileNode[T any] struct {
	nodeBase
	sink   *fileSink[T]
	path   string
	decode func(line string) (T, error)
}

func GenerateFromFile[T any](ctx *Context, ser data.Serializer[T], path string, decode func(string) (T, error)) DIA[T] {
	node := &generateFromFileNode[T]{
		nodeBase: newNodeBase(ctx, SourceNode),
		sink:     newFileSink[T](ctx, ser),
		path:     path,
		decode:   decode,
	}
	return newDIA[T](ctx, node)
}

func (n *generateFromFileNode[T]) StartPreOp() {}

func (n *generateFromFileNode[T]) Execute() error {
	f, err := os.Open(n.path)
	if err != nil {
		return fmt.Errorf("api.GenerateFromFile: %w", err)
	}
	defer f.Close()

	hosts, rank := n.ctx.numHosts(), n.ctx.rank()
	sc := bufio.NewScanner(f)
	idx := 0
	for sc.Scan() {
		if idx%hosts == rank {
			v, err := n.decode(sc.Text())
			if err != nil {
				return err
			}
			n.sink.put(v)
		}
		idx++
	}
	n.sink.closeWriter()
	return sc.Err()
}

func (n *generateFromFileNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *generateFromFileNode[T]) Dispose()                     {}
func (n *generateFromFileNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

package api

import (
	"github.com/grafana/fluxmesh/data"
	"github.com/grafana/fluxmesh/net"
)

// prefixSumNode is a DOP node producing, for each item, the running
// combine-fold of every item before it (exclusive) or up to and including
// it (inclusive), ordered first by host rank then by each host's local
// arrival order (spec §8 scenario 2: "Generate(0..10) -> PrefixSum(0,+) ->
// cat output [0,0,1,3,6,10,15,21,28,36]"). Each host first folds its own
// shard locally, then a single net.PrefixSumBytes round carries every
// host's running total into the next, exactly as net.PrefixSum does for
// uint64 (spec §4.5).
type prefixSumNode[T any] struct {
	nodeBase
	ser       data.Serializer[T]
	combine   func(a, b T) T
	zero      T
	inclusive bool

	local []T
	sink  *fileSink[T]
}

func PrefixSum[T any](d DIA[T], ser data.Serializer[T], combine func(a, b T) T, zero T, inclusive bool) DIA[T] {
	node := &prefixSumNode[T]{
		nodeBase:  newNodeBase(d.ctx, DOPNode, d.node),
		ser:       ser,
		combine:   combine,
		zero:      zero,
		inclusive: inclusive,
		sink:      newFileSink[T](d.ctx, ser),
	}
	attach(d, node, func(item T) { node.local = append(node.local, item) })
	return newDIA[T](d.ctx, node)
}

func (n *prefixSumNode[T]) StartPreOp() {}

func (n *prefixSumNode[T]) Execute() error {
	localInclusive := make([]T, len(n.local))
	acc := n.zero
	for i, v := range n.local {
		acc = n.combine(acc, v)
		localInclusive[i] = acc
	}
	localTotal := acc

	carryBytes, err := net.PrefixSumBytes(n.ctx.Group, encodeItems([]T{localTotal}, n.ser), func(a, b []byte) []byte {
		av := n.decodeOrZero(a)
		bv := n.decodeOrZero(b)
		return encodeItems([]T{n.combine(av, bv)}, n.ser)
	}, false)
	if err != nil {
		return err
	}
	carryIn := n.decodeOrZero(carryBytes)

	for i, v := range n.local {
		var localPart T
		if n.inclusive {
			localPart = localInclusive[i]
		} else if i == 0 {
			localPart = n.zero
		} else {
			localPart = localInclusive[i-1]
		}
		_ = v
		n.sink.put(n.combine(carryIn, localPart))
	}
	n.sink.closeWriter()
	return nil
}

func (n *prefixSumNode[T]) decodeOrZero(buf []byte) T {
	items, err := decodeItems[T](buf, n.ser)
	if err != nil || len(items) == 0 {
		return n.zero
	}
	return items[0]
}

func (n *prefixSumNode[T]) PushData(consume bool) error {
	return pushFile[T](&n.nodeBase, n.sink.file, n.sink.ser, n.ctx.SelfVerify)
}
func (n *prefixSumNode[T]) Dispose()                     {}
func (n *prefixSumNode[T]) AcceptFile(f *data.File) bool { return n.sink.acceptFile(f) }

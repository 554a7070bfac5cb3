// Package net implements the point-to-point and collective network layer:
// a fully-connected mesh of stable ranks (Group), pluggable transports
// (mock, tcp, and an mpi stub), and the collective operations built once
// against the Connection abstraction so every transport gets them for
// free (spec §3 "Group & Dispatcher").
package net

import (
	"encoding/binary"
	"fmt"

	"github.com/grafana/fluxmesh/fluxerr"
)

// Connection is a reliable, ordered byte-stream to exactly one peer in a
// Group. Frame boundaries are caller-defined; SendFrame/ReceiveFrame below
// impose the length-prefixed framing every transport shares.
type Connection interface {
	Send(data []byte) error
	Receive(n int) ([]byte, error)
	Close() error
}

// Group is a fully-connected mesh of NumPeers() hosts, each with a stable
// Rank() in [0, NumPeers()). Connection(peer) returns the same
// Connection instance across calls.
type Group interface {
	Rank() int
	NumPeers() int
	Connection(peer int) Connection
	Close() error
}

// SendFrame writes data as one length-prefixed frame.
func SendFrame(c Connection, data []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(data)))
	if err := c.Send(hdr[:]); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return c.Send(data)
}

// ReceiveFrame reads one length-prefixed frame written by SendFrame.
func ReceiveFrame(c Connection) ([]byte, error) {
	hdr, err := c.Receive(4)
	if err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr)
	if n == 0 {
		return nil, nil
	}
	return c.Receive(int(n))
}

func sendUint64(c Connection, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return c.Send(buf[:])
}

func recvUint64(c Connection) (uint64, error) {
	buf, err := c.Receive(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// AllReduce combines value with every peer's value using combine (which
// must be associative and commutative) and returns the same result on
// every rank. Each rank's value must be folded in exactly once, which a
// full one-factorization (every rank exchanging with every other) does
// not give: pairwise exchange-and-combine only yields a correct
// reduction when the two partners' accumulators are disjoint sums, and
// after the first round of a one-factor schedule they no longer are.
// Instead this chains a single combine pass rank 0 -> rank n-1 (each
// rank contributes its value exactly once to the running accumulator)
// and then broadcasts the final total from rank n-1 to everyone,
// mirroring PrefixSum's carry chain plus Broadcast's fan-out.
func AllReduce(g Group, value uint64, combine func(a, b uint64) uint64) (uint64, error) {
	n := g.NumPeers()
	r := g.Rank()
	if n <= 0 {
		return 0, fluxerr.New(fluxerr.UsageError, "net.AllReduce", fmt.Errorf("group has no peers"))
	}
	acc := value
	if r > 0 {
		got, err := recvUint64(g.Connection(r - 1))
		if err != nil {
			return 0, err
		}
		acc = combine(got, acc)
	}
	if r < n-1 {
		if err := sendUint64(g.Connection(r+1), acc); err != nil {
			return 0, err
		}
	}
	return broadcastUint64(g, n-1, acc)
}

// broadcastUint64 is Broadcast specialized to a uint64 payload, used by
// AllReduce's final fan-out.
func broadcastUint64(g Group, root int, value uint64) (uint64, error) {
	r := g.Rank()
	n := g.NumPeers()
	if root == r {
		for peer := 0; peer < n; peer++ {
			if peer == r {
				continue
			}
			if err := sendUint64(g.Connection(peer), value); err != nil {
				return 0, err
			}
		}
		return value, nil
	}
	return recvUint64(g.Connection(root))
}

// Barrier blocks until every rank in the Group has called Barrier,
// realized as an AllReduce over a constant whose result nobody inspects
// (every round still requires every rank's participation).
func Barrier(g Group) error {
	_, err := AllReduce(g, 0, func(a, b uint64) uint64 { return 0 })
	return err
}

// Broadcast sends data from root to every other rank and returns it on
// all ranks, root included.
func Broadcast(g Group, root int, data []byte) ([]byte, error) {
	r := g.Rank()
	n := g.NumPeers()
	if root == r {
		for peer := 0; peer < n; peer++ {
			if peer == r {
				continue
			}
			if err := SendFrame(g.Connection(peer), data); err != nil {
				return nil, err
			}
		}
		return data, nil
	}
	return ReceiveFrame(g.Connection(root))
}

// PrefixSum computes, on each rank r, combine applied across
// value_0 ... value_r (inclusive) or value_0 ... value_{r-1} (exclusive),
// via a sequential carry passed rank-to-rank. This is correct for any n
// and peer mapping (spec §4.5 "Collective correctness") though not
// logarithmic in depth — the same chain AllReduce now folds its values
// over, one step short of AllReduce's final broadcast since a prefix
// result is inherently rank-specific rather than shared.
func PrefixSum(g Group, value uint64, combine func(a, b uint64) uint64, inclusive bool) (uint64, error) {
	r := g.Rank()
	n := g.NumPeers()

	var carry uint64
	if r > 0 {
		got, err := recvUint64(g.Connection(r - 1))
		if err != nil {
			return 0, err
		}
		carry = got
	}

	result := carry
	if inclusive {
		result = combine(carry, value)
	}

	if r < n-1 {
		forward := combine(carry, value)
		if err := sendUint64(g.Connection(r+1), forward); err != nil {
			return 0, err
		}
	}
	return result, nil
}

// AllReduceBytes is AllReduce generalized to an arbitrary associative
// combine over byte-encoded values, for callers whose reduced type isn't
// a uint64 (e.g. api.Sum's user-supplied element type). It follows the
// identical chain-then-broadcast structure as AllReduce, for the same
// correctness reason: a one-factor mesh double-counts every rank's
// contribution past the first round.
func AllReduceBytes(g Group, value []byte, combine func(a, b []byte) []byte) ([]byte, error) {
	n := g.NumPeers()
	r := g.Rank()
	if n <= 0 {
		return nil, fluxerr.New(fluxerr.UsageError, "net.AllReduceBytes", fmt.Errorf("group has no peers"))
	}
	acc := value
	if r > 0 {
		got, err := ReceiveFrame(g.Connection(r - 1))
		if err != nil {
			return nil, err
		}
		acc = combine(got, acc)
	}
	if r < n-1 {
		if err := SendFrame(g.Connection(r+1), acc); err != nil {
			return nil, err
		}
	}
	return Broadcast(g, n-1, acc)
}

// PrefixSumBytes is PrefixSum generalized to an arbitrary associative
// combine over byte-encoded values, via the identical sequential
// carry-chain (spec §4.5).
func PrefixSumBytes(g Group, value []byte, combine func(a, b []byte) []byte, inclusive bool) ([]byte, error) {
	r := g.Rank()
	n := g.NumPeers()

	var carry []byte
	if r > 0 {
		got, err := ReceiveFrame(g.Connection(r - 1))
		if err != nil {
			return nil, err
		}
		carry = got
	}

	result := carry
	if inclusive {
		result = combine(carry, value)
	}

	if r < n-1 {
		forward := combine(carry, value)
		if err := SendFrame(g.Connection(r+1), forward); err != nil {
			return nil, err
		}
	}
	return result, nil
}

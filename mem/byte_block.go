package mem

import (
	"container/list"
	"sync"

	"go.uber.org/atomic"
)

// ByteBlock is a fixed-capacity byte buffer, the unit of memory and I/O
// managed by a BlockPool (spec §3). It is reference counted: Ref/Release
// stand in for the self-registering destructor pattern Thrill implements
// via a custom shared_ptr deleter (see Design Notes §9) since Go has no
// destructor hook to repurpose.
type ByteBlock struct {
	id   uint64
	pool *BlockPool

	mu       sync.Mutex
	data     []byte // nil while swapped out
	capacity int
	used     int

	pinCount int32 // guarded by pool.mu; swapped ⇒ pinCount == 0 (invariant, spec §3)
	swapped  bool
	extent   extent // valid iff swapped

	oneOff bool // non-pooled allocation: always pinned, never evicted

	refs atomic.Int32 // independent of pool.mu: callers Ref/Release across goroutines freely

	victimElem *list.Element // position in pool's victim deque, nil if not a candidate
}

// Capacity returns the block's fixed byte capacity.
func (b *ByteBlock) Capacity() int { return b.capacity }

// Pool returns the BlockPool that owns this block.
func (b *ByteBlock) Pool() *BlockPool { return b.pool }

// Used returns the number of bytes currently written into the block.
func (b *ByteBlock) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// PinCount returns the block's current pin count.
func (b *ByteBlock) PinCount() int32 {
	b.pool.mu.Lock()
	defer b.pool.mu.Unlock()
	return b.pinCount
}

// IsSwapped reports whether the block currently lives on the pool's spill
// file rather than in memory.
func (b *ByteBlock) IsSwapped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.swapped
}

// Bytes returns the block's resident backing storage, valid only while the
// caller holds a pin. Calling it on a swapped-out block returns nil; callers
// must Pin first.
func (b *ByteBlock) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.swapped {
		return nil
	}
	return b.data[:b.used]
}

// Write appends to the block's backing storage. The caller must hold
// write-exclusive access (spec §5: "mutation occurs only while a Block is
// write-exclusive"); there is no internal locking against concurrent
// writers by design.
func (b *ByteBlock) Write(p []byte) (int, error) {
	n := copy(b.data[b.used:b.capacity], p)
	b.used += n
	return n, nil
}

// Remaining reports how many bytes are free in the block's backing buffer.
func (b *ByteBlock) Remaining() int {
	return b.capacity - b.used
}

// Ref increments the block's reference count.
func (b *ByteBlock) Ref() {
	b.refs.Inc()
}

// Release decrements the block's reference count, destroying it via the
// owning pool when the count reaches zero.
func (b *ByteBlock) Release() {
	if b.refs.Dec() == 0 {
		b.pool.destroy(b)
	}
}

// extent locates a spilled block's bytes within the pool's scratch file.
type extent struct {
	offset int64
	size   int64
}

// Package mem implements the ByteBlock and BlockPool (spec §3, §4.1):
// a bounded pool of fixed-size byte buffers that can be pinned for active
// use, spilled to disk under memory pressure, and reloaded on demand.
package mem

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grafana/fluxmesh/fluxerr"
)

var (
	metricResidentBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fluxmesh",
		Subsystem: "block_pool",
		Name:      "resident_bytes",
		Help:      "Bytes currently resident in memory across pinned and unpinned blocks.",
	})
	metricSwappedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fluxmesh",
		Subsystem: "block_pool",
		Name:      "swapped_bytes",
		Help:      "Bytes currently swapped out to the spill file.",
	})
	metricPinnedBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fluxmesh",
		Subsystem: "block_pool",
		Name:      "pinned_blocks",
		Help:      "Number of currently pinned blocks.",
	})
	metricEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fluxmesh",
		Subsystem: "block_pool",
		Name:      "evictions_total",
		Help:      "Total number of blocks swapped out due to the soft memory limit.",
	})
	metricReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fluxmesh",
		Subsystem: "block_pool",
		Name:      "reloads_total",
		Help:      "Total number of blocks reloaded from the spill file on Pin.",
	})
	metricPinCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fluxmesh",
		Subsystem: "block_pool",
		Name:      "pin_coalesced_total",
		Help:      "Total number of Pin calls that joined an in-flight reload instead of starting a new one.",
	})
)

// BlockPool allocates, pins, unpins, spills, and reloads ByteBlocks while
// enforcing soft and hard memory budgets (spec §4.1).
type BlockPool struct {
	cfg    *Config
	logger log.Logger

	mu             sync.Mutex
	cond           *sync.Cond
	residentBytes  int64
	pinnedBytes    int64
	swappedBytes   int64
	victims        *list.List // FIFO of unpinned resident *ByteBlock, oldest-unpinned-first
	pinWaiters     map[*ByteBlock]*pinWaiter
	nextID         uint64
	closed         bool

	spill *spillFile
}

type pinWaiter struct {
	done chan struct{}
	err  error

	waiters int // guarded by pool.mu; Pin calls coalesced into this reload
}

// PinFuture resolves once a Pin call's block is guaranteed resident.
type PinFuture struct {
	block *ByteBlock
	done  chan struct{}
	err   *error
}

// Wait blocks until the pin is satisfied and returns any error encountered
// reloading the block from the spill file.
func (f *PinFuture) Wait() (*ByteBlock, error) {
	<-f.done
	if f.err != nil {
		return nil, *f.err
	}
	return f.block, nil
}

// NewPool constructs a BlockPool. cfg may be nil to use defaults.
func NewPool(cfg *Config, logger log.Logger) (*BlockPool, error) {
	if cfg == nil {
		cfg = defaultConfig()
	} else {
		cfg.RegisterFlagsAndApplyDefaults("")
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	p := &BlockPool{
		cfg:        cfg,
		logger:     logger,
		victims:    list.New(),
		pinWaiters: make(map[*ByteBlock]*pinWaiter),
	}
	p.cond = sync.NewCond(&p.mu)

	if cfg.SoftLimitBytes > 0 {
		c, err := newCompressor(cfg.SpillCompression)
		if err != nil {
			return nil, err
		}
		sf, err := newSpillFile(cfg.SpillDirectory, c)
		if err != nil {
			return nil, fluxerr.New(fluxerr.IoError, "mem.NewPool", err)
		}
		p.spill = sf
	}

	return p, nil
}

// BlockSize returns the pool's configured standard block size.
func (p *BlockPool) BlockSize() int { return p.cfg.BlockSize }

// Allocate yields a reference-counted block of size bytes. If size equals
// the pool's configured block size, memory is drawn from the pool and
// subject to soft/hard limit accounting; otherwise a one-off allocation is
// made that is always pinned and never eligible for eviction (spec §4.1).
func (p *BlockPool) Allocate(size int, pinned bool) (*ByteBlock, error) {
	oneOff := size != p.cfg.BlockSize
	if oneOff {
		pinned = true
	}

	p.mu.Lock()
	for !p.closed && p.hardLimitExceeded(int64(size)) {
		if !p.evictOneLocked() {
			p.cond.Wait()
		}
	}
	if p.closed {
		p.mu.Unlock()
		return nil, fluxerr.New(fluxerr.UsageError, "mem.BlockPool.Allocate", fmt.Errorf("pool is shut down"))
	}

	p.nextID++
	b := &ByteBlock{
		id:       p.nextID,
		pool:     p,
		data:     make([]byte, size),
		capacity: size,
		oneOff:   oneOff,
	}
	b.refs.Store(1)
	if pinned {
		b.pinCount = 1
		p.pinnedBytes += int64(size)
		metricPinnedBlocks.Inc()
	} else {
		p.residentBytes += int64(size)
		b.victimElem = p.victims.PushBack(b)
	}
	p.mu.Unlock()

	metricResidentBytes.Set(float64(p.residentSnapshot()))
	p.maybeEvict()
	return b, nil
}

// hardLimitExceeded reports whether allocating extra additional bytes
// would push pinned+resident usage past the hard limit. Must be called
// with p.mu held.
func (p *BlockPool) hardLimitExceeded(extra int64) bool {
	if p.cfg.HardLimitBytes == 0 {
		return false
	}
	return p.pinnedBytes+p.residentBytes+extra > p.cfg.HardLimitBytes
}

func (p *BlockPool) residentSnapshot() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.residentBytes
}

// Pin asynchronously ensures block is resident, incrementing its pin count
// once satisfied. Concurrent pins on the same swapped block coalesce into
// one reload.
func (p *BlockPool) Pin(b *ByteBlock) *PinFuture {
	b.mu.Lock()
	if !b.swapped {
		b.mu.Unlock()
		p.pinResident(b)
		done := make(chan struct{})
		close(done)
		return &PinFuture{block: b, done: done}
	}
	b.mu.Unlock()

	p.mu.Lock()
	if w, ok := p.pinWaiters[b]; ok {
		w.waiters++
		p.mu.Unlock()
		metricPinCoalescedTotal.Inc()
		return &PinFuture{block: b, done: w.done, err: errPtr(w)}
	}
	b.mu.Lock()
	swapped := b.swapped
	b.mu.Unlock()
	if !swapped {
		// A reload finished between the check above and taking p.mu.
		p.mu.Unlock()
		p.pinResident(b)
		done := make(chan struct{})
		close(done)
		return &PinFuture{block: b, done: done}
	}
	w := &pinWaiter{done: make(chan struct{}), waiters: 1}
	p.pinWaiters[b] = w
	p.mu.Unlock()

	go p.reload(b, w)

	return &PinFuture{block: b, done: w.done, err: errPtr(w)}
}

func errPtr(w *pinWaiter) *error {
	return &w.err
}

func (p *BlockPool) pinResident(b *ByteBlock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b.pinCount == 0 {
		if b.victimElem != nil {
			p.victims.Remove(b.victimElem)
			b.victimElem = nil
		}
		p.residentBytes -= int64(b.capacity)
		p.pinnedBytes += int64(b.capacity)
		metricPinnedBlocks.Inc()
	}
	b.pinCount++
}

// reload performs the synchronous spill-file read on an I/O helper
// goroutine, then wakes every coalesced waiter.
func (p *BlockPool) reload(b *ByteBlock, w *pinWaiter) {
	data := make([]byte, b.capacity)
	b.mu.Lock()
	ext := b.extent
	b.mu.Unlock()

	err := p.spill.readAt(data, ext)
	metricReloadsTotal.Inc()

	p.mu.Lock()
	delete(p.pinWaiters, b)
	if err != nil {
		w.err = fluxerr.New(fluxerr.IoError, "mem.BlockPool.Pin", err)
		p.mu.Unlock()
		close(w.done)
		return
	}

	b.mu.Lock()
	b.data = data
	b.used = b.capacity
	b.swapped = false
	b.mu.Unlock()
	p.spill.free(ext)

	// pinCount is guarded by p.mu (not b.mu), matching PinCount/Unpin/
	// pinResident/destroy; p.mu is already held continuously since the
	// delete above, so this is the one moment reload needs it. Every
	// coalesced caller gets its own pin, so the block's count becomes the
	// number of callers that joined this reload, not a flat 1.
	b.pinCount = int32(w.waiters)
	p.swappedBytes -= int64(b.capacity)
	p.pinnedBytes += int64(b.capacity)
	metricPinnedBlocks.Inc()
	metricSwappedBytes.Set(float64(p.swappedBytes))
	p.mu.Unlock()

	close(w.done)
}

// Unpin decrements block's pin count. Once it reaches zero the block
// becomes an eviction candidate.
func (p *BlockPool) Unpin(b *ByteBlock) {
	p.mu.Lock()
	b.pinCount--
	if b.pinCount < 0 {
		p.mu.Unlock()
		panic("mem: Unpin called more times than Pin")
	}
	if b.pinCount == 0 {
		p.pinnedBytes -= int64(b.capacity)
		metricPinnedBlocks.Dec()
		if !b.oneOff {
			p.residentBytes += int64(b.capacity)
			b.victimElem = p.victims.PushBack(b)
		}
		p.cond.Broadcast()
	}
	p.mu.Unlock()

	p.maybeEvict()
}

// destroy is invoked by ByteBlock.Release when the last reference drops.
func (p *BlockPool) destroy(b *ByteBlock) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.victimElem != nil {
		p.victims.Remove(b.victimElem)
		b.victimElem = nil
	}
	if b.swapped {
		p.spill.free(b.extent)
		p.swappedBytes -= int64(b.capacity)
	} else if b.pinCount > 0 {
		p.pinnedBytes -= int64(b.capacity)
		metricPinnedBlocks.Dec()
	} else {
		p.residentBytes -= int64(b.capacity)
	}
	b.data = nil
	p.cond.Broadcast()
}

// maybeEvict writes unpinned resident blocks to the spill file while
// resident bytes exceed the soft limit (spec §4.1 eviction policy).
func (p *BlockPool) maybeEvict() {
	if p.cfg.SoftLimitBytes == 0 {
		return
	}
	for {
		p.mu.Lock()
		if p.residentBytes <= p.cfg.SoftLimitBytes || p.victims.Len() == 0 {
			p.mu.Unlock()
			return
		}
		elem := p.victims.Front()
		p.mu.Unlock()

		if !p.evictElement(elem) {
			return
		}
	}
}

// evictOneLocked evicts the oldest victim while p.mu is held (used from
// Allocate's hard-limit wait loop). Returns false if nothing could be
// evicted.
func (p *BlockPool) evictOneLocked() bool {
	if p.victims.Len() == 0 {
		return false
	}
	elem := p.victims.Front()
	p.mu.Unlock()
	ok := p.evictElement(elem)
	p.mu.Lock()
	return ok
}

func (p *BlockPool) evictElement(elem *list.Element) bool {
	b := elem.Value.(*ByteBlock)

	b.mu.Lock()
	if b.swapped || b.pinCount != 0 {
		b.mu.Unlock()
		return false
	}
	data := b.data
	b.mu.Unlock()

	ext, err := p.spill.write(data)
	if err != nil {
		level.Error(p.logger).Log("msg", "spill write failed", "err", err)
		return false
	}

	p.mu.Lock()
	if b.victimElem == elem {
		p.victims.Remove(elem)
		b.victimElem = nil
	}
	p.residentBytes -= int64(b.capacity)
	p.swappedBytes += int64(b.capacity)
	metricEvictionsTotal.Inc()
	metricSwappedBytes.Set(float64(p.swappedBytes))
	p.cond.Broadcast()
	p.mu.Unlock()

	b.mu.Lock()
	b.data = nil
	b.swapped = true
	b.extent = ext
	b.mu.Unlock()

	return true
}

// Stats reports the pool's current byte accounting, used by tests to
// verify the conservation invariant (spec §8).
type Stats struct {
	ResidentBytes int64
	PinnedBytes   int64
	SwappedBytes  int64
}

func (p *BlockPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		ResidentBytes: p.residentBytes,
		PinnedBytes:   p.pinnedBytes,
		SwappedBytes:  p.swappedBytes,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("resident=%s pinned=%s swapped=%s",
		humanize.Bytes(uint64(s.ResidentBytes)),
		humanize.Bytes(uint64(s.PinnedBytes)),
		humanize.Bytes(uint64(s.SwappedBytes)))
}

// Shutdown releases the pool's spill file. Idempotent.
func (p *BlockPool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	if p.spill != nil {
		return p.spill.close()
	}
	return nil
}

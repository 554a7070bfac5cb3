package net

import (
	"container/heap"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Job is a callback queued for execution on the Dispatcher's single
// goroutine.
type Job func()

type timerEntry struct {
	at  time.Time
	job Job
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x interface{}) { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Dispatcher is fluxmesh's single-threaded cooperative reactor: a job
// queue of callbacks submitted from other goroutines plus a timer heap of
// scheduled callbacks, both drained on one goroutine so registered
// callbacks never run concurrently with each other (spec §3 "Dispatcher";
// grounded on Thrill's select_dispatcher.cpp). The "select on readable
// sockets" half of that reactor is realized differently here: net.Conn
// doesn't expose a raw fd to poll() the way Thrill's sockets do, and
// Go's goroutines are cheap enough that Thrill's core reason for a
// reactor — avoiding a thread per connection — doesn't apply, so
// per-connection I/O runs on its own blocking goroutine (the
// stream.Multiplexer receive loops) rather than being registered here as
// an AddRead callback on raw fds; no transport or stream posts to the
// Dispatcher. The self-pipe interrupt Thrill uses to wake a
// blocked select() is kept close to verbatim: a real unix pipe, woken via
// a one-byte write, polled with golang.org/x/sys/unix so Run can sleep
// until the next timer deadline without spinning.
type Dispatcher struct {
	mu     sync.Mutex
	jobs   []Job
	timers timerHeap

	wakeR, wakeW *os.File
	closed       bool
}

// NewDispatcher constructs a Dispatcher with its self-pipe opened.
func NewDispatcher() (*Dispatcher, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &Dispatcher{wakeR: r, wakeW: w}, nil
}

// Post enqueues job for execution on Run's goroutine and wakes Run if it
// is currently blocked on the self-pipe.
func (d *Dispatcher) Post(job Job) {
	d.mu.Lock()
	d.jobs = append(d.jobs, job)
	d.mu.Unlock()
	d.interrupt()
}

// At schedules job to run at or after t.
func (d *Dispatcher) At(t time.Time, job Job) {
	d.mu.Lock()
	heap.Push(&d.timers, &timerEntry{at: t, job: job})
	d.mu.Unlock()
	d.interrupt()
}

func (d *Dispatcher) interrupt() {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}
	_, _ = d.wakeW.Write([]byte{0})
}

// Run drains posted jobs and due timers until stop is closed or Close is
// called, sleeping on the self-pipe via unix.Poll between iterations so it
// wakes immediately on Post/At and otherwise no more often than the next
// timer deadline.
func (d *Dispatcher) Run(stop <-chan struct{}) {
	fd := int32(d.wakeR.Fd())
	buf := make([]byte, 64)
	for {
		select {
		case <-stop:
			return
		default:
		}
		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return
		}

		d.runDueJobsAndTimers()

		fds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
		_, err := unix.Poll(fds, d.nextTimeoutMillis())
		if err != nil {
			continue
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			_, _ = d.wakeR.Read(buf)
		}
	}
}

func (d *Dispatcher) runDueJobsAndTimers() {
	d.mu.Lock()
	jobs := d.jobs
	d.jobs = nil
	now := time.Now()
	var due []Job
	for d.timers.Len() > 0 && !d.timers[0].at.After(now) {
		e := heap.Pop(&d.timers).(*timerEntry)
		due = append(due, e.job)
	}
	d.mu.Unlock()

	for _, j := range jobs {
		j()
	}
	for _, j := range due {
		j()
	}
}

// nextTimeoutMillis bounds Poll's wait so Run still periodically rechecks
// for jobs posted without going through interrupt (defensive; Post always
// interrupts, but a bounded timeout keeps Run self-healing).
func (d *Dispatcher) nextTimeoutMillis() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	const maxWaitMs = 1000
	if len(d.timers) == 0 {
		return maxWaitMs
	}
	delay := time.Until(d.timers[0].at)
	if delay <= 0 {
		return 0
	}
	ms := int(delay / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	if ms > maxWaitMs {
		ms = maxWaitMs
	}
	return ms
}

// Close stops Run and releases the self-pipe. Idempotent.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()
	_ = d.wakeW.Close()
	_ = d.wakeR.Close()
	return nil
}

package net

import (
	"fmt"
	"sync"

	"github.com/grafana/fluxmesh/fluxerr"
)

// NewMockGroups builds n fully-connected in-process Groups wired together
// via buffered channels, for single-process tests and the cmd/fluxctl
// demo harness (spec §1 "mock transport"; grounded on Thrill's
// net/mock/group.hpp send/receive-queue-per-peer design, with the
// mutex+condition-variable inbound queue replaced by a Go channel per
// ordered pair of peers).
func NewMockGroups(n int) []Group {
	hub := &mockHub{n: n}
	hub.inbound = make([][]chan []byte, n)
	for i := range hub.inbound {
		hub.inbound[i] = make([]chan []byte, n)
		for j := range hub.inbound[i] {
			hub.inbound[i][j] = make(chan []byte, 64)
		}
	}

	groups := make([]Group, n)
	for r := 0; r < n; r++ {
		groups[r] = &mockGroup{rank: r, n: n, hub: hub, closed: make(chan struct{})}
	}
	return groups
}

type mockHub struct {
	n       int
	inbound [][]chan []byte // inbound[dst][src]
}

type mockGroup struct {
	rank int
	n    int
	hub  *mockHub

	mu        sync.Mutex
	conns     map[int]*mockConnection
	closed    chan struct{}
	closeOnce sync.Once
}

func (g *mockGroup) Rank() int     { return g.rank }
func (g *mockGroup) NumPeers() int { return g.n }

func (g *mockGroup) Connection(peer int) Connection {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conns == nil {
		g.conns = make(map[int]*mockConnection)
	}
	if c, ok := g.conns[peer]; ok {
		return c
	}
	c := &mockConnection{
		send:   g.hub.inbound[peer][g.rank],
		recv:   g.hub.inbound[g.rank][peer],
		closed: g.closed,
	}
	g.conns[peer] = c
	return c
}

// Close makes every Receive on this group's connections, pending or
// later, fail with IoError. Idempotent.
func (g *mockGroup) Close() error {
	g.closeOnce.Do(func() { close(g.closed) })
	return nil
}

// mockConnection adapts a pair of message channels into the ordered
// byte-stream Connection interface: Receive(n) may need to span several
// enqueued messages, so received bytes not yet consumed are buffered.
type mockConnection struct {
	send   chan<- []byte
	recv   <-chan []byte
	closed <-chan struct{}

	mu      sync.Mutex
	pending []byte
}

func (c *mockConnection) Send(data []byte) error {
	cp := append([]byte(nil), data...)
	c.send <- cp
	return nil
}

func (c *mockConnection) Receive(n int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, 0, n)
	for len(out) < n {
		if len(c.pending) == 0 {
			var msg []byte
			ok := false
			select {
			case msg, ok = <-c.recv:
			case <-c.closed:
			}
			if !ok {
				return nil, fluxerr.New(fluxerr.IoError, "net.mockConnection.Receive", fmt.Errorf("connection closed"))
			}
			c.pending = msg
		}
		take := n - len(out)
		if take > len(c.pending) {
			take = len(c.pending)
		}
		out = append(out, c.pending[:take]...)
		c.pending = c.pending[take:]
	}
	return out, nil
}

func (c *mockConnection) Close() error { return nil }

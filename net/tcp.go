package net

import (
	"encoding/binary"
	"fmt"
	"io"
	stdnet "net"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/fluxmesh/fluxerr"
)

// DialTCP builds a fully-connected Group of len(addrs) hosts over TCP,
// stable ranks fixed by position in addrs (spec §3 "tcp transport").
// Construction follows the usual lower-rank-listens / higher-rank-dials
// bootstrap: rank r listens on addrs[r] for the n-1-r peers ranked above
// it, and dials every peer ranked below it; the dialer's first write is
// its own rank so the listener can place the new connection correctly
// regardless of accept order.
func DialTCP(addrs []string, rank int, logger log.Logger) (Group, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	n := len(addrs)
	if rank < 0 || rank >= n {
		return nil, fluxerr.New(fluxerr.UsageError, "net.DialTCP", fmt.Errorf("rank %d out of range [0,%d)", rank, n))
	}

	ln, err := stdnet.Listen("tcp", addrs[rank])
	if err != nil {
		return nil, fluxerr.New(fluxerr.IoError, "net.DialTCP", err)
	}

	g := &tcpGroup{rank: rank, n: n, addrs: addrs, conns: make([]*tcpConnection, n), logger: logger}

	var wg sync.WaitGroup
	errCh := make(chan error, n)

	// Accept connections from every higher-ranked peer.
	incoming := n - 1 - rank
	if incoming > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < incoming; i++ {
				conn, err := ln.Accept()
				if err != nil {
					errCh <- err
					return
				}
				var hdr [4]byte
				if _, err := io.ReadFull(conn, hdr[:]); err != nil {
					errCh <- err
					return
				}
				peer := int(binary.LittleEndian.Uint32(hdr[:]))
				g.conns[peer] = &tcpConnection{conn: conn}
			}
		}()
	}

	// Dial every lower-ranked peer.
	for peer := 0; peer < rank; peer++ {
		peer := peer
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := dialWithRetry(addrs[peer], 5*time.Second)
			if err != nil {
				errCh <- err
				return
			}
			var hdr [4]byte
			binary.LittleEndian.PutUint32(hdr[:], uint32(rank))
			if _, err := conn.Write(hdr[:]); err != nil {
				errCh <- err
				return
			}
			g.conns[peer] = &tcpConnection{conn: conn}
		}()
	}

	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		_ = ln.Close()
		return nil, fluxerr.New(fluxerr.IoError, "net.DialTCP", err)
	}

	g.listener = ln
	level.Info(logger).Log("msg", "tcp group connected", "rank", rank, "num_peers", n)
	return g, nil
}

func dialWithRetry(addr string, timeout time.Duration) (stdnet.Conn, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := stdnet.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, lastErr
}

type tcpGroup struct {
	rank     int
	n        int
	addrs    []string
	conns    []*tcpConnection
	listener stdnet.Listener
	logger   log.Logger
}

func (g *tcpGroup) Rank() int     { return g.rank }
func (g *tcpGroup) NumPeers() int { return g.n }

func (g *tcpGroup) Connection(peer int) Connection { return g.conns[peer] }

func (g *tcpGroup) Close() error {
	var firstErr error
	for _, c := range g.conns {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if g.listener != nil {
		if err := g.listener.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// tcpConnection is a length-framed byte stream over one net.Conn. Send
// and Receive may be called concurrently from different goroutines (one
// writing, one reading), matching net.Conn's own concurrency contract, so
// collectives can exchange values without a separate ack channel.
type tcpConnection struct {
	conn stdnet.Conn
}

func (c *tcpConnection) Send(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

func (c *tcpConnection) Receive(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return nil, fluxerr.New(fluxerr.IoError, "net.tcpConnection.Receive", err)
	}
	return buf, nil
}

func (c *tcpConnection) Close() error { return c.conn.Close() }

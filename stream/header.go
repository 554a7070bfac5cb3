// Package stream layers many logical cat/mix streams over the n(n-1)/2
// connections of a net.Group, each outbound block prefixed by a fixed
// header naming its stream and substream (spec §4.6 "Multiplexer and
// Streams").
package stream

import (
	"encoding/binary"
	"fmt"

	"github.com/grafana/fluxmesh/fluxerr"
	"github.com/grafana/fluxmesh/net"
)

// Magic distinguishes stream classes on the wire; readHeader rejects any
// other value (spec §6: "must fail on unknown values").
type Magic byte

const (
	MagicCat Magic = 1
	MagicMix Magic = 2
)

func (m Magic) valid() bool {
	return m == MagicCat || m == MagicMix
}

func (m Magic) String() string {
	switch m {
	case MagicCat:
		return "cat"
	case MagicMix:
		return "mix"
	default:
		return fmt.Sprintf("unknown(%d)", byte(m))
	}
}

// headerSize is 1 magic byte plus seven little-endian uint64 fields
// (spec §4.6 wire layout).
const headerSize = 1 + 8*7

// Header precedes every block sent across the network. Size == 0 signals
// close on the (StreamID, SenderRank) substream; otherwise exactly Size
// payload bytes follow.
type Header struct {
	Magic               Magic
	Size                uint64
	FirstItem           uint64
	NumItems            uint64
	StreamID            uint64
	SenderRank          uint64
	ReceiverLocalWorker uint64
	SenderLocalWorker   uint64
}

// IsClose reports whether this header is the end-of-substream sentinel.
func (h Header) IsClose() bool { return h.Size == 0 }

func writeHeader(c net.Connection, h Header) error {
	var buf [headerSize]byte
	buf[0] = byte(h.Magic)
	binary.LittleEndian.PutUint64(buf[1:9], h.Size)
	binary.LittleEndian.PutUint64(buf[9:17], h.FirstItem)
	binary.LittleEndian.PutUint64(buf[17:25], h.NumItems)
	binary.LittleEndian.PutUint64(buf[25:33], h.StreamID)
	binary.LittleEndian.PutUint64(buf[33:41], h.SenderRank)
	binary.LittleEndian.PutUint64(buf[41:49], h.ReceiverLocalWorker)
	binary.LittleEndian.PutUint64(buf[49:57], h.SenderLocalWorker)
	return c.Send(buf[:])
}

func readHeader(c net.Connection) (Header, error) {
	buf, err := c.Receive(headerSize)
	if err != nil {
		return Header{}, err
	}
	magic := Magic(buf[0])
	if !magic.valid() {
		return Header{}, fluxerr.New(fluxerr.ProtocolError, "stream.readHeader", fmt.Errorf("unknown magic byte %d", buf[0]))
	}
	return Header{
		Magic:               magic,
		Size:                binary.LittleEndian.Uint64(buf[1:9]),
		FirstItem:           binary.LittleEndian.Uint64(buf[9:17]),
		NumItems:            binary.LittleEndian.Uint64(buf[17:25]),
		StreamID:            binary.LittleEndian.Uint64(buf[25:33]),
		SenderRank:          binary.LittleEndian.Uint64(buf[33:41]),
		ReceiverLocalWorker: binary.LittleEndian.Uint64(buf[41:49]),
		SenderLocalWorker:   binary.LittleEndian.Uint64(buf[49:57]),
	}, nil
}

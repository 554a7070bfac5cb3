package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/fluxmesh/net"
)

func TestHeaderRoundTripsOverAConnection(t *testing.T) {
	groups := net.NewMockGroups(2)
	want := Header{
		Magic:               MagicCat,
		Size:                42,
		FirstItem:           3,
		NumItems:            5,
		StreamID:            7,
		SenderRank:          0,
		ReceiverLocalWorker: 1,
		SenderLocalWorker:   2,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	var got Header
	var writeErr, readErr error
	go func() {
		defer wg.Done()
		writeErr = writeHeader(groups[0].Connection(1), want)
	}()
	go func() {
		defer wg.Done()
		got, readErr = readHeader(groups[1].Connection(0))
	}()
	wg.Wait()

	require.NoError(t, writeErr)
	require.NoError(t, readErr)
	assert.Equal(t, want, got)
}

func TestHeaderCloseHasZeroSize(t *testing.T) {
	h := Header{Magic: MagicMix, Size: 0}
	assert.True(t, h.IsClose())
	h.Size = 1
	assert.False(t, h.IsClose())
}

func TestReadHeaderRejectsUnknownMagic(t *testing.T) {
	groups := net.NewMockGroups(2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = groups[0].Connection(1).Send([]byte{99, 0, 0, 0, 0, 0, 0, 0, 0})
		var zero [48]byte
		_ = groups[0].Connection(1).Send(zero[:])
	}()
	_, err := readHeader(groups[1].Connection(0))
	wg.Wait()
	require.Error(t, err)
}

package mem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/fluxmesh/mem"
)

func TestSoftLimitSpillsAndPinReloadsWithS2Compression(t *testing.T) {
	dir := t.TempDir()
	pool, err := mem.NewPool(&mem.Config{
		BlockSize:        64,
		SoftLimitBytes:   64,
		SpillDirectory:   dir,
		SpillCompression: "s2",
	}, nil)
	require.NoError(t, err)
	defer pool.Shutdown()

	b1, err := pool.Allocate(64, false)
	require.NoError(t, err)
	payload := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	_, err = b1.Write(payload)
	require.NoError(t, err)

	b2, err := pool.Allocate(64, false)
	require.NoError(t, err)
	_, err = b2.Write(make([]byte, 64))
	require.NoError(t, err)

	require.True(t, b1.IsSwapped())

	reloaded, err := pool.Pin(b1).Wait()
	require.NoError(t, err)
	assert.False(t, reloaded.IsSwapped())
	assert.Equal(t, payload, reloaded.Bytes())

	pool.Unpin(b1)
	b1.Release()
	b2.Release()
}

func TestUnknownSpillCompressionRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := mem.NewPool(&mem.Config{
		BlockSize:        64,
		SoftLimitBytes:   64,
		SpillDirectory:   dir,
		SpillCompression: "bogus",
	}, nil)
	require.Error(t, err)
}

package mem_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/fluxmesh/mem"
)

func TestAllocatePinUnpinDestroyConservesBytes(t *testing.T) {
	pool, err := mem.NewPool(&mem.Config{BlockSize: 1024}, nil)
	require.NoError(t, err)
	defer pool.Shutdown()

	blocks := make([]*mem.ByteBlock, 0, 10)
	for i := 0; i < 10; i++ {
		b, err := pool.Allocate(1024, true)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}

	stats := pool.Stats()
	assert.EqualValues(t, 10*1024, stats.PinnedBytes)
	assert.EqualValues(t, 0, stats.ResidentBytes)
	assert.EqualValues(t, 10*1024, stats.PinnedBytes+stats.ResidentBytes+stats.SwappedBytes)

	for _, b := range blocks {
		pool.Unpin(b)
	}
	stats = pool.Stats()
	assert.EqualValues(t, 0, stats.PinnedBytes)
	assert.EqualValues(t, 10*1024, stats.ResidentBytes)

	for _, b := range blocks {
		b.Release()
	}
	stats = pool.Stats()
	assert.EqualValues(t, 0, stats.ResidentBytes+stats.PinnedBytes+stats.SwappedBytes)
}

func TestSoftLimitSpillsAndPinReloads(t *testing.T) {
	dir := t.TempDir()
	pool, err := mem.NewPool(&mem.Config{
		BlockSize:      64,
		SoftLimitBytes: 64, // only one block resident before eviction kicks in
		SpillDirectory: dir,
	}, nil)
	require.NoError(t, err)
	defer pool.Shutdown()

	b1, err := pool.Allocate(64, false)
	require.NoError(t, err)
	_, err = b1.Write([]byte("hello, world, this is sixty four bytes of payload!!!!!!!!!!!!!!"))
	require.NoError(t, err)

	b2, err := pool.Allocate(64, false)
	require.NoError(t, err)
	b2.Write(make([]byte, 64))

	// Forcing allocation of a second resident block over the soft limit
	// should eventually spill b1.
	future := pool.Pin(b1)
	reloaded, err := future.Wait()
	require.NoError(t, err)
	assert.Equal(t, b1, reloaded)
	assert.False(t, reloaded.IsSwapped())

	b1.Release()
	b2.Release()
}

func TestPinCoalescesConcurrentCallers(t *testing.T) {
	dir := t.TempDir()
	pool, err := mem.NewPool(&mem.Config{
		BlockSize:      64,
		SoftLimitBytes: 64, // only one block resident before eviction kicks in
		SpillDirectory: dir,
	}, nil)
	require.NoError(t, err)
	defer pool.Shutdown()

	b, err := pool.Allocate(64, false)
	require.NoError(t, err)
	b.Write(make([]byte, 64))

	// allocate a second block to push resident bytes past the soft limit
	// and trigger b's eviction
	b2, err := pool.Allocate(64, false)
	require.NoError(t, err)
	b2.Write(make([]byte, 64))
	require.True(t, b.IsSwapped())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := pool.Pin(b).Wait()
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 8, b.PinCount())

	for i := 0; i < 8; i++ {
		pool.Unpin(b)
	}
	b.Release()
	b2.Release()
}

package stream_test

import (
	"encoding/binary"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/fluxmesh/data"
	"github.com/grafana/fluxmesh/mem"
	"github.com/grafana/fluxmesh/net"
	"github.com/grafana/fluxmesh/stream"
)

type int64Codec struct{}

func (int64Codec) Marshal(v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func (int64Codec) Unmarshal(b []byte) (int64, error) {
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (int64Codec) FixedSize() int { return 8 }

func newTestPool(t *testing.T) *mem.BlockPool {
	t.Helper()
	pool, err := mem.NewPool(&mem.Config{BlockSize: 256}, nil)
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)
	return pool
}

// TestCatStreamRestoresSenderRankOrder has every rank send its own rank
// number (repeated a few times) on a cat stream to rank 0, and checks
// rank 0 reads back a run of rank 0's items, then rank 1's, etc.
func TestCatStreamRestoresSenderRankOrder(t *testing.T) {
	const n = 4
	groups := net.NewMockGroups(n)

	muxes := make([]*stream.Multiplexer, n)
	pools := make([]*mem.BlockPool, n)
	for r := 0; r < n; r++ {
		pools[r] = newTestPool(t)
		muxes[r] = stream.NewMultiplexer(groups[r], pools[r])
		t.Cleanup(func() { _ = muxes[r].Close() })
	}

	const streamID = 1
	const worker = 0

	var g errgroup.Group
	for r := 0; r < n; r++ {
		r := r
		g.Go(func() error {
			cs, err := muxes[r].CatStream(streamID, worker)
			if err != nil {
				return err
			}
			writers := cs.Writers(worker)
			w := data.NewWriter[int64](pools[r], writers[0], int64Codec{}, false)
			for i := 0; i < 3; i++ {
				if err := w.Put(int64(r)); err != nil {
					return err
				}
			}
			return w.Close()
		})
	}
	require.NoError(t, g.Wait())

	cs, err := muxes[0].CatStream(streamID, worker)
	require.NoError(t, err)
	reader := data.NewReader[int64](cs, int64Codec{}, false)

	var got []int64
	for {
		v, err := reader.Next()
		if err != nil {
			break
		}
		got = append(got, v)
	}
	require.Len(t, got, n*3)
	for r := 0; r < n; r++ {
		for i := 0; i < 3; i++ {
			require.Equal(t, int64(r), got[r*3+i])
		}
	}
}

// TestMixStreamDeliversEveryItemRegardlessOfOrder only checks the
// multiset of delivered values, since mix order is arrival order and
// therefore not deterministic across runs.
func TestMixStreamDeliversEveryItemRegardlessOfOrder(t *testing.T) {
	const n = 3
	groups := net.NewMockGroups(n)

	muxes := make([]*stream.Multiplexer, n)
	pools := make([]*mem.BlockPool, n)
	for r := 0; r < n; r++ {
		pools[r] = newTestPool(t)
		muxes[r] = stream.NewMultiplexer(groups[r], pools[r])
		t.Cleanup(func() { _ = muxes[r].Close() })
	}

	const streamID = 2
	const worker = 0

	var wg sync.WaitGroup
	wg.Add(n)
	errs := make([]error, n)
	for r := 0; r < n; r++ {
		r := r
		go func() {
			defer wg.Done()
			ms, err := muxes[r].MixStream(streamID, worker)
			if err != nil {
				errs[r] = err
				return
			}
			writers := ms.Writers(worker)
			w := data.NewWriter[int64](pools[r], writers[0], int64Codec{}, false)
			errs[r] = w.Put(int64(r*10 + 1))
			if errs[r] != nil {
				return
			}
			errs[r] = w.Close()
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	ms, err := muxes[0].MixStream(streamID, worker)
	require.NoError(t, err)
	reader := data.NewReader[int64](ms, int64Codec{}, false)

	var got []int64
	for {
		v, err := reader.Next()
		if err != nil {
			break
		}
		got = append(got, v)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Equal(t, []int64{1, 11, 21}, got)
}

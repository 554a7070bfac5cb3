package api_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/fluxmesh/api"
)

func TestGeneratePartitionsContiguously(t *testing.T) {
	ctxs := buildContexts(t, 3)
	var combined []int64

	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			d := api.Generate[int64](ctx, 9, int64Codec{}, func(idx int) int64 { return int64(idx) })
			shard, err := api.Gather(d, int64Codec{}, 0)
			if err != nil {
				return err
			}
			if i == 0 {
				combined = shard
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Gather(target=0) concatenates in rank order; each rank's shard is a
	// contiguous block, so the concatenation reconstructs [0,9) in order.
	require.Len(t, combined, 9)
	for i, v := range combined {
		require.EqualValues(t, i, v)
	}
}

func TestWriteBinaryReadBinaryRoundTrip(t *testing.T) {
	ctxs := buildContexts(t, 2)
	dir := t.TempDir()
	path := dir + "/shard"

	results := make([][]int64, len(ctxs))
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			d := api.Generate[int64](ctx, 16, int64Codec{}, func(idx int) int64 { return int64(idx) })
			if err := api.WriteBinary[int64](d, int64Codec{}, path); err != nil {
				return err
			}
			back := api.ReadBinary[int64](ctx, int64Codec{}, path)
			all, err := api.AllGather(back, int64Codec{})
			if err != nil {
				return err
			}
			results[i] = all
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, got := range results {
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		require.Len(t, got, 16)
		for i, v := range got {
			require.EqualValues(t, i, v)
		}
	}
}

func TestReadBinaryToleratesMissingShard(t *testing.T) {
	ctxs := buildContexts(t, 1)
	ctx := ctxs[0]

	missing := api.ReadBinary[int64](ctx, int64Codec{}, t.TempDir()+"/does-not-exist")
	all, err := api.AllGather(missing, int64Codec{})
	require.NoError(t, err)
	require.Empty(t, all)
}

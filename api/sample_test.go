package api_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/fluxmesh/api"
)

func TestSampleDrawsExactlyKDistinctGlobally(t *testing.T) {
	ctxs := buildContexts(t, 3)

	var result []int64
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			d := api.Generate[int64](ctx, 30, int64Codec{}, func(idx int) int64 { return int64(idx) })
			sampled := api.Sample[int64](d, int64Codec{}, 10)
			all, err := api.AllGather(sampled, int64Codec{})
			if err != nil {
				return err
			}
			if i == 0 {
				result = all
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, result, 10)
	seen := make(map[int64]bool)
	for _, v := range result {
		require.False(t, seen[v], "sample contained duplicate value %d", v)
		seen[v] = true
		require.True(t, v >= 0 && v < 30)
	}
}

func TestSampleReturnsEverythingWhenFewerThanK(t *testing.T) {
	ctxs := buildContexts(t, 1)
	ctx := ctxs[0]

	d := api.Generate[int64](ctx, 4, int64Codec{}, func(idx int) int64 { return int64(idx) })
	sampled := api.Sample[int64](d, int64Codec{}, 10)
	all, err := api.AllGather(sampled, int64Codec{})
	require.NoError(t, err)

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	require.Equal(t, []int64{0, 1, 2, 3}, all)
}

package api_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/fluxmesh/api"
)

func TestCacheServesMultipleChildrenWithoutRecomputing(t *testing.T) {
	ctxs := buildContexts(t, 2)

	var sums []int64
	var alls [][]int64
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			d := api.Generate[int64](ctx, 8, int64Codec{}, func(idx int) int64 { return int64(idx) })
			cached := api.Cache[int64](d, int64Codec{})

			sum, err := api.Sum(cached, int64Codec{}, func(a, b int64) int64 { return a + b }, 0)
			if err != nil {
				return err
			}
			all, err := api.AllGather(cached, int64Codec{})
			if err != nil {
				return err
			}
			if i == 0 {
				sums = append(sums, sum)
				alls = append(alls, all)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.EqualValues(t, 28, sums[0])
	sort.Slice(alls[0], func(i, j int) bool { return alls[0][i] < alls[0][j] })
	require.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7}, alls[0])
}

func TestCollapseFlattensStackBeforeDownstreamNode(t *testing.T) {
	ctxs := buildContexts(t, 1)
	ctx := ctxs[0]

	d := api.Generate[int64](ctx, 5, int64Codec{}, func(idx int) int64 { return int64(idx) })
	doubled := api.Map[int64, int64](d, func(v int64) int64 { return v * 2 })
	collapsed := api.Collapse[int64](doubled, int64Codec{})
	all, err := api.AllGather(collapsed, int64Codec{})
	require.NoError(t, err)

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	require.Equal(t, []int64{0, 2, 4, 6, 8}, all)
}

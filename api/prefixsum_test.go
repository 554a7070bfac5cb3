package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/fluxmesh/api"
)

func TestPrefixSumMatchesSpecScenario(t *testing.T) {
	ctxs := buildContexts(t, 3)
	var result []int64

	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			d := api.Generate[int64](ctx, 10, int64Codec{}, func(idx int) int64 { return int64(idx) })
			ps := api.PrefixSum(d, int64Codec{}, func(a, b int64) int64 { return a + b }, 0, false)
			all, err := api.Gather(ps, int64Codec{}, 0)
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
	require.Equal(t, []int64{0, 0, 1, 3, 6, 10, 15, 21, 28, 36}, result)
}

func TestPrefixSumInclusive(t *testing.T) {
	ctxs := buildContexts(t, 1)
	ctx := ctxs[0]

	d := api.Generate[int64](ctx, 5, int64Codec{}, func(idx int) int64 { return int64(idx) })
	ps := api.PrefixSum(d, int64Codec{}, func(a, b int64) int64 { return a + b }, 0, true)
	all, err := api.Gather(ps, int64Codec{}, 0)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 3, 6, 10}, all)
}

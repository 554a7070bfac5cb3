package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/fluxmesh/api"
)

func TestZipCombinesIndexWise(t *testing.T) {
	ctxs := buildContexts(t, 2)

	var result []int64
	var g errgroup.Group
	for i, ctx := range ctxs {
		i, ctx := i, ctx
		g.Go(func() error {
			var xs, ys []int64
			if i == 0 {
				xs = []int64{1, 2, 3, 4}
				ys = []int64{10, 20, 30, 40}
			}
			a := api.Distribute[int64](ctx, int64Codec{}, xs)
			b := api.Distribute[int64](ctx, int64Codec{}, ys)
			zipped := api.Zip[int64, int64, int64](a, b, int64Codec{}, func(x, y int64) int64 { return x + y })
			all, err := api.Gather(zipped, int64Codec{}, 0)
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
	require.Equal(t, []int64{11, 22, 33, 44}, result)
}

func TestZipTruncatesToShorterInput(t *testing.T) {
	ctxs := buildContexts(t, 1)
	ctx := ctxs[0]

	a := api.Distribute[int64](ctx, int64Codec{}, []int64{1, 2, 3, 4, 5})
	b := api.Distribute[int64](ctx, int64Codec{}, []int64{10, 20})
	zipped := api.Zip[int64, int64, int64](a, b, int64Codec{}, func(x, y int64) int64 { return x + y })
	all, err := api.Gather(zipped, int64Codec{}, 0)
	require.NoError(t, err)
	require.Equal(t, []int64{11, 22}, all)
}

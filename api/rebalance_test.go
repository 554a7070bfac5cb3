package api_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/fluxmesh/api"
)

func TestRebalanceEvensOutSkewedShards(t *testing.T) {
	ctxs := buildContexts(t, 3)
	balanced := make([]api.DIA[int64], len(ctxs))

	for i, ctx := range ctxs {
		// Every item lives on host 0 before Rebalance, a deliberately
		// extreme skew.
		var local []int64
		if i == 0 {
			for v := int64(0); v < 9; v++ {
				local = append(local, v)
			}
		}
		d := api.Distribute[int64](ctx, int64Codec{}, local)
		balanced[i] = api.Rebalance[int64](d, int64Codec{})
	}

	var allResult []int64
	var g errgroup.Group
	for i := range ctxs {
		i := i
		g.Go(func() error {
			all, err := api.AllGather(balanced[i], int64Codec{})
			if err != nil {
				return err
			}
			if i == 0 {
				allResult = all
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	sort.Slice(allResult, func(i, j int) bool { return allResult[i] < allResult[j] })
	require.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8}, allResult)

	// Gather's star topology needs every host to agree on the round's
	// target, so measure each host's own shard length one rank at a time.
	lens := make([]int, len(ctxs))
	for round := range ctxs {
		round := round
		var rg errgroup.Group
		for i := range ctxs {
			i := i
			rg.Go(func() error {
				own, err := api.Gather(balanced[i], int64Codec{}, round)
				if err != nil {
					return err
				}
				if i == round {
					lens[round] = len(own)
				}
				return nil
			})
		}
		require.NoError(t, rg.Wait())
	}

	require.Equal(t, []int{3, 3, 3}, lens)
}

package net_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/fluxmesh/net"
)

func sum(a, b uint64) uint64 { return a + b }

func TestAllReduceSumMatchesOnEveryRankEvenAndOdd(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7} {
		groups := net.NewMockGroups(n)
		results := make([]uint64, n)
		var eg errgroup.Group
		for r := 0; r < n; r++ {
			r := r
			eg.Go(func() error {
				got, err := net.AllReduce(groups[r], uint64(r+1), sum)
				results[r] = got
				return err
			})
		}
		require.NoError(t, eg.Wait())

		var want uint64
		for r := 0; r < n; r++ {
			want += uint64(r + 1)
		}
		for r := 0; r < n; r++ {
			assert.Equalf(t, want, results[r], "n=%d rank=%d", n, r)
		}
	}
}

func TestBroadcastDeliversRootValueToEveryRank(t *testing.T) {
	n := 5
	groups := net.NewMockGroups(n)
	payload := []byte("hello from root")
	results := make([][]byte, n)
	var eg errgroup.Group
	for r := 0; r < n; r++ {
		r := r
		eg.Go(func() error {
			var data []byte
			if r == 2 {
				data = payload
			}
			got, err := net.Broadcast(groups[r], 2, data)
			results[r] = got
			return err
		})
	}
	require.NoError(t, eg.Wait())
	for r := 0; r < n; r++ {
		assert.Equal(t, payload, results[r])
	}
}

func TestBarrierReturnsOnEveryRank(t *testing.T) {
	n := 4
	groups := net.NewMockGroups(n)
	var eg errgroup.Group
	for r := 0; r < n; r++ {
		r := r
		eg.Go(func() error { return net.Barrier(groups[r]) })
	}
	require.NoError(t, eg.Wait())
}

func TestPrefixSumExclusiveMatchesPartialSums(t *testing.T) {
	n := 10
	groups := net.NewMockGroups(n)
	results := make([]uint64, n)
	var eg errgroup.Group
	for r := 0; r < n; r++ {
		r := r
		eg.Go(func() error {
			got, err := net.PrefixSum(groups[r], uint64(r), sum, false)
			results[r] = got
			return err
		})
	}
	require.NoError(t, eg.Wait())

	want := []uint64{0, 0, 1, 3, 6, 10, 15, 21, 28, 36}
	assert.Equal(t, want, results)
}

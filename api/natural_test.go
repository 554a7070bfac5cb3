package api_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/fluxmesh/api"
)

func TestNaturalLessOrdersEmbeddedDigitsNumerically(t *testing.T) {
	in := []string{"item10", "item2", "item1"}
	sort.Slice(in, func(i, j int) bool { return api.NaturalLess(in[i], in[j]) })
	require.Equal(t, []string{"item1", "item2", "item10"}, in)
}

package api_test

import (
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	fluxmesh "github.com/grafana/fluxmesh"
	"github.com/grafana/fluxmesh/api"
	"github.com/grafana/fluxmesh/core"
)

// buildContexts brings up n in-process hosts over the mock transport,
// the same bring-up path cmd/fluxctl uses, for every api package test
// that needs more than one host to exercise cross-host collectives and
// shuffles.
func buildContexts(t *testing.T, n int) []*api.Context {
	t.Helper()
	cfg := fluxmesh.Config{NumHosts: n, WorkersPerHost: 1}
	ctxs, err := core.RunLocalMock(cfg, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.CloseAll(ctxs...) })
	return ctxs
}

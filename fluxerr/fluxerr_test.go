package fluxerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/grafana/fluxmesh/fluxerr"
	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fluxerr.New(fluxerr.Underrun, "block.Reader.Next", fmt.Errorf("short read"))

	assert.True(t, errors.Is(err, fluxerr.Sentinel(fluxerr.Underrun)))
	assert.False(t, errors.Is(err, fluxerr.Sentinel(fluxerr.IoError)))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := fluxerr.New(fluxerr.ResourceExhausted, "mem.BlockPool.Allocate", cause)

	assert.ErrorIs(t, err, cause)
}

func TestSentinelOpScopesMatch(t *testing.T) {
	err := fluxerr.New(fluxerr.UsageError, "data.File.Append", nil)
	scoped := &fluxerr.Error{Kind: fluxerr.UsageError, Op: "data.File.Append"}
	unscoped := fluxerr.Sentinel(fluxerr.UsageError)

	assert.True(t, errors.Is(err, unscoped))
	assert.True(t, errors.Is(err, scoped))
	assert.False(t, errors.Is(err, &fluxerr.Error{Kind: fluxerr.UsageError, Op: "data.File.GetWriter"}))
}

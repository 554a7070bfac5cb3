//go:build !mpi

// Package mpi documents the shape a real MPI-backed net.Group would take
// (spec §1 "Out-of-scope: real MPI bindings"; grounded on Thrill's
// net/mpi/dispatcher.hpp, which wraps MPI_Isend/MPI_Irecv/MPI_Allreduce
// behind the same net.Dispatcher/net.Group interfaces the tcp and mock
// transports implement). This file is the !mpi build (the default): it
// compiles everywhere and reports that no MPI binding is present. A real
// binding needs cgo against a runtime MPI installation, both external to
// this module, so it would live in its own //go:build mpi file rather
// than here; none is shipped, since fabricating one without a real MPI
// library to link would just be a fake implementation behind a flag.
package mpi

import "github.com/grafana/fluxmesh/fluxerr"

// Config names the MPI-backed group this build would construct.
type Config struct {
	// Nothing to configure in the stub: a real binding would take the
	// communicator to use (MPI_COMM_WORLD by default).
}

// Dial would construct a net.Group over MPI. Without the mpi build tag
// (or a real cgo implementation swapped in for it) this always reports
// UsageError: fluxmesh ships no bundled MPI bindings.
func Dial(Config) (interface{}, error) {
	return nil, fluxerr.New(fluxerr.UsageError, "mpi.Dial",
		errMPINotBuilt)
}

var errMPINotBuilt = mpiNotBuiltError{}

type mpiNotBuiltError struct{}

func (mpiNotBuiltError) Error() string {
	return "mpi transport requires a cgo build against a real MPI implementation, not provided by this module"
}

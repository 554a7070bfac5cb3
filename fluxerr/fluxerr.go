// Package fluxerr defines the small closed error taxonomy used across
// fluxmesh. All errors surfacing from the engine are fatal to the owning
// compute thread and stage; there is no retry policy (see spec §7).
package fluxerr

import "fmt"

// Kind identifies which bucket of the taxonomy an error belongs to.
type Kind int

const (
	// ResourceExhausted is returned when the block pool's hard memory
	// limit cannot be satisfied after eviction, or a spill write fails
	// for lack of scratch space.
	ResourceExhausted Kind = iota
	// IoError covers transport read/write failures and spill file I/O
	// failures.
	IoError
	// ProtocolError covers unknown magic bytes, truncated headers, and
	// self-verify type-id or size mismatches.
	ProtocolError
	// Underrun is returned when a block reader is asked for more bytes
	// than the underlying block sequence can supply.
	Underrun
	// UsageError covers API misuse: appending to a closed File, opening
	// a second writer on a File, operating on a disposed node.
	UsageError
)

func (k Kind) String() string {
	switch k {
	case ResourceExhausted:
		return "resource-exhausted"
	case IoError:
		return "io-error"
	case ProtocolError:
		return "protocol-error"
	case Underrun:
		return "underrun"
	case UsageError:
		return "usage-error"
	default:
		return "unknown"
	}
}

// Error is a taxonomy-tagged error. Wrap an underlying cause with New so
// callers can test the kind with errors.Is against the Sentinel values
// below, or recover the full Error with errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, so
// errors.Is(err, fluxerr.Sentinel(ResourceExhausted)) works without
// callers needing to build an *Error themselves.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a taxonomy error attributing op (the component/operation
// that failed) and wrapping cause (nil permitted).
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Sentinel returns a bare *Error usable only as an errors.Is comparison
// target, e.g. errors.Is(err, fluxerr.Sentinel(fluxerr.Underrun)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}

package data

import (
	"fmt"

	farm "github.com/dgryski/go-farm"
)

// Serializer is the host-supplied codec for a DIA element type (spec §6,
// "host interface to runtime"). FixedSize reports the on-wire size for a
// plain-old-data type so the Writer can skip the length prefix; it returns
// 0 for variable-length types.
type Serializer[T any] interface {
	Marshal(v T) []byte
	Unmarshal(b []byte) (T, error)
	FixedSize() int
}

// typeTag fingerprints a Serializer for self-verification: every item is
// prefixed by an 8-byte hash of the element type's name so a Reader can
// refuse to decode a stream written with an incompatible Serializer (spec §4.6
// "self-verify"). It is a cheap guard against operator miswiring, not a
// type-safety mechanism.
func typeTag[T any](s Serializer[T]) uint64 {
	name := elementTypeName(s)
	return farm.Hash64([]byte(name))
}

func elementTypeName[T any](s Serializer[T]) string {
	if named, ok := s.(interface{ Name() string }); ok {
		return named.Name()
	}
	var zero T
	return fmt.Sprintf("%T", zero)
}

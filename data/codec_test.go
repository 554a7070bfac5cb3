package data_test

import (
	"encoding/binary"
	"fmt"

	"github.com/grafana/fluxmesh/data"
)

// int64Codec is a fixed-size Serializer[int64] used across the data
// package's tests.
type int64Codec struct{}

func (int64Codec) Marshal(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func (int64Codec) Unmarshal(b []byte) (int64, error) {
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (int64Codec) FixedSize() int { return 8 }

var _ data.Serializer[int64] = int64Codec{}

// stringCodec is a variable-length Serializer[string].
type stringCodec struct{}

func (stringCodec) Marshal(v string) []byte { return []byte(v) }

func (stringCodec) Unmarshal(b []byte) (string, error) { return string(b), nil }

func (stringCodec) FixedSize() int { return 0 }

var _ data.Serializer[string] = stringCodec{}

func mustInts(n int, f func(int) int64) []int64 {
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = f(i)
	}
	return out
}

func mustStrings(n int) []string {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("item-%03d", i)
	}
	return out
}

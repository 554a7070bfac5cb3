package api_test

import (
	"encoding/binary"

	"github.com/grafana/fluxmesh/data"
)

// int64Codec is the fixed-size Serializer[int64] every api test below
// shares.
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

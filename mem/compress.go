package mem

import (
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/grafana/fluxmesh/fluxerr"
)

// compressor optionally transforms spilled block bytes before they hit
// the spill file and reverses that transform on reload. spec.md lists
// external compression codecs as out of scope for the engine's data
// plane, so BlockPool never picks one implicitly; SpillCompression in
// Config is the only way to opt in, for deployments where spill I/O
// volume dominates over the CPU cost of compressing it.
type compressor interface {
	compress(dst, src []byte) []byte
	decompress(src []byte) ([]byte, error)
}

func newCompressor(name string) (compressor, error) {
	switch name {
	case "":
		return nil, nil
	case "s2":
		return s2Compressor{}, nil
	default:
		return nil, fluxerr.New(fluxerr.UsageError, "mem.newCompressor", fmt.Errorf("unknown spill_compression %q", name))
	}
}

// s2Compressor wraps klauspost/compress/s2, the fast Snappy-compatible
// block codec also used for swap-file compression in sneller's storage
// layer.
type s2Compressor struct{}

func (s2Compressor) compress(dst, src []byte) []byte {
	return s2.Encode(dst, src)
}

func (s2Compressor) decompress(src []byte) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, fluxerr.New(fluxerr.IoError, "mem.s2Compressor.decompress", err)
	}
	dst := make([]byte, n)
	return s2.Decode(dst, src)
}

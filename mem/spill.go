package mem

import (
	"fmt"
	"os"
	"sync"
)

// spillFile is the pool's backing scratch file for swapped-out blocks.
// Blocks are written back-to-back with no framing (spec §6: "Block
// on-disk representation"); the spill layer tracks (offset, size) per
// spilled block and reclaims freed extents via a simple free list so the
// file can be reused without unbounded growth. If a compressor is
// configured, the bytes actually written are its compressed form; extent
// sizes always describe what's on disk, not the original block size.
type spillFile struct {
	mu         sync.Mutex
	f          *os.File
	size       int64
	freeList   []extent
	compressor compressor
}

func newSpillFile(dir string, c compressor) (*spillFile, error) {
	if dir == "" {
		return nil, fmt.Errorf("spill_directory must be set when soft_limit_bytes > 0")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "fluxmesh-spill-*.bin")
	if err != nil {
		return nil, err
	}
	// The spill file is ephemeral to the process (spec §6); unlinking it
	// immediately means the space is reclaimed automatically even on a
	// crash, while the open fd keeps it usable for the process lifetime.
	_ = os.Remove(f.Name())

	return &spillFile{f: f, compressor: c}, nil
}

// write appends data to the spill file, reusing a freed extent of
// sufficient size if one exists, and returns its location.
func (s *spillFile) write(data []byte) (extent, error) {
	if s.compressor != nil {
		data = s.compressor.compress(nil, data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.freeList {
		if e.size >= int64(len(data)) {
			s.freeList = append(s.freeList[:i], s.freeList[i+1:]...)
			if _, err := s.f.WriteAt(data, e.offset); err != nil {
				return extent{}, err
			}
			return extent{offset: e.offset, size: int64(len(data))}, nil
		}
	}

	off := s.size
	if _, err := s.f.WriteAt(data, off); err != nil {
		return extent{}, err
	}
	s.size += int64(len(data))
	return extent{offset: off, size: int64(len(data))}, nil
}

// readAt reads exactly e.size on-disk bytes from the given extent into
// buf, decompressing into it first if a compressor is configured.
func (s *spillFile) readAt(buf []byte, e extent) error {
	if s.compressor == nil {
		_, err := s.f.ReadAt(buf[:e.size], e.offset)
		return err
	}
	raw := make([]byte, e.size)
	if _, err := s.f.ReadAt(raw, e.offset); err != nil {
		return err
	}
	decoded, err := s.compressor.decompress(raw)
	if err != nil {
		return err
	}
	copy(buf, decoded)
	return nil
}

// free returns a spilled extent's bytes to the free list for reuse.
func (s *spillFile) free(e extent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeList = append(s.freeList, e)
}

func (s *spillFile) close() error {
	return s.f.Close()
}

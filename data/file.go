package data

import "sync"

// File is an append-only, in-memory sequence of Blocks that can be read
// back any number of times (spec §3 "File"; grounded in the shared-block
// ownership model of friggdb's appender/record list). It keeps an
// exclusive prefix sum over per-block NumItems (prefix) alongside the
// blocks. GetReader always reads from the first block; the File offers no
// seek to the block holding a given item index.
type File struct {
	mu      sync.Mutex
	blocks  []*Block
	prefix  []int // prefix[i] = number of items strictly before blocks[i]
	items   int
	closed  bool
}

// NewFile returns an empty File.
func NewFile() *File { return &File{} }

// Append implements Sink: it takes ownership of blk and records it at the
// end of the File.
func (f *File) Append(blk *Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefix = append(f.prefix, f.items)
	f.blocks = append(f.blocks, blk)
	f.items += blk.NumItems
	return nil
}

// Close marks the File as sealed; no further Append calls are valid.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// NumItems returns the total number of items written to the File.
func (f *File) NumItems() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items
}

// NumBlocks returns the number of Blocks making up the File.
func (f *File) NumBlocks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blocks)
}

// GetReader returns a Reader over the File's full contents. If consume is
// true, blocks are released from the File's own bookkeeping as they are
// read (their storage is handed to the Reader instead of being kept
// around for a second pass); the File itself becomes empty once the
// returned Reader is fully drained.
func (f *File) GetReader(consume bool) *fileSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &fileSource{file: f, consume: consume}
}

// Copy returns a new File sharing this File's Blocks via reference
// counting, at zero copy cost — the idiomatic stand-in for Thrill's
// shared_ptr-based File::Copy.
func (f *File) Copy() *File {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := &File{
		blocks: make([]*Block, len(f.blocks)),
		prefix: append([]int(nil), f.prefix...),
		items:  f.items,
	}
	for i, b := range f.blocks {
		cp.blocks[i] = b.Ref()
	}
	return cp
}

// AppendFrom transfers every block of src into f by reference, without
// touching payload bytes — the whole-block fast path a node's pre-op
// takes when its fused function stack is empty with respect to its
// parent (spec §4.7 "on_pre_op_file"), skipping per-item
// deserialization/serialization entirely.
func (f *File) AppendFrom(src *File) {
	src.mu.Lock()
	blocks := make([]*Block, len(src.blocks))
	for i, b := range src.blocks {
		blocks[i] = b.Ref()
	}
	src.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range blocks {
		f.prefix = append(f.prefix, f.items)
		f.blocks = append(f.blocks, b)
		f.items += b.NumItems
	}
}

// fileSource adapts a File into a Source for Reader[T], optionally
// consuming (releasing) blocks as they are handed out.
type fileSource struct {
	file    *File
	consume bool
	idx     int
}

func (s *fileSource) NextBlock() (*Block, error) {
	s.file.mu.Lock()
	defer s.file.mu.Unlock()
	if s.idx >= len(s.file.blocks) {
		return nil, nil
	}
	blk := s.file.blocks[s.idx]
	s.idx++
	if s.consume {
		if s.idx == len(s.file.blocks) {
			s.file.blocks = nil
			s.file.prefix = nil
			s.file.items = 0
		}
		return blk, nil
	}
	return blk.Ref(), nil
}

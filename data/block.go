// Package data implements the typed block-oriented data plane: the Block
// view, typed Writer/Reader serialization, the append-only File, and the
// cross-thread BlockQueue (spec §3, §4.2-§4.4).
package data

import "github.com/grafana/fluxmesh/mem"

// Block is a shared-ownership view over a mem.ByteBlock carrying the
// byte-range [Begin,End), the number of items whose first byte lies in
// that range, and the byte offset of the first item-start within the
// range (spec §3 "Block (view)"). NumItems == 0 means the block is a
// continuation of an item spanning from the previous block.
type Block struct {
	bb    *mem.ByteBlock
	Begin int
	End   int

	NumItems        int
	FirstItemOffset int

	pinned bool // true once this view's Pin() has succeeded; Release then Unpins
}

// newBlock takes ownership of one reference to bb.
func newBlock(bb *mem.ByteBlock, begin, end, numItems, firstItemOffset int) *Block {
	return &Block{
		bb:              bb,
		Begin:           begin,
		End:             end,
		NumItems:        numItems,
		FirstItemOffset: firstItemOffset,
	}
}

// NewBlock wraps an already-populated, pinned ByteBlock as a Block view,
// for callers outside this package that reconstruct a block's payload
// from an external source (e.g. the network receive path unmarshaling a
// header-prefixed block off the wire). It takes ownership of one
// reference to bb and assumes bb is already pinned, matching the one-off
// always-pinned allocations the pool hands out for such cases.
func NewBlock(bb *mem.ByteBlock, begin, end, numItems, firstItemOffset int) *Block {
	blk := newBlock(bb, begin, end, numItems, firstItemOffset)
	blk.pinned = true
	return blk
}

// Bytes returns the block's payload bytes in [Begin,End). The caller must
// have pinned the underlying ByteBlock (or it must never have been
// eligible for swap, e.g. because it is still held exclusively by a
// writer).
func (blk *Block) Bytes() []byte {
	return blk.bb.Bytes()[blk.Begin:blk.End]
}

// Pin ensures the underlying ByteBlock is resident in memory, reloading it
// from the pool's spill file if necessary. It must be called before Bytes
// on a Block obtained from a Source.
func (blk *Block) Pin() error {
	if blk.pinned {
		return nil
	}
	if _, err := blk.bb.Pool().Pin(blk.bb).Wait(); err != nil {
		return err
	}
	blk.pinned = true
	return nil
}

// Len reports the number of payload bytes this view covers.
func (blk *Block) Len() int { return blk.End - blk.Begin }

// ByteBlock exposes the underlying pool-managed buffer, e.g. for Pin/Unpin
// around a read.
func (blk *Block) ByteBlock() *mem.ByteBlock { return blk.bb }

// Ref shares this view's ownership of the underlying ByteBlock, for
// File.Copy and other code paths that hand the same immutable block to
// more than one reader.
func (blk *Block) Ref() *Block {
	blk.bb.Ref()
	cp := *blk
	return &cp
}

// Release drops this view's reference to the underlying ByteBlock,
// unpinning first if this view had pinned it.
func (blk *Block) Release() {
	if blk.pinned {
		blk.bb.Pool().Unpin(blk.bb)
		blk.pinned = false
	}
	blk.bb.Release()
}

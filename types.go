package rsync

import "bytes"

// ChecksumPair is a weak/strong checksum pair for one basis block. Pairs
// do not carry an offset; two pairs are equal when both halves match, and
// BlockIndex hashes on the weak half only.
type ChecksumPair struct {
	Weak   uint32
	Strong []byte
}

// Equal reports whether p and o carry the same weak sum and byte-identical
// strong sum.
func (p ChecksumPair) Equal(o ChecksumPair) bool {
	return p.Weak == o.Weak && bytes.Equal(p.Strong, o.Strong)
}

// BlockChecksum is a ChecksumPair located within a basis, as produced by a
// Generator.
type BlockChecksum struct {
	ChecksumPair
	// Offset is the byte offset in the basis where this block begins.
	Offset int64
	// Length is the number of bytes this block covers. Only the final
	// block of a basis may be shorter than the configured block length.
	Length int
	// Seq is this block's zero-based sequence number.
	Seq uint64
}

// Delta is a single reconstruction instruction: either a Literal or a
// Copy. Matcher emits a sequence of Deltas that tile the target exactly,
// in strictly non-decreasing WriteOffset order.
type Delta interface {
	// WriteOffset is this delta's destination position in the target.
	WriteOffset() int64
	// BlockLength is the number of target bytes this delta covers.
	BlockLength() int
}

// Literal injects inline data at WriteOffset in the target. Matcher emits
// Literals for target bytes that did not match any basis block.
type Literal struct {
	Data        []byte
	Off         int64
}

func (l Literal) WriteOffset() int64 { return l.Off }
func (l Literal) BlockLength() int   { return len(l.Data) }

// Copy instructs a Rebuilder to copy Length bytes from the basis, starting
// at OldOffset, to the target at NewOffset. Matcher emits a Copy whenever
// the rolling window over the target matches a basis block.
type Copy struct {
	OldOffset int64
	NewOffset int64
	Length    int
}

func (c Copy) WriteOffset() int64 { return c.NewOffset }
func (c Copy) BlockLength() int   { return c.Length }

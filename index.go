package rsync

import "bytes"

// indexEntry is one (strong sum -> location) mapping within a weak-sum
// bucket.
type indexEntry struct {
	strong   []byte
	location int64
}

// BlockIndex is a two-key probabilistic index: a map from 32-bit weak sum
// to a small collection of (strong digest, basis offset) entries. A flat
// slice per bucket is enough here, since weak-sum collision buckets stay
// small in practice.
//
// Lookups go in two steps: ContainsWeak is a single map lookup on the
// full 32-bit weak sum, and Lookup then compares strong digests within
// that weak sum's bucket. There is no separate probe on the low 16 bits
// of the weak sum. Neither step allocates.
type BlockIndex struct {
	buckets map[uint32][]indexEntry
	count   int
}

// NewBlockIndex returns an empty BlockIndex.
func NewBlockIndex() *BlockIndex {
	return &BlockIndex{buckets: make(map[uint32][]indexEntry)}
}

// Insert adds a mapping from pair to location. When multiple basis blocks
// share a (weak, strong) pair, later insertions are found first by
// Lookup (last-inserted-wins), which is sufficient since callers only
// need the returned bytes to be byte-identical.
func (idx *BlockIndex) Insert(pair ChecksumPair, location int64) {
	bucket := idx.buckets[pair.Weak]
	entry := indexEntry{strong: append([]byte(nil), pair.Strong...), location: location}
	idx.buckets[pair.Weak] = append([]indexEntry{entry}, bucket...)
	idx.count++
}

// ContainsWeak reports whether any entry carries the given weak sum. This
// is the O(1) fast path that lets a Matcher skip strong-digest
// computation entirely for the common case of no match.
func (idx *BlockIndex) ContainsWeak(weak uint32) bool {
	_, ok := idx.buckets[weak]
	return ok
}

// Lookup returns the basis location for pair, confirming with a
// byte-exact comparison of the (possibly truncated) strong digests. It
// reports false if no entry matches both the weak and strong sums.
func (idx *BlockIndex) Lookup(pair ChecksumPair) (int64, bool) {
	bucket, ok := idx.buckets[pair.Weak]
	if !ok {
		return 0, false
	}
	for _, e := range bucket {
		if bytes.Equal(e.strong, pair.Strong) {
			return e.location, true
		}
	}
	return 0, false
}

// Clear removes all entries.
func (idx *BlockIndex) Clear() {
	idx.buckets = make(map[uint32][]indexEntry)
	idx.count = 0
}

// Len returns the number of entries inserted (not the number of
// buckets).
func (idx *BlockIndex) Len() int {
	return idx.count
}

// BuildBlockIndex is a convenience constructor building an index from a
// slice of BlockChecksums, as produced by a Generator.
func BuildBlockIndex(sums []BlockChecksum) *BlockIndex {
	idx := NewBlockIndex()
	for _, s := range sums {
		idx.Insert(s.ChecksumPair, s.Offset)
	}
	return idx
}

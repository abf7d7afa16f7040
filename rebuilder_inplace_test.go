package rsync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hooklift/assert"
)

func openInPlace(t *testing.T, dir, name string, contents []byte) *os.File {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.Ok(t, os.WriteFile(path, contents, 0o644))
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	assert.Ok(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// TestRebuildInPlaceNonOverlapping exercises the acyclic path: a lone
// Copy delta has no other Copy to conflict with, so it always lands in
// the topological sort's finished list.
func TestRebuildInPlaceNonOverlapping(t *testing.T) {
	dir := t.TempDir()
	f := openInPlace(t, dir, "target", []byte("AAAABBBBCCCCDDDD"))

	deltas := []Delta{
		Copy{OldOffset: 0, NewOffset: 12, Length: 4}, // AAAA -> end
		Literal{Data: []byte("XXXX"), Off: 4},
		Literal{Data: []byte("YYYY"), Off: 8},
	}
	assert.Ok(t, RebuildInPlace(f, deltas))

	got, err := os.ReadFile(f.Name())
	assert.Ok(t, err)
	assert.Equals(t, []byte("AAAAXXXXYYYYAAAA"), got)
}

// TestRebuildInPlaceSwapWithLiterals combines the cycle-breaking path
// with ordinary Literal deltas: swapping two halves of the file forms
// the same 2-node conflict cycle as TestRebuildInPlaceCycle, interleaved
// with independent Literal writes in between.
func TestRebuildInPlaceSwapWithLiterals(t *testing.T) {
	dir := t.TempDir()
	f := openInPlace(t, dir, "target", []byte("AAAABBBBCCCCDDDD"))

	deltas := []Delta{
		Copy{OldOffset: 0, NewOffset: 12, Length: 4}, // AAAA -> end
		Copy{OldOffset: 12, NewOffset: 0, Length: 4}, // DDDD -> start
		Literal{Data: []byte("XXXX"), Off: 4},
		Literal{Data: []byte("YYYY"), Off: 8},
	}
	assert.Ok(t, RebuildInPlace(f, deltas))

	got, err := os.ReadFile(f.Name())
	assert.Ok(t, err)
	assert.Equals(t, []byte("DDDDXXXXYYYYAAAA"), got)
}

// TestRebuildInPlaceCycle covers an in-place overlap scenario: swapping
// two adjacent, equal-length halves of a file forms a 2-node conflict
// cycle (each half's destination overlaps the other's source), which the
// topological sort cannot order and must instead resolve by snapshotting
// the half whose visit finds the back edge into a Literal before any
// bytes are overwritten, then copying the other half normally.
func TestRebuildInPlaceCycle(t *testing.T) {
	dir := t.TempDir()
	f := openInPlace(t, dir, "target", []byte("123456"))

	deltas := []Delta{
		Copy{OldOffset: 3, NewOffset: 0, Length: 3}, // "456" -> front
		Copy{OldOffset: 0, NewOffset: 3, Length: 3}, // "123" -> back
	}
	assert.Ok(t, RebuildInPlace(f, deltas))

	got, err := os.ReadFile(f.Name())
	assert.Ok(t, err)
	assert.Equals(t, []byte("456123"), got)
}

// TestRebuildInPlaceGrows checks that a reconstruction longer than the
// original file extends it correctly.
func TestRebuildInPlaceGrows(t *testing.T) {
	dir := t.TempDir()
	f := openInPlace(t, dir, "target", []byte("AB"))

	deltas := []Delta{
		Copy{OldOffset: 0, NewOffset: 0, Length: 2},
		Literal{Data: []byte("CDEF"), Off: 2},
	}
	assert.Ok(t, RebuildInPlace(f, deltas))

	got, err := os.ReadFile(f.Name())
	assert.Ok(t, err)
	assert.Equals(t, []byte("ABCDEF"), got)
}

// TestRebuildInPlaceShrinks checks that a reconstruction shorter than the
// original file truncates it.
func TestRebuildInPlaceShrinks(t *testing.T) {
	dir := t.TempDir()
	f := openInPlace(t, dir, "target", []byte("ABCDEFGH"))

	deltas := []Delta{
		Literal{Data: []byte("AB"), Off: 0},
	}
	assert.Ok(t, RebuildInPlace(f, deltas))

	got, err := os.ReadFile(f.Name())
	assert.Ok(t, err)
	assert.Equals(t, []byte("AB"), got)
}

// TestRebuildInPlaceEmptyTargetRejectsCopy covers the empty-file path:
// reconstructing into a brand-new (empty) file cannot honor a Copy
// delta, since there is no prior content to read from.
func TestRebuildInPlaceEmptyTargetRejectsCopy(t *testing.T) {
	dir := t.TempDir()
	f := openInPlace(t, dir, "target", nil)

	deltas := []Delta{Copy{OldOffset: 0, NewOffset: 0, Length: 4}}
	err := RebuildInPlace(f, deltas)
	assert.Cond(t, err == ErrBasisMissing, "expected ErrBasisMissing")
}

func TestRebuildInPlaceEmptyTargetAcceptsLiterals(t *testing.T) {
	dir := t.TempDir()
	f := openInPlace(t, dir, "target", nil)

	deltas := []Delta{Literal{Data: []byte("hello"), Off: 0}}
	assert.Ok(t, RebuildInPlace(f, deltas))

	got, err := os.ReadFile(f.Name())
	assert.Ok(t, err)
	assert.Equals(t, []byte("hello"), got)
}

func TestConflictPredicate(t *testing.T) {
	// Disjoint ranges never conflict.
	a := Copy{OldOffset: 0, NewOffset: 100, Length: 10}
	b := Copy{OldOffset: 200, NewOffset: 300, Length: 10}
	assert.Cond(t, !conflict(a, b), "disjoint ranges must not conflict")

	// c's write range overlaps d's read range.
	c := Copy{OldOffset: 50, NewOffset: 10, Length: 10}
	d := Copy{OldOffset: 15, NewOffset: 900, Length: 10}
	assert.Cond(t, conflict(c, d), "overlapping write/read ranges must conflict")
}

package rsync

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// sortByWriteOffset returns a copy of deltas ordered by ascending
// WriteOffset.
func sortByWriteOffset(deltas []Delta) []Delta {
	sorted := make([]Delta, len(deltas))
	copy(sorted, deltas)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WriteOffset() < sorted[j].WriteOffset()
	})
	return sorted
}

// readCopy reads a Copy delta's bytes from basis, translating a nil basis
// or a short read into the package's sentinel errors.
func readCopy(basis io.ReaderAt, c Copy) ([]byte, error) {
	if basis == nil {
		return nil, ErrBasisMissing
	}
	buf := make([]byte, c.Length)
	_, err := basis.ReadAt(buf, c.OldOffset)
	if err != nil {
		if err == io.EOF {
			return nil, ErrBasisTooShort
		}
		return nil, ioError(err, "rebuilder: reading basis at offset %d", c.OldOffset)
	}
	return buf, nil
}

// Rebuild reconstructs a target sequentially into out, applying deltas in
// ascending WriteOffset order. basis may be nil only if deltas contains
// no Copy values; a Copy encountered with a nil basis returns
// ErrBasisMissing, and a Copy reading past the end of basis returns
// ErrBasisTooShort.
func Rebuild(out io.Writer, basis io.ReaderAt, deltas []Delta) error {
	for _, d := range sortByWriteOffset(deltas) {
		switch v := d.(type) {
		case Literal:
			if _, err := out.Write(v.Data); err != nil {
				return ioError(err, "rebuilder: writing literal at offset %d", v.Off)
			}
		case Copy:
			buf, err := readCopy(basis, v)
			if err != nil {
				return err
			}
			if _, err := out.Write(buf); err != nil {
				return ioError(err, "rebuilder: writing copy at offset %d", v.NewOffset)
			}
		default:
			return errors.Errorf("rebuilder: unrecognized delta type %T", d)
		}
	}
	return nil
}

// RebuildBytes reconstructs a target into a new byte slice, given the
// basis as a byte slice.
func RebuildBytes(basis []byte, deltas []Delta) ([]byte, error) {
	var out bytes.Buffer
	var reader io.ReaderAt
	if basis != nil {
		reader = bytes.NewReader(basis)
	}
	if err := Rebuild(&out, reader, deltas); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// RebuildAt reconstructs a target into out at each delta's own
// WriteOffset, rather than by sequential appends. Deltas are applied in
// the order given, without sorting; since each is written at its own
// offset, that order does not change the result.
func RebuildAt(out io.WriterAt, basis io.ReaderAt, deltas []Delta) error {
	for _, d := range deltas {
		switch v := d.(type) {
		case Literal:
			if _, err := out.WriteAt(v.Data, v.Off); err != nil {
				return ioError(err, "rebuilder: writing literal at offset %d", v.Off)
			}
		case Copy:
			buf, err := readCopy(basis, v)
			if err != nil {
				return err
			}
			if _, err := out.WriteAt(buf, v.NewOffset); err != nil {
				return ioError(err, "rebuilder: writing copy at offset %d", v.NewOffset)
			}
		default:
			return errors.Errorf("rebuilder: unrecognized delta type %T", d)
		}
	}
	return nil
}

// RebuildFile reconstructs oldPath's target into newPath, an
// out-of-place random-access reconstruction across two paths on disk.
// oldPath and newPath must resolve to different files, or ErrSameFile is
// returned; oldPath may be missing entirely if deltas contains no Copy
// values.
func RebuildFile(oldPath, newPath string, deltas []Delta) error {
	oldAbs, err := filepath.Abs(oldPath)
	if err != nil {
		return ioError(err, "rebuilder: resolving basis path %q", oldPath)
	}
	newAbs, err := filepath.Abs(newPath)
	if err != nil {
		return ioError(err, "rebuilder: resolving target path %q", newPath)
	}
	if oldAbs == newAbs {
		return ErrSameFile
	}

	newFile, err := os.OpenFile(newPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ioError(err, "rebuilder: creating target %q", newPath)
	}
	defer newFile.Close()

	var basis io.ReaderAt
	oldFile, err := os.Open(oldPath)
	if err == nil {
		defer oldFile.Close()
		basis = oldFile
	}

	return RebuildAt(newFile, basis, deltas)
}

package rsync

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// RebuildInPlace reconstructs a target by overwriting file with its own
// reconstruction. Because a Copy delta may read a region that a different
// Copy is about to overwrite, this builds a conflict digraph (two Copy
// deltas conflict when one's new range overlaps the other's old range),
// breaks any cycles with a three-color depth-first search, reads the
// cycle members' source bytes into Literals before any write, executes
// the acyclic remainder in topological order, and then writes all
// Literals.
//
// If file is empty (a fresh target with no prior basis) and deltas
// contains any Copy, ErrBasisMissing is returned; a target with no Copy
// deltas at all reconstructs correctly regardless of file's prior
// contents.
func RebuildInPlace(file *os.File, deltas []Delta) error {
	info, err := file.Stat()
	if err != nil {
		return ioError(err, "rebuilder: stat target")
	}
	copyOnly := info.Size() == 0

	var copies []Copy
	var literals []Literal
	var newLength int64

	for _, d := range deltas {
		switch v := d.(type) {
		case Copy:
			if copyOnly {
				return ErrBasisMissing
			}
			copies = append(copies, v)
			if end := v.NewOffset + int64(v.Length); end > newLength {
				newLength = end
			}
		case Literal:
			literals = append(literals, v)
			if end := v.Off + int64(len(v.Data)); end > newLength {
				newLength = end
			}
		default:
			return errors.Errorf("rebuilder: unrecognized delta type %T", d)
		}
	}

	if copyOnly {
		for _, l := range literals {
			if _, err := file.WriteAt(l.Data, l.Off); err != nil {
				return ioError(err, "rebuilder: writing literal at offset %d", l.Off)
			}
		}
		return truncateTo(file, info.Size(), newLength)
	}

	adj := buildConflictGraph(copies)
	finished, cycleNodes := topologicalSort(copies, adj)

	for _, c := range cycleNodes {
		buf, err := readInPlace(file, c)
		if err != nil {
			return err
		}
		literals = append(literals, Literal{Data: buf, Off: c.NewOffset})
	}

	for _, c := range finished {
		buf, err := readInPlace(file, c)
		if err != nil {
			return err
		}
		if _, err := file.WriteAt(buf, c.NewOffset); err != nil {
			return ioError(err, "rebuilder: writing copy at offset %d", c.NewOffset)
		}
	}

	for _, l := range literals {
		if _, err := file.WriteAt(l.Data, l.Off); err != nil {
			return ioError(err, "rebuilder: writing literal at offset %d", l.Off)
		}
	}

	return truncateTo(file, info.Size(), newLength)
}

func readInPlace(file *os.File, c Copy) ([]byte, error) {
	buf := make([]byte, c.Length)
	if _, err := file.ReadAt(buf, c.OldOffset); err != nil {
		if err == io.EOF {
			return nil, ErrBasisTooShort
		}
		return nil, ioError(err, "rebuilder: reading basis at offset %d", c.OldOffset)
	}
	return buf, nil
}

// truncateTo shrinks file to newLength only when the target reconstructs
// to something shorter than file's prior contents; the file is never
// grown this way, since every byte up to newLength is written explicitly
// by a Copy or Literal above.
func truncateTo(file *os.File, oldLength, newLength int64) error {
	if oldLength > newLength {
		if err := file.Truncate(newLength); err != nil {
			return ioError(err, "rebuilder: truncating target to %d bytes", newLength)
		}
	}
	return nil
}

// conflict reports whether o1's write range overlaps o2's read range,
// meaning o1 must not be written before o2 has been read (or relocated).
func conflict(o1, o2 Copy) bool {
	o1Start, o1End := o1.NewOffset, o1.NewOffset+int64(o1.Length)
	o2Start, o2End := o2.OldOffset, o2.OldOffset+int64(o2.Length)
	return o1Start <= o2End && o2Start <= o1End
}

func buildConflictGraph(copies []Copy) map[Copy][]Copy {
	adj := make(map[Copy][]Copy, len(copies))
	for _, o1 := range copies {
		for _, o2 := range copies {
			if o1 == o2 {
				continue
			}
			if conflict(o1, o2) {
				adj[o1] = append(adj[o1], o2)
			}
		}
	}
	return adj
}

type dfsColor int

const (
	dfsWhite dfsColor = iota
	dfsGray
	dfsBlack
)

// topologicalSort orders copies so that every edge o1 -> o2 (o1 conflicts
// with o2) has o2 processed before o1, using the classic depth-first-search
// topological sort. Nodes on a back edge cannot be ordered acyclically and
// are returned separately as cycleNodes, to be applied as plain reads into
// Literals instead.
func topologicalSort(copies []Copy, adj map[Copy][]Copy) (finished, cycleNodes []Copy) {
	colors := make(map[Copy]dfsColor, len(copies))
	inCycle := make(map[Copy]bool)

	var visit func(u Copy)
	visit = func(u Copy) {
		colors[u] = dfsGray
		for _, v := range adj[u] {
			switch colors[v] {
			case dfsWhite:
				visit(v)
			case dfsGray:
				inCycle[u] = true
			}
		}
		colors[u] = dfsBlack
		if inCycle[u] {
			cycleNodes = append(cycleNodes, u)
		} else {
			finished = append(finished, u)
		}
	}

	for _, u := range copies {
		if colors[u] == dfsWhite {
			visit(u)
		}
	}
	return finished, cycleNodes
}

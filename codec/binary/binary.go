// Package binary is a compact fixed-field wire encoding for
// BlockChecksum and Delta streams, built directly on encoding/binary,
// using length-prefixed, magic-numbered records written with
// binary.Write(w, binary.BigEndian, ...).
//
// It declares that Delta streams are to arrive (and be replayed) in
// ascending write-offset order: Codec.Ordered reports true. Each Delta
// record still carries its own offsets, and EncodeDeltas/DecodeDeltas
// keep whatever order they are given.
package binary

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	rsync "github.com/csm/rsync"
)

const (
	checksumMagic uint32 = 0x5253434b // "RSCK"
	deltaMagic    uint32 = 0x52534458 // "RSDX"

	more    uint8 = 1
	lastOne uint8 = 0

	opLiteral uint8 = 1
	opCopy    uint8 = 2
)

// Codec implements rsync.ChecksumEncoder, rsync.ChecksumDecoder,
// rsync.DeltaEncoder and rsync.DeltaDecoder.
type Codec struct{}

// New returns a Codec.
func New() *Codec { return &Codec{} }

// EncodeChecksums writes sums to w, one fixed-field record per checksum.
func (Codec) EncodeChecksums(w io.Writer, sums []rsync.BlockChecksum) error {
	if err := binary.Write(w, binary.BigEndian, checksumMagic); err != nil {
		return errors.Wrap(err, "binary: writing checksum magic")
	}
	for _, s := range sums {
		if len(s.Strong) > 255 {
			return errors.Errorf("binary: strong sum length %d exceeds 255-byte field", len(s.Strong))
		}
		if err := binary.Write(w, binary.BigEndian, more); err != nil {
			return errors.Wrap(err, "binary: writing record marker")
		}
		if err := binary.Write(w, binary.BigEndian, s.Weak); err != nil {
			return errors.Wrap(err, "binary: writing weak sum")
		}
		if err := binary.Write(w, binary.BigEndian, uint8(len(s.Strong))); err != nil {
			return errors.Wrap(err, "binary: writing strong sum length")
		}
		if _, err := w.Write(s.Strong); err != nil {
			return errors.Wrap(err, "binary: writing strong sum")
		}
		if err := binary.Write(w, binary.BigEndian, s.Offset); err != nil {
			return errors.Wrap(err, "binary: writing offset")
		}
		if err := binary.Write(w, binary.BigEndian, uint32(s.Length)); err != nil {
			return errors.Wrap(err, "binary: writing length")
		}
		if err := binary.Write(w, binary.BigEndian, s.Seq); err != nil {
			return errors.Wrap(err, "binary: writing sequence number")
		}
	}
	return binary.Write(w, binary.BigEndian, lastOne)
}

// DecodeChecksums reads back what EncodeChecksums wrote.
func (Codec) DecodeChecksums(r io.Reader) ([]rsync.BlockChecksum, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, errors.Wrap(err, "binary: reading checksum magic")
	}
	if magic != checksumMagic {
		return nil, errors.Errorf("binary: bad checksum stream magic %#x", magic)
	}

	var sums []rsync.BlockChecksum
	for {
		var marker uint8
		if err := binary.Read(r, binary.BigEndian, &marker); err != nil {
			return sums, errors.Wrap(err, "binary: reading record marker")
		}
		if marker == lastOne {
			return sums, nil
		}

		var s rsync.BlockChecksum
		if err := binary.Read(r, binary.BigEndian, &s.Weak); err != nil {
			return sums, errors.Wrap(err, "binary: reading weak sum")
		}
		var strongLen uint8
		if err := binary.Read(r, binary.BigEndian, &strongLen); err != nil {
			return sums, errors.Wrap(err, "binary: reading strong sum length")
		}
		s.Strong = make([]byte, strongLen)
		if _, err := io.ReadFull(r, s.Strong); err != nil {
			return sums, errors.Wrap(err, "binary: reading strong sum")
		}
		if err := binary.Read(r, binary.BigEndian, &s.Offset); err != nil {
			return sums, errors.Wrap(err, "binary: reading offset")
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return sums, errors.Wrap(err, "binary: reading length")
		}
		s.Length = int(length)
		if err := binary.Read(r, binary.BigEndian, &s.Seq); err != nil {
			return sums, errors.Wrap(err, "binary: reading sequence number")
		}
		sums = append(sums, s)
	}
}

// Ordered reports true: this encoding declares that deltas are replayed
// in ascending write-offset order.
func (Codec) Ordered() bool { return true }

// EncodeDeltas writes deltas to w in the order given, one opcode-tagged
// record per delta.
func (Codec) EncodeDeltas(w io.Writer, deltas []rsync.Delta) error {
	if err := binary.Write(w, binary.BigEndian, deltaMagic); err != nil {
		return errors.Wrap(err, "binary: writing delta magic")
	}
	for _, d := range deltas {
		switch v := d.(type) {
		case rsync.Literal:
			if err := binary.Write(w, binary.BigEndian, opLiteral); err != nil {
				return errors.Wrap(err, "binary: writing literal opcode")
			}
			if err := binary.Write(w, binary.BigEndian, v.Off); err != nil {
				return errors.Wrap(err, "binary: writing literal offset")
			}
			if err := binary.Write(w, binary.BigEndian, uint32(len(v.Data))); err != nil {
				return errors.Wrap(err, "binary: writing literal length")
			}
			if _, err := w.Write(v.Data); err != nil {
				return errors.Wrap(err, "binary: writing literal data")
			}
		case rsync.Copy:
			if err := binary.Write(w, binary.BigEndian, opCopy); err != nil {
				return errors.Wrap(err, "binary: writing copy opcode")
			}
			if err := binary.Write(w, binary.BigEndian, v.OldOffset); err != nil {
				return errors.Wrap(err, "binary: writing copy old offset")
			}
			if err := binary.Write(w, binary.BigEndian, v.NewOffset); err != nil {
				return errors.Wrap(err, "binary: writing copy new offset")
			}
			if err := binary.Write(w, binary.BigEndian, uint32(v.Length)); err != nil {
				return errors.Wrap(err, "binary: writing copy length")
			}
		default:
			return errors.Errorf("binary: unrecognized delta type %T", d)
		}
	}
	return binary.Write(w, binary.BigEndian, lastOne)
}

// DecodeDeltas reads back what EncodeDeltas wrote.
func (Codec) DecodeDeltas(r io.Reader) ([]rsync.Delta, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, errors.Wrap(err, "binary: reading delta magic")
	}
	if magic != deltaMagic {
		return nil, errors.Errorf("binary: bad delta stream magic %#x", magic)
	}

	var deltas []rsync.Delta
	for {
		var op uint8
		if err := binary.Read(r, binary.BigEndian, &op); err != nil {
			return deltas, errors.Wrap(err, "binary: reading opcode")
		}
		switch op {
		case lastOne:
			return deltas, nil
		case opLiteral:
			var off int64
			if err := binary.Read(r, binary.BigEndian, &off); err != nil {
				return deltas, errors.Wrap(err, "binary: reading literal offset")
			}
			var length uint32
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return deltas, errors.Wrap(err, "binary: reading literal length")
			}
			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				return deltas, errors.Wrap(err, "binary: reading literal data")
			}
			deltas = append(deltas, rsync.Literal{Data: data, Off: off})
		case opCopy:
			var oldOff, newOff int64
			if err := binary.Read(r, binary.BigEndian, &oldOff); err != nil {
				return deltas, errors.Wrap(err, "binary: reading copy old offset")
			}
			if err := binary.Read(r, binary.BigEndian, &newOff); err != nil {
				return deltas, errors.Wrap(err, "binary: reading copy new offset")
			}
			var length uint32
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return deltas, errors.Wrap(err, "binary: reading copy length")
			}
			deltas = append(deltas, rsync.Copy{OldOffset: oldOff, NewOffset: newOff, Length: int(length)})
		default:
			return deltas, errors.Errorf("binary: unrecognized opcode %#x", op)
		}
	}
}

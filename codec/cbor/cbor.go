// Package cbor is a self-describing wire encoding for BlockChecksum and
// Delta streams, built on github.com/fxamacker/cbor/v2 using Core
// Deterministic Encoding. Every Delta record carries its own offsets, and
// unlike codec/binary it declares no ordering requirement for Delta
// streams.
package cbor

import (
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	rsync "github.com/csm/rsync"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cbor: decoder initialization failed: " + err.Error())
	}
}

// Codec implements rsync.ChecksumEncoder, rsync.ChecksumDecoder,
// rsync.DeltaEncoder and rsync.DeltaDecoder.
type Codec struct{}

// New returns a Codec.
func New() *Codec { return &Codec{} }

type wireChecksum struct {
	Weak   uint32 `cbor:"1,keyasint"`
	Strong []byte `cbor:"2,keyasint"`
	Offset int64  `cbor:"3,keyasint"`
	Length int    `cbor:"4,keyasint"`
	Seq    uint64 `cbor:"5,keyasint"`
}

// EncodeChecksums writes sums to w as a single CBOR array item.
func (Codec) EncodeChecksums(w io.Writer, sums []rsync.BlockChecksum) error {
	wire := make([]wireChecksum, len(sums))
	for i, s := range sums {
		wire[i] = wireChecksum{Weak: s.Weak, Strong: s.Strong, Offset: s.Offset, Length: s.Length, Seq: s.Seq}
	}
	if err := encMode.NewEncoder(w).Encode(wire); err != nil {
		return errors.Wrap(err, "cbor: encoding checksums")
	}
	return nil
}

// DecodeChecksums reads back what EncodeChecksums wrote.
func (Codec) DecodeChecksums(r io.Reader) ([]rsync.BlockChecksum, error) {
	var wire []wireChecksum
	if err := decMode.NewDecoder(r).Decode(&wire); err != nil {
		return nil, errors.Wrap(err, "cbor: decoding checksums")
	}
	sums := make([]rsync.BlockChecksum, len(wire))
	for i, w := range wire {
		sums[i] = rsync.BlockChecksum{
			ChecksumPair: rsync.ChecksumPair{Weak: w.Weak, Strong: w.Strong},
			Offset:       w.Offset,
			Length:       w.Length,
			Seq:          w.Seq,
		}
	}
	return sums, nil
}

const (
	kindLiteral = "literal"
	kindCopy    = "copy"
)

type wireDelta struct {
	Kind      string `cbor:"1,keyasint"`
	Offset    int64  `cbor:"2,keyasint,omitempty"`
	Data      []byte `cbor:"3,keyasint,omitempty"`
	OldOffset int64  `cbor:"4,keyasint,omitempty"`
	NewOffset int64  `cbor:"5,keyasint,omitempty"`
	Length    int    `cbor:"6,keyasint,omitempty"`
}

// Ordered reports false: every wireDelta carries its own destination
// offset, so decoding does not depend on arrival order.
func (Codec) Ordered() bool { return false }

// EncodeDeltas writes deltas to w as a single CBOR array item, in
// whatever order they are given.
func (Codec) EncodeDeltas(w io.Writer, deltas []rsync.Delta) error {
	wire := make([]wireDelta, len(deltas))
	for i, d := range deltas {
		switch v := d.(type) {
		case rsync.Literal:
			wire[i] = wireDelta{Kind: kindLiteral, Offset: v.Off, Data: v.Data}
		case rsync.Copy:
			wire[i] = wireDelta{Kind: kindCopy, OldOffset: v.OldOffset, NewOffset: v.NewOffset, Length: v.Length}
		default:
			return errors.Errorf("cbor: unrecognized delta type %T", d)
		}
	}
	if err := encMode.NewEncoder(w).Encode(wire); err != nil {
		return errors.Wrap(err, "cbor: encoding deltas")
	}
	return nil
}

// DecodeDeltas reads back what EncodeDeltas wrote.
func (Codec) DecodeDeltas(r io.Reader) ([]rsync.Delta, error) {
	var wire []wireDelta
	if err := decMode.NewDecoder(r).Decode(&wire); err != nil {
		return nil, errors.Wrap(err, "cbor: decoding deltas")
	}
	deltas := make([]rsync.Delta, len(wire))
	for i, w := range wire {
		switch w.Kind {
		case kindLiteral:
			deltas[i] = rsync.Literal{Data: w.Data, Off: w.Offset}
		case kindCopy:
			deltas[i] = rsync.Copy{OldOffset: w.OldOffset, NewOffset: w.NewOffset, Length: w.Length}
		default:
			return deltas, errors.Errorf("cbor: unrecognized delta kind %q", w.Kind)
		}
	}
	return deltas, nil
}

package binary

import (
	"bytes"
	"testing"

	"github.com/hooklift/assert"

	rsync "github.com/csm/rsync"
)

func TestChecksumRoundTrip(t *testing.T) {
	sums := []rsync.BlockChecksum{
		{ChecksumPair: rsync.ChecksumPair{Weak: 1, Strong: []byte{0xDE, 0xAD}}, Offset: 0, Length: 700, Seq: 0},
		{ChecksumPair: rsync.ChecksumPair{Weak: 2, Strong: []byte{0xBE, 0xEF}}, Offset: 700, Length: 300, Seq: 1},
	}

	var buf bytes.Buffer
	codec := New()
	assert.Ok(t, codec.EncodeChecksums(&buf, sums))

	got, err := codec.DecodeChecksums(&buf)
	assert.Ok(t, err)
	assert.Equals(t, sums, got)
}

func TestChecksumRoundTripEmpty(t *testing.T) {
	var buf bytes.Buffer
	codec := New()
	assert.Ok(t, codec.EncodeChecksums(&buf, nil))

	got, err := codec.DecodeChecksums(&buf)
	assert.Ok(t, err)
	assert.Equals(t, 0, len(got))
}

func TestChecksumBadMagic(t *testing.T) {
	codec := New()
	_, err := codec.DecodeChecksums(bytes.NewReader([]byte{0, 0, 0, 0}))
	assert.Cond(t, err != nil, "expected an error decoding a bad magic number")
}

func TestDeltaRoundTrip(t *testing.T) {
	deltas := []rsync.Delta{
		rsync.Literal{Data: []byte("hello"), Off: 0},
		rsync.Copy{OldOffset: 100, NewOffset: 5, Length: 700},
	}

	var buf bytes.Buffer
	codec := New()
	assert.Cond(t, codec.Ordered(), "binary codec should require ordered delta streams")
	assert.Ok(t, codec.EncodeDeltas(&buf, deltas))

	got, err := codec.DecodeDeltas(&buf)
	assert.Ok(t, err)
	assert.Equals(t, deltas, got)
}

package rsync

import (
	"math/rand"
	"testing"

	"github.com/hooklift/assert"
)

// TestRollEqualsRecompute exercises the core rolling checksum property:
// rolling the window forward one byte at a time must produce the same
// value as recomputing Check from scratch over the same window, for
// every offset in a long buffer.
func TestRollEqualsRecompute(t *testing.T) {
	rand.Seed(1)
	buf := make([]byte, 4096)
	rand.Read(buf)

	const blockLen = 64
	c := NewChecksum32(RsyncCharOffset)
	c.Check(buf[:blockLen], 0, blockLen)

	for i := 1; i+blockLen <= len(buf); i++ {
		c.Roll(buf[i+blockLen-1])

		want := NewChecksum32(RsyncCharOffset)
		want.Check(buf[i:i+blockLen], 0, blockLen)

		assert.Equals(t, want.Value(), c.Value())
	}
}

// TestRollEqualsRecomputeLibrsyncOffset repeats the same property with
// librsync's historical char offset, to make sure the invariant holds
// independent of that tunable.
func TestRollEqualsRecomputeLibrsyncOffset(t *testing.T) {
	rand.Seed(2)
	buf := make([]byte, 2048)
	rand.Read(buf)

	const blockLen = 32
	c := NewChecksum32(LibrsyncCharOffset)
	c.Check(buf[:blockLen], 0, blockLen)

	for i := 1; i+blockLen <= len(buf); i++ {
		c.Roll(buf[i+blockLen-1])

		want := NewChecksum32(LibrsyncCharOffset)
		want.Check(buf[i:i+blockLen], 0, blockLen)

		assert.Equals(t, want.Value(), c.Value())
	}
}

// TestTrimShrinksWindow checks that Trim's result matches recomputing
// Check over the shortened window.
func TestTrimShrinksWindow(t *testing.T) {
	buf := []byte("the quick brown fox jumps over the lazy dog")
	c := NewChecksum32(RsyncCharOffset)
	c.Check(buf, 0, len(buf))

	for i := 1; i < len(buf); i++ {
		c.Trim()
		want := NewChecksum32(RsyncCharOffset)
		want.Check(buf[i:], 0, len(buf)-i)
		assert.Equals(t, want.Value(), c.Value())
	}
}

func TestChecksum32Clone(t *testing.T) {
	buf := []byte("0123456789")
	c := NewChecksum32(RsyncCharOffset)
	c.Check(buf, 0, len(buf))

	clone := c.Clone()
	c.Roll('X')
	assert.Cond(t, clone.Value() != c.Value(), "rolling the original must not affect the clone")

	want := NewChecksum32(RsyncCharOffset)
	want.Check(buf, 0, len(buf))
	assert.Equals(t, want.Value(), clone.Value())
}

func TestChecksum32EmptyBlock(t *testing.T) {
	c := NewChecksum32(RsyncCharOffset)
	c.Check(nil, 0, 0)
	assert.Equals(t, uint32(0), c.Value())
}

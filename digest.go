package rsync

import (
	"crypto/md5"
	"hash"

	"github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/md4"
)

// StrongDigest is the cryptographic (or high-quality non-cryptographic)
// block digest capability set: reset, feed bytes, read back the digest.
// Any hash.Hash satisfies most of this already; hashDigest below adapts
// one into a StrongDigest.
type StrongDigest interface {
	Reset()
	Write(p []byte) (int, error)
	// Digest returns the full-size digest of everything written since the
	// last Reset. It does not itself apply seed mixing or truncation;
	// callers use sumStrong for that.
	Digest() []byte
	// Size is the natural digest size in bytes, before truncation by
	// Config.StrongSumLength.
	Size() int
}

// hashDigest adapts a standard library/ecosystem hash.Hash into a
// StrongDigest.
type hashDigest struct {
	hash.Hash
}

func (h hashDigest) Digest() []byte { return h.Sum(nil) }

// NewMD4Digest returns the traditional rsync strong-sum algorithm.
func NewMD4Digest() StrongDigest { return hashDigest{md4.New()} }

// NewMD5Digest returns MD5 as a strong digest.
func NewMD5Digest() StrongDigest { return hashDigest{md5.New()} }

// NewSHA256Digest returns an AVX2/SHA-NI accelerated SHA-256, useful when
// the basis is large enough that stdlib crypto/sha256 becomes the
// bottleneck in Generator/Matcher.
func NewSHA256Digest() StrongDigest { return hashDigest{sha256.New()} }

// NewBLAKE3Digest returns BLAKE3, a modern high-throughput cryptographic
// hash offered as an alternative to MD4/MD5/SHA-256.
func NewBLAKE3Digest() StrongDigest { return hashDigest{blake3.New()} }

// xxh3Digest adapts zeebo/xxh3's streaming hasher, which does not
// implement hash.Hash, into a StrongDigest.
type xxh3Digest struct {
	h *xxh3.Hasher
}

// NewXXH3Digest returns a non-cryptographic 64-bit digest for use when
// both sides configure it explicitly. It offers no collision resistance
// guarantees; use only when both parties trust their basis/target inputs.
func NewXXH3Digest() StrongDigest { return &xxh3Digest{h: xxh3.New()} }

func (x *xxh3Digest) Reset()                     { x.h.Reset() }
func (x *xxh3Digest) Write(p []byte) (int, error) { return x.h.Write(p) }
func (x *xxh3Digest) Digest() []byte             { return x.h.Sum(nil) }
func (x *xxh3Digest) Size() int                  { return 8 }

// sumStrong computes the strong digest of buf[off:off+length], mixing in
// the configured checksum seed as a prefix or suffix and truncating to
// strongSumLength. cfg.StrongSum is reset and left in a used state;
// callers must not rely on it being idle afterward.
func sumStrong(cfg *Config, buf []byte, off, length int) []byte {
	d := cfg.StrongSum
	d.Reset()
	if len(cfg.ChecksumSeed) > 0 && cfg.SeedIsPrefix {
		d.Write(cfg.ChecksumSeed)
	}
	d.Write(buf[off : off+length])
	if len(cfg.ChecksumSeed) > 0 && !cfg.SeedIsPrefix {
		d.Write(cfg.ChecksumSeed)
	}
	full := d.Digest()
	out := make([]byte, cfg.StrongSumLength)
	copy(out, full)
	return out
}

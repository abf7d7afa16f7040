package rsync

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// GeneratorListener receives BlockChecksum events as a Generator produces
// them.
type GeneratorListener interface {
	OnBlockChecksum(BlockChecksum) error
}

// GeneratorListenerFunc adapts a function to a GeneratorListener.
type GeneratorListenerFunc func(BlockChecksum) error

func (f GeneratorListenerFunc) OnBlockChecksum(b BlockChecksum) error { return f(b) }

// Generator partitions a basis byte stream into consecutive
// config.BlockLength blocks (the last block may be shorter, minimum
// length 1) and computes a BlockChecksum for each: buffer incoming
// bytes, emit whenever the buffer holds a full block, and flush a final
// short block on Finish.
type Generator struct {
	cfg         *Config
	listeners   []GeneratorListener
	buffer      []byte
	ndx         int
	count       int64
	baseOffset  int64
	seq         uint64
}

// NewGenerator returns a Generator over cfg starting at baseOffset (the
// offset the caller's basis stream begins at; 0 unless the basis is being
// scanned in pieces).
func NewGenerator(cfg *Config, baseOffset int64) *Generator {
	g := &Generator{cfg: cfg, baseOffset: baseOffset}
	g.buffer = make([]byte, cfg.BlockLength)
	return g
}

// AddListener registers a listener to receive BlockChecksum events.
func (g *Generator) AddListener(l GeneratorListener) {
	g.listeners = append(g.listeners, l)
}

// Reset clears accumulated state, so the Generator can be reused for
// another basis.
func (g *Generator) Reset() {
	g.ndx = 0
	g.count = 0
	g.seq = 0
}

// Update feeds len(buf) bytes to the generator, emitting a BlockChecksum
// to every listener each time a full block accumulates.
func (g *Generator) Update(buf []byte) error {
	i := 0
	for i < len(buf) {
		n := len(buf) - i
		if room := len(g.buffer) - g.ndx; n > room {
			n = room
		}
		copy(g.buffer[g.ndx:], buf[i:i+n])
		i += n
		g.ndx += n
		if g.ndx == len(g.buffer) {
			if err := g.emit(g.buffer, len(g.buffer)); err != nil {
				return err
			}
			g.ndx = 0
		}
	}
	return nil
}

// Finish flushes any buffered partial block (the final, possibly short,
// block of the basis) and resets the Generator.
func (g *Generator) Finish() error {
	var err error
	if g.ndx > 0 {
		err = g.emit(g.buffer, g.ndx)
	}
	g.Reset()
	return err
}

func (g *Generator) emit(buf []byte, length int) error {
	g.cfg.WeakSum.Check(buf, 0, length)
	weak := g.cfg.WeakSum.Value()
	strong := sumStrong(g.cfg, buf, 0, length)

	bc := BlockChecksum{
		ChecksumPair: ChecksumPair{Weak: weak, Strong: strong},
		Offset:       g.baseOffset + g.count,
		Length:       length,
		Seq:          g.seq,
	}
	g.count += int64(length)
	g.seq++

	var head, tail *ListenerError
	for _, l := range g.listeners {
		if err := l.OnBlockChecksum(bc); err != nil {
			head, tail = appendListenerError(head, tail, err)
		}
	}
	if head != nil {
		return head
	}
	return nil
}

// Generate reads all of r as a basis and returns every BlockChecksum, in
// ascending Seq order. It is a convenience wrapper collecting Update
// output into a slice.
func Generate(cfg *Config, r io.Reader) ([]BlockChecksum, error) {
	var sums []BlockChecksum
	g := NewGenerator(cfg, 0)
	g.AddListener(GeneratorListenerFunc(func(b BlockChecksum) error {
		sums = append(sums, b)
		return nil
	}))
	buf := make([]byte, cfg.ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if uerr := g.Update(buf[:n]); uerr != nil {
				return sums, uerr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return sums, ioError(err, "generator: failed reading basis")
		}
	}
	if err := g.Finish(); err != nil {
		return sums, err
	}
	return sums, nil
}

// GenerateAsync runs Generate in a goroutine, streaming BlockChecksums on
// the returned channel and delivering at most one error on the error
// channel. The context can be used to abandon an in-flight scan; the
// channels are closed once the generator finishes or ctx is cancelled.
func GenerateAsync(ctx context.Context, cfg *Config, r io.Reader) (<-chan BlockChecksum, <-chan error) {
	out := make(chan BlockChecksum)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		g := NewGenerator(cfg, 0)
		g.AddListener(GeneratorListenerFunc(func(b BlockChecksum) error {
			select {
			case out <- b:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))

		buf := make([]byte, cfg.ChunkSize)
		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}
			n, err := r.Read(buf)
			if n > 0 {
				if uerr := g.Update(buf[:n]); uerr != nil {
					errc <- uerr
					return
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				errc <- errors.Wrap(err, "generator: failed reading basis")
				return
			}
		}
		if err := g.Finish(); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

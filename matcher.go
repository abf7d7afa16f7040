package rsync

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// MatcherListener receives Delta events as a Matcher produces them, in
// strictly non-decreasing WriteOffset order.
type MatcherListener interface {
	OnDelta(Delta) error
}

// MatcherListenerFunc adapts a function to a MatcherListener.
type MatcherListenerFunc func(Delta) error

func (f MatcherListenerFunc) OnDelta(d Delta) error { return f(d) }

// Matcher streams a target byte sequence through a rolling window,
// consults a BlockIndex, and emits Literal/Copy deltas. The per-byte
// matching step is unrolled here into a bulk Update loop for throughput,
// but performs exactly the same operations in the same order each time.
type Matcher struct {
	cfg       *Config
	index     *BlockIndex
	listeners []MatcherListener

	buffer []byte
	ndx    int
	count  int64
}

// NewMatcher returns a Matcher searching for blocks recorded in index,
// using cfg's block length, weak sum and strong digest.
func NewMatcher(cfg *Config, index *BlockIndex) *Matcher {
	return &Matcher{
		cfg:    cfg,
		index:  index,
		buffer: make([]byte, cfg.ChunkSize),
	}
}

// AddListener registers a listener to receive Delta events.
func (m *Matcher) AddListener(l MatcherListener) {
	m.listeners = append(m.listeners, l)
}

// Reset clears accumulated state, so the Matcher can be reused against
// another target.
func (m *Matcher) Reset() {
	m.ndx = 0
	m.count = 0
}

// Update feeds len(buf) bytes of the target to the matcher.
func (m *Matcher) Update(buf []byte) error {
	var head, tail *ListenerError
	blockLength := m.cfg.BlockLength

	for _, b := range buf {
		m.buffer[m.ndx] = b
		m.ndx++
		m.count++

		if m.ndx < blockLength {
			continue
		} else if m.ndx == blockLength {
			m.cfg.WeakSum.Check(m.buffer, 0, blockLength)
		} else {
			m.cfg.WeakSum.Roll(b)
		}

		oldOffset, found := m.hashSearch(m.buffer, m.ndx-blockLength, blockLength)
		if found {
			if m.ndx > blockLength {
				lit := Literal{
					Data: cloneBytes(m.buffer[:m.ndx-blockLength]),
					Off:  m.count - int64(m.ndx),
				}
				if err := m.emit(lit); err != nil {
					head, tail = appendListenerError(head, tail, err)
				}
			}
			cp := Copy{
				OldOffset: oldOffset,
				NewOffset: m.count - int64(blockLength),
				Length:    blockLength,
			}
			if err := m.emit(cp); err != nil {
				head, tail = appendListenerError(head, tail, err)
			}
			m.ndx = 0
		} else if m.ndx == len(m.buffer) {
			keep := blockLength - 1
			lit := Literal{
				Data: cloneBytes(m.buffer[:len(m.buffer)-keep]),
				Off:  m.count - int64(m.ndx),
			}
			if err := m.emit(lit); err != nil {
				head, tail = appendListenerError(head, tail, err)
			}
			copy(m.buffer, m.buffer[len(m.buffer)-keep:])
			m.ndx = keep
		}
	}

	if head != nil {
		return head
	}
	return nil
}

// Finish attempts a final match against the last min(residual,
// BlockLength) buffered bytes, emits the resulting deltas (a Literal for
// any residual bytes not covered by a match), and resets the Matcher.
func (m *Matcher) Finish() error {
	blockLength := m.cfg.BlockLength
	var err error

	if m.ndx > 0 {
		off := m.ndx - blockLength
		if off < 0 {
			off = 0
		}
		length := m.ndx
		if length > blockLength {
			length = blockLength
		}
		m.cfg.WeakSum.Check(m.buffer, off, length)
		oldOffset, found := m.hashSearch(m.buffer, off, length)
		if found {
			if off > 0 {
				lit := Literal{Data: cloneBytes(m.buffer[:off]), Off: m.count - int64(m.ndx)}
				err = m.emit(lit)
			}
			cp := Copy{OldOffset: oldOffset, NewOffset: m.count - int64(length), Length: length}
			if e := m.emit(cp); e != nil && err == nil {
				err = e
			}
		} else {
			lit := Literal{Data: cloneBytes(m.buffer[:m.ndx]), Off: m.count - int64(m.ndx)}
			err = m.emit(lit)
		}
	}
	m.Reset()
	return err
}

func (m *Matcher) hashSearch(buf []byte, off, length int) (int64, bool) {
	weak := m.cfg.WeakSum.Value()
	if !m.index.ContainsWeak(weak) {
		return 0, false
	}
	m.cfg.Log.Debugf("hash hit on weak key: %08x", weak)
	strong := sumStrong(m.cfg, buf, off, length)
	return m.index.Lookup(ChecksumPair{Weak: weak, Strong: strong})
}

func (m *Matcher) emit(d Delta) error {
	var head, tail *ListenerError
	for _, l := range m.listeners {
		if err := l.OnDelta(d); err != nil {
			head, tail = appendListenerError(head, tail, err)
		}
	}
	if head != nil {
		return head
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Match searches r for blocks recorded in index and returns the resulting
// Deltas, in ascending WriteOffset order. It is a convenience wrapper
// collecting Update/Finish output into a slice.
func Match(cfg *Config, index *BlockIndex, r io.Reader) ([]Delta, error) {
	var deltas []Delta
	m := NewMatcher(cfg, index)
	m.AddListener(MatcherListenerFunc(func(d Delta) error {
		deltas = append(deltas, d)
		return nil
	}))

	buf := make([]byte, cfg.ChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if uerr := m.Update(buf[:n]); uerr != nil {
				return deltas, uerr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return deltas, ioError(err, "matcher: failed reading target")
		}
	}
	if err := m.Finish(); err != nil {
		return deltas, err
	}
	return deltas, nil
}

// MatchAsync runs Match in a goroutine, streaming Deltas on the returned
// channel and delivering at most one error on the error channel.
func MatchAsync(ctx context.Context, cfg *Config, index *BlockIndex, r io.Reader) (<-chan Delta, <-chan error) {
	out := make(chan Delta)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		m := NewMatcher(cfg, index)
		m.AddListener(MatcherListenerFunc(func(d Delta) error {
			select {
			case out <- d:
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
				if uerr := m.Update(buf[:n]); uerr != nil {
					errc <- uerr
					return
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				errc <- errors.Wrap(err, "matcher: failed reading target")
				return
			}
		}
		if err := m.Finish(); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

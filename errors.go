package rsync

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds. Use errors.Is to test for these against an error
// returned by this package.
var (
	// ErrInvalidConfiguration is returned by Builder.Build when block
	// length, strong sum length or chunk size are out of range.
	ErrInvalidConfiguration = errors.New("rsync: invalid configuration")

	// ErrBasisMissing is returned by a Rebuilder when a Copy delta is
	// encountered but no basis reader was supplied.
	ErrBasisMissing = errors.New("rsync: copy delta requires a basis but none was provided")

	// ErrBasisTooShort is returned when a Copy's old_offset+length
	// exceeds the length of the available basis.
	ErrBasisTooShort = errors.New("rsync: copy delta reads past the end of the basis")

	// ErrSameFile is returned by the out-of-place Rebuilder when asked
	// to read and write the same path.
	ErrSameFile = errors.New("rsync: cannot read and write the same file out-of-place")
)

// ListenerError chains one or more failures raised by MatcherListener or
// GeneratorListener callbacks during a single emission cycle, so that no
// failure is lost when several listeners are registered.
type ListenerError struct {
	// Err is this link's failure.
	Err error
	// Next is the next failure in the chain, or nil if this is the last.
	Next *ListenerError
}

func (e *ListenerError) Error() string {
	if e.Next == nil {
		return fmt.Sprintf("rsync: listener failure: %v", e.Err)
	}
	n := 0
	for l := e; l != nil; l = l.Next {
		n++
	}
	return fmt.Sprintf("rsync: %d listener failures, first: %v", n, e.Err)
}

// Unwrap returns the immediate cause, allowing errors.Is/errors.As to see
// through a single link of the chain.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// appendListenerError adds err to the end of the chain rooted at head (which may be
// nil), returning the (possibly new) head and the new tail, so that
// callers can accumulate failures across a loop of listeners without
// re-walking the chain each time.
func appendListenerError(head, tail *ListenerError, err error) (*ListenerError, *ListenerError) {
	link := &ListenerError{Err: err}
	if head == nil {
		return link, link
	}
	tail.Next = link
	return head, link
}

// ioError wraps an underlying I/O failure with context, using
// github.com/pkg/errors so the wrapped chain stays inspectable with
// errors.Is/errors.As.
func ioError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// pkg/atomicfile/errors.go
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a failure returned by this package.
type Kind int

const (
	// KindIO means an underlying filesystem operation failed.
	KindIO Kind = iota + 1
	// KindAlreadyExists means Commit found the destination present while
	// overwrite was disabled.
	KindAlreadyExists
	// KindInvalidState means the temporary file was already consumed.
	KindInvalidState
	// KindRollback means the durable sync failed and removing the renamed
	// destination failed too. The destination is in an unknown state.
	KindRollback
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalidState:
		return "invalid_state"
	case KindRollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is against any *Error.
var (
	ErrIO            = errors.New("atomicfile: i/o failure")
	ErrAlreadyExists = errors.New("atomicfile: destination already exists")
	ErrInvalidState  = errors.New("atomicfile: I/O operation on closed file")
	ErrRollback      = errors.New("atomicfile: rollback failed, destination state unknown")
)

// Error records the step, path and cause of a failure.
type Error struct {
	Kind Kind
	Op   string // mkdir, create, write, exists, rename, sync, rollback, ...
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAlreadyExists:
		return fmt.Sprintf("atomicfile: %s: file exists", e.Path)
	case KindInvalidState:
		return fmt.Sprintf("atomicfile: %s %s: I/O operation on closed file", e.Op, e.Path)
	}
	if e.Err == nil {
		return fmt.Sprintf("atomicfile: %s %s: %s", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("atomicfile: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind sentinels plus the matching io/fs errors, so callers can
// test with either ErrAlreadyExists or fs.ErrExist.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrIO:
		return e.Kind == KindIO
	case ErrAlreadyExists:
		return e.Kind == KindAlreadyExists
	case ErrInvalidState:
		return e.Kind == KindInvalidState
	case ErrRollback:
		return e.Kind == KindRollback
	case fs.ErrExist:
		return e.Kind == KindAlreadyExists
	case fs.ErrClosed:
		return e.Kind == KindInvalidState
	}
	return false
}

// KindOf returns the Kind of err, or 0 when err was not produced here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func ioErr(op, path string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Path: path, Err: err}
}

func stateErr(op, path string) *Error {
	return &Error{Kind: KindInvalidState, Op: op, Path: path}
}

// pkg/atomicfile/writer.go
package atomicfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

// createAttempts bounds retries when a generated temp name collides.
const createAttempts = 3

type state int

const (
	stateOpen state = iota
	stateConsumed
	stateCommitted
	stateFailed
	stateAborted
)

// Writer stages bytes in a temporary file next to the destination and makes
// them visible there, in full, on Commit.
//
// A Writer is single-use and is not safe for concurrent use. Independent
// Writers targeting the same destination may race; the last rename wins.
type Writer struct {
	fs        afero.Fs
	dest      string
	final     string
	dir       string
	overwrite bool
	syncDir   bool

	state   state
	tmp     afero.File
	tmpName string
}

// New resolves the destination's directory and creates the temporary file
// that will receive writes. The destination is not inspected until Commit.
func New(dest string, opts ...Option) (*Writer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	base := filepath.Base(dest)
	if dest == "" || base == "." || base == ".." || base == string(filepath.Separator) ||
		os.IsPathSeparator(dest[len(dest)-1]) {
		return nil, ioErr("create", dest, fs.ErrInvalid)
	}

	dir, err := resolveDir(o.fs, dest, o.dirMode)
	if err != nil {
		return nil, err
	}

	tmp, name, err := createTemp(o.fs, dir, base, o.fileMode)
	if err != nil {
		return nil, err
	}

	return &Writer{
		fs:        o.fs,
		dest:      dest,
		final:     filepath.Join(dir, base),
		dir:       dir,
		overwrite: o.overwrite,
		syncDir:   o.syncDir,
		state:     stateOpen,
		tmp:       tmp,
		tmpName:   name,
	}, nil
}

// createTemp opens .<base>.<uuid>.tmp exclusively in append mode.
func createTemp(fsys afero.Fs, dir, base string, mode os.FileMode) (afero.File, string, error) {
	var lastErr error
	for i := 0; i < createAttempts; i++ {
		name := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")
		f, err := fsys.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, mode)
		if errors.Is(err, fs.ErrExist) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, "", ioErr("create", name, err)
		}
		// OpenFile honours the umask; the committed file gets mode exactly.
		if err := fsys.Chmod(name, mode); err != nil {
			_ = f.Close()
			_ = fsys.Remove(name)
			return nil, "", ioErr("chmod", name, err)
		}
		return f, name, nil
	}
	return nil, "", ioErr("create", dir, lastErr)
}

// Destination returns the path the Writer was constructed with.
func (w *Writer) Destination() string { return w.dest }

// Overwrite reports whether Commit may replace an existing destination.
func (w *Writer) Overwrite() bool { return w.overwrite }

// Write appends p to the temporary file.
func (w *Writer) Write(p []byte) (int, error) {
	if w.state != stateOpen {
		return 0, stateErr("write", w.dest)
	}
	n, err := w.tmp.Write(p)
	if err != nil {
		return n, ioErr("write", w.tmpName, err)
	}
	return n, nil
}

// WriteString appends the bytes of s to the temporary file.
func (w *Writer) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Commit renames the temporary file onto the destination and syncs it. It
// returns the canonical destination path.
//
// An already-exists failure leaves the Writer open, so Commit may be called
// again once the destination is gone. Every other outcome consumes the
// Writer; later calls fail with KindInvalidState.
//
// If the sync after rename fails the destination is removed again and the
// sync error is returned. If that removal fails too the error has
// KindRollback and the destination must be checked by hand.
func (w *Writer) Commit() (string, error) {
	if w.state != stateOpen {
		return "", stateErr("commit", w.dest)
	}

	if !w.overwrite {
		exists, err := afero.Exists(w.fs, w.final)
		if err != nil {
			return "", ioErr("stat", w.final, err)
		}
		if exists {
			return "", &Error{Kind: KindAlreadyExists, Op: "commit", Path: w.final}
		}
	}

	f, name := w.tmp, w.tmpName
	w.tmp, w.state = nil, stateConsumed

	if err := w.fs.Rename(name, w.final); err != nil {
		w.state = stateFailed
		cleanup := multierr.Append(f.Close(), w.fs.Remove(name))
		return "", ioErr("rename", w.final, multierr.Append(err, cleanup))
	}

	syncErr := f.Sync()
	closeErr := f.Close()
	if syncErr != nil {
		w.state = stateFailed
		if rmErr := w.fs.Remove(w.final); rmErr != nil {
			return "", &Error{
				Kind: KindRollback,
				Op:   "rollback",
				Path: w.final,
				Err:  multierr.Combine(syncErr, rmErr),
			}
		}
		return "", ioErr("sync", w.final, syncErr)
	}

	// Contents are durable at this point; a close failure is still reported
	// but the destination stays.
	w.state = stateCommitted
	if closeErr != nil {
		return "", ioErr("close", w.final, closeErr)
	}
	if w.syncDir {
		_ = syncDir(w.fs, w.dir)
	}
	return w.final, nil
}

// Close discards the temporary file if Commit has not consumed it. It is a
// no-op otherwise, so it is safe to defer right after New.
func (w *Writer) Close() error {
	if w.state != stateOpen {
		return nil
	}
	f, name := w.tmp, w.tmpName
	w.tmp, w.state = nil, stateAborted

	var err error
	if cerr := f.Close(); cerr != nil {
		err = multierr.Append(err, ioErr("close", name, cerr))
	}
	if rerr := w.fs.Remove(name); rerr != nil {
		err = multierr.Append(err, ioErr("remove", name, rerr))
	}
	return err
}

func syncDir(fsys afero.Fs, dir string) error {
	d, err := fsys.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

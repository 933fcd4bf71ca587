// pkg/atomicfile/options.go
package atomicfile

import (
	"os"

	"github.com/spf13/afero"
)

const (
	defaultFileMode os.FileMode = 0o644
	defaultDirMode  os.FileMode = 0o755
)

type options struct {
	fs        afero.Fs
	overwrite bool
	fileMode  os.FileMode
	dirMode   os.FileMode
	syncDir   bool
}

func defaultOptions() options {
	return options{
		fs:       afero.NewOsFs(),
		fileMode: defaultFileMode,
		dirMode:  defaultDirMode,
	}
}

// Option configures a Writer or a one-shot write.
type Option func(*options)

// WithOverwrite allows Commit to replace an existing destination.
// The default is false.
func WithOverwrite(overwrite bool) Option {
	return func(o *options) { o.overwrite = overwrite }
}

// WithFs runs every filesystem step against fsys instead of the OS.
func WithFs(fsys afero.Fs) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithFileMode sets the permission bits of the committed file (default 0644).
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.fileMode = mode
		}
	}
}

// WithDirMode sets the permission bits of directories created for the
// destination (default 0755).
func WithDirMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.dirMode = mode
		}
	}
}

// WithSyncDir fsyncs the parent directory after a successful commit so the
// rename itself survives a crash. Failures there are ignored.
func WithSyncDir(enabled bool) Option {
	return func(o *options) { o.syncDir = enabled }
}

// pkg/atomicfile/resolve.go
package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ResolveDir returns the canonical directory that will host the temporary
// file for path, creating it and any missing ancestors first. A path with no
// parent component resolves to the current working directory.
func ResolveDir(path string) (string, error) {
	return resolveDir(afero.NewOsFs(), path, defaultDirMode)
}

func resolveDir(fsys afero.Fs, path string, mode os.FileMode) (string, error) {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, mode); err != nil {
		return "", ioErr("mkdir", dir, err)
	}
	canon, err := canonical(fsys, dir)
	if err != nil {
		return "", ioErr("resolve", dir, err)
	}
	return canon, nil
}

// canonical makes dir absolute. Symlinks are only resolved on the real OS
// filesystem; other afero backends have no links to follow.
func canonical(fsys afero.Fs, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if _, ok := fsys.(*afero.OsFs); !ok {
		return abs, nil
	}
	return filepath.EvalSymlinks(abs)
}

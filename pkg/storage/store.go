// pkg/storage/store.go
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/dattu/atomicwriter/pkg/fingerprint"
	"github.com/dattu/atomicwriter/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidKey = errors.New("storage: invalid key")
	ErrNotFound   = errors.New("storage: not found")
	ErrCorrupt    = errors.New("storage: content does not match catalog")
)

// Options configure a Store. Zero modes fall back to the atomicfile defaults.
type Options struct {
	Root     string
	Catalog  string
	FileMode os.FileMode
	DirMode  os.FileMode
	SyncDir  bool
	Metrics  *metrics.Collectors
}

// Store keeps keyed files under a root directory. Every write goes through
// an atomicfile.Writer and is recorded in a bolt catalog.
type Store struct {
	root    string
	opts    Options
	catalog *Catalog
	metrics *metrics.Collectors
}

func Open(opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, errors.Wrap(ErrInvalidKey, "empty root")
	}
	// The resolver creates and canonicalizes the parent of its argument, so
	// hand it a child of root.
	root, err := atomicfile.ResolveDir(filepath.Join(opts.Root, "_"))
	if err != nil {
		return nil, errors.Wrap(err, "prepare root")
	}
	if opts.DirMode != 0 {
		if err := os.Chmod(root, opts.DirMode); err != nil {
			return nil, errors.Wrap(err, "chmod root")
		}
	}
	cat, err := OpenCatalog(opts.Catalog)
	if err != nil {
		return nil, err
	}
	return &Store{root: root, opts: opts, catalog: cat, metrics: opts.Metrics}, nil
}

// Root returns the canonical root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) Close() error { return s.catalog.Close() }

// CleanKey normalises key to slash form and rejects anything that would
// escape the root.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", ErrInvalidKey
	}
	rel := filepath.Clean(filepath.FromSlash(key))
	switch {
	case rel == "." || rel == "..":
		return "", ErrInvalidKey
	case filepath.IsAbs(rel) || strings.HasPrefix(key, "/"):
		return "", ErrInvalidKey
	case strings.HasPrefix(rel, ".."+string(filepath.Separator)):
		return "", ErrInvalidKey
	case filepath.VolumeName(rel) != "":
		return "", ErrInvalidKey
	}
	return filepath.ToSlash(rel), nil
}

func (s *Store) pathFor(key string) (string, string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", "", errors.Wrapf(err, "key %q", key)
	}
	path := filepath.Join(s.root, filepath.FromSlash(k))
	if err := s.confine(path); err != nil {
		return "", "", errors.Wrapf(err, "key %q", key)
	}
	return k, path, nil
}

// confine resolves the deepest existing part of path and rejects it when a
// symlink leads outside the root.
func (s *Store) confine(path string) error {
	for p := path; ; p = filepath.Dir(p) {
		resolved, err := filepath.EvalSymlinks(p)
		if os.IsNotExist(err) && p != s.root {
			continue
		}
		if err != nil {
			return err
		}
		if !within(s.root, resolved) {
			return ErrInvalidKey
		}
		return nil
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *Store) writerOptions(overwrite bool) []atomicfile.Option {
	return []atomicfile.Option{
		atomicfile.WithOverwrite(overwrite),
		atomicfile.WithFileMode(s.opts.FileMode),
		atomicfile.WithDirMode(s.opts.DirMode),
		atomicfile.WithSyncDir(s.opts.SyncDir),
	}
}

// Put atomically writes data under key.
func (s *Store) Put(key string, data []byte, overwrite bool) (Object, error) {
	start := time.Now()
	up, err := s.Begin(key, overwrite)
	if err != nil {
		s.metrics.Observe(start, 0, err)
		return Object{}, err
	}
	defer up.Abort()

	if _, err := up.Write(data); err != nil {
		s.metrics.Observe(start, 0, err)
		return Object{}, errors.Wrapf(err, "write %s", up.Key())
	}
	return up.Commit()
}

// Get returns the committed content of key.
func (s *Store) Get(key string) ([]byte, error) {
	k, path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "get %s", k)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", k)
	}
	return data, nil
}

// Stat returns the catalog record of key.
func (s *Store) Stat(key string) (Object, error) {
	k, _, err := s.pathFor(key)
	if err != nil {
		return Object{}, err
	}
	return s.catalog.Lookup(k)
}

// Keys lists every key in the catalog.
func (s *Store) Keys() ([]string, error) { return s.catalog.Keys() }

// Verify re-reads key and compares size and fingerprint with the catalog.
func (s *Store) Verify(key string) (Object, error) {
	obj, err := s.Stat(key)
	if err != nil {
		return Object{}, err
	}
	f, err := os.Open(obj.Path)
	if os.IsNotExist(err) {
		return obj, errors.Wrapf(ErrCorrupt, "%s: file missing", obj.Key)
	}
	if err != nil {
		return obj, errors.Wrapf(err, "verify %s", obj.Key)
	}
	defer f.Close()

	fp := fingerprint.NewWithSeed(obj.Seed)
	if _, err := io.Copy(fp, f); err != nil {
		return obj, errors.Wrapf(err, "verify %s", obj.Key)
	}
	if fp.Size() != obj.Size || fp.Sum64() != obj.Fingerprint {
		return obj, errors.Wrapf(ErrCorrupt, "%s: size %d/%d", obj.Key, fp.Size(), obj.Size)
	}
	return obj, nil
}

// Delete removes key from disk and catalog.
func (s *Store) Delete(key string) error {
	k, path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %s", k)
	}
	logrus.WithField("key", k).Info("deleted")
	return s.catalog.Forget(k)
}

// Snapshot writes a consistent copy of the catalog to dest, replacing any
// previous snapshot there, and returns the canonical path.
func (s *Store) Snapshot(dest string) (string, error) {
	w, err := atomicfile.New(dest, atomicfile.WithOverwrite(true), atomicfile.WithFileMode(0o600))
	if err != nil {
		return "", errors.Wrap(err, "snapshot")
	}
	defer w.Close()

	if _, err := s.catalog.WriteTo(w); err != nil {
		return "", errors.Wrap(err, "snapshot catalog")
	}
	path, err := w.Commit()
	if err != nil {
		return "", errors.Wrap(err, "snapshot commit")
	}
	logrus.WithField("dest", path).Info("snapshot created")
	return path, nil
}

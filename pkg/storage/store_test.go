package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/dattu/atomicwriter/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(Options{
		Root:    filepath.Join(dir, "objects"),
		Catalog: filepath.Join(dir, "catalog.db"),
		SyncDir: true,
		Metrics: metrics.New(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorePutGetStat(t *testing.T) {
	s := newTestStore(t)

	obj, err := s.Put("out/report.txt", []byte("hello"), false)
	require.NoError(t, err)
	assert.Equal(t, "out/report.txt", obj.Key)
	assert.Equal(t, filepath.Join(s.Root(), "out", "report.txt"), obj.Path)
	assert.EqualValues(t, 5, obj.Size)

	got, err := s.Get("out/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	st, err := s.Stat("out/./report.txt")
	require.NoError(t, err)
	assert.Equal(t, obj.Fingerprint, st.Fingerprint)
	assert.Equal(t, obj.Seed, st.Seed)
	assert.EqualValues(t, 5, st.Size)

	_, err = s.Verify("out/report.txt")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Commits.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, 5.0, testutil.ToFloat64(s.metrics.Bytes))
}

func TestStorePutRespectsOverwrite(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("out/report.txt", []byte("hello"), false)
	require.NoError(t, err)

	_, err = s.Put("out/report.txt", []byte("world"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, atomicfile.ErrAlreadyExists)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Commits.WithLabelValues("already_exists")))

	got, err := s.Get("out/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = s.Put("out/report.txt", []byte("world"), true)
	require.NoError(t, err)
	got, err = s.Get("out/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))

	// No staging files left behind by the refused write.
	entries, err := os.ReadDir(filepath.Join(s.Root(), "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreStagedUpload(t *testing.T) {
	s := newTestStore(t)

	up, err := s.Begin("logs/app.log", false)
	require.NoError(t, err)
	defer up.Abort()

	_, err = up.Write([]byte("hel"))
	require.NoError(t, err)
	_, err = up.Write([]byte("lo"))
	require.NoError(t, err)

	obj, err := up.Commit()
	require.NoError(t, err)
	assert.EqualValues(t, 5, obj.Size)

	_, err = up.Commit()
	assert.ErrorIs(t, err, atomicfile.ErrInvalidState)
	_, err = up.Write([]byte("!"))
	assert.ErrorIs(t, err, atomicfile.ErrInvalidState)

	got, err := s.Get("logs/app.log")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestStoreRejectsEscapingKeys(t *testing.T) {
	s := newTestStore(t)

	for _, key := range []string{"", " ", ".", "..", "../x", "a/../../x", "/etc/passwd"} {
		_, err := s.Put(key, []byte("x"), true)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestStoreRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	s := newTestStore(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(s.Root(), "link")))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o644))

	for _, key := range []string{"link/x", "link/deep/x"} {
		_, err := s.Put(key, []byte("x"), true)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
	_, err := s.Get("link/secret")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, s.Delete("link/secret"), ErrInvalidKey)

	entries, err := os.ReadDir(outside)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "secret", entries[0].Name())

	// Links that stay inside the root are fine.
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "real"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(s.Root(), "real"), filepath.Join(s.Root(), "alias")))
	_, err = s.Put("alias/x", []byte("x"), false)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(s.Root(), "real", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
}

func TestStoreVerifyDetectsTampering(t *testing.T) {
	s := newTestStore(t)

	obj, err := s.Put("data.bin", []byte("original"), false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(obj.Path, []byte("tampered"), 0o644))
	_, err = s.Verify("data.bin")
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, os.Remove(obj.Path))
	_, err = s.Verify("data.bin")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStoreNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Stat("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("gone.txt", []byte("x"), false)
	require.NoError(t, err)
	require.NoError(t, s.Delete("gone.txt"))

	_, err = s.Get("gone.txt")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Stat("gone.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStoreSnapshot(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("a", []byte("1"), false)
	require.NoError(t, err)
	_, err = s.Put("b/c", []byte("22"), false)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "snap", "catalog.db")
	path, err := s.Snapshot(dest)
	require.NoError(t, err)

	db, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true})
	require.NoError(t, err)
	defer db.Close()

	var keys []string
	require.NoError(t, db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(objectsBucket)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	}))
	assert.Equal(t, []string{"a", "b/c"}, keys)

	// Snapshots replace each other.
	_, err = s.Snapshot(dest)
	require.NoError(t, err)
}

func TestAtomicWriteReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frag", "0.bin")

	require.NoError(t, AtomicWrite(path, []byte("one"), 0o600))
	require.NoError(t, AtomicWrite(path, []byte("two"), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

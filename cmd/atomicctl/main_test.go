package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dattu/atomicwriter/pkg/atomicfile"
	"github.com/dattu/atomicwriter/pkg/rpc"
	"github.com/dattu/atomicwriter/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestWriteFromStdin(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "report.txt")

	out, err := run(t, "hello", "write", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "report.txt")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = run(t, "world", "write", dest)
	assert.ErrorIs(t, err, atomicfile.ErrAlreadyExists)
	got, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, err = run(t, "world", "write", "--overwrite", dest)
	require.NoError(t, err)
	got, err = os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))
}

func TestWriteFromFileAndText(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	require.NoError(t, os.WriteFile(src, []byte{0, 1, 2}, 0o644))

	_, err := run(t, "", "write", filepath.Join(dir, "copy.bin"), src)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(dir, "copy.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, got)

	_, err = run(t, "", "write", "--text", "hi", filepath.Join(dir, "greeting.txt"))
	require.NoError(t, err)
	got, err = os.ReadFile(filepath.Join(dir, "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
}

func TestWriteModeIsOctal(t *testing.T) {
	dir := t.TempDir()

	for arg, want := range map[string]os.FileMode{"600": 0o600, "0640": 0o640} {
		dest := filepath.Join(dir, "mode-"+arg)
		_, err := run(t, "x", "write", "--mode", arg, dest)
		require.NoError(t, err, arg)

		info, err := os.Stat(dest)
		require.NoError(t, err)
		assert.Equal(t, want, info.Mode().Perm(), arg)
	}

	// Default is 0644, not decimal 644.
	dest := filepath.Join(dir, "default")
	_, err := run(t, "x", "write", dest)
	require.NoError(t, err)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	for _, bad := range []string{"9", "rw", "0", "1777"} {
		_, err := run(t, "x", "write", "--mode", bad, filepath.Join(dir, "bad"))
		assert.Error(t, err, bad)
	}
	_, err = os.Stat(filepath.Join(dir, "bad"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(storage.Options{
		Root:    filepath.Join(dir, "objects"),
		Catalog: filepath.Join(dir, "catalog.db"),
	})
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := grpc.NewServer()
	rpc.Register(gs, rpc.NewServer(store, false))
	go gs.Serve(lis)
	t.Cleanup(func() {
		gs.Stop()
		store.Close()
	})
	addr := lis.Addr().String()

	out, err := run(t, "hello", "--server", addr, "put", "out/report.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "out/report.txt")

	_, err = run(t, "world", "--server", addr, "put", "out/report.txt")
	assert.ErrorIs(t, err, atomicfile.ErrAlreadyExists)

	out, err = run(t, "", "--server", addr, "get", "out/report.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	local := filepath.Join(dir, "local", "copy.txt")
	_, err = run(t, "", "--server", addr, "get", "-o", local, "out/report.txt")
	require.NoError(t, err)
	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	out, err = run(t, "", "--server", addr, "stat", "out/report.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "5 B")

	out, err = run(t, "", "--server", addr, "verify", "out/report.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	_, err = run(t, "", "--server", addr, "get", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	out, err = run(t, "", "--server", addr, "list")
	require.NoError(t, err)
	assert.Equal(t, "out/report.txt\n", out)

	out, err = run(t, "", "--server", addr, "rm", "out/report.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")

	out, err = run(t, "", "--server", addr, "ls")
	require.NoError(t, err)
	assert.Empty(t, out)
	_, err = os.Stat(filepath.Join(store.Root(), "out", "report.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "atomicctl dev")
}

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte(`{"id":"abc"}`)
	require.NoError(t, s.Write("gist_abc.json", content))

	got, err := s.Read("gist_abc.json")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	require.NoError(t, s.Write("posts/deep/a.html", []byte("deep")))

	got, err := s.Read("posts/deep/a.html")
	require.NoError(t, err)
	assert.Equal(t, "deep", string(got))
}

func TestStat(t *testing.T) {
	s := tempRoot(t)
	require.NoError(t, s.Write("a.json", []byte("{}")))

	info, err := s.Stat("a.json")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Size())

	_, err = s.Stat("missing.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemoveAll(t *testing.T) {
	s := tempRoot(t)
	require.NoError(t, s.Write("page/2/index.html", []byte("old")))

	require.NoError(t, s.RemoveAll("page"))
	_, err := s.Read("page/2/index.html")
	assert.Error(t, err)

	// Removing something that is already gone is fine.
	assert.NoError(t, s.RemoveAll("page"))
	assert.Error(t, s.RemoveAll(""), "root must never be removed")
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	for _, p := range []string{"../../etc/passwd", "../outside.json", "/etc/shadow"} {
		_, err := s.Read(p)
		assert.Errorf(t, err, "read %q", p)
		assert.Errorf(t, s.Write(p, []byte("x")), "write %q", p)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	require.NoError(t, s.Write("atomic.json", []byte("original")))
	require.NoError(t, s.Write("atomic.json", []byte("updated")))

	got, err := s.Read("atomic.json")
	require.NoError(t, err)
	assert.Equal(t, "updated", string(got))

	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".gistblog-tmp-*"))
	assert.Empty(t, matches)
}

func TestNewFS_CreatesMissingRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	s, err := NewFS(dir)
	require.NoError(t, err)

	info, err := os.Stat(s.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "gistblog-test-*")
	require.NoError(t, err)
	_ = f.Close()

	_, err = NewFS(f.Name())
	assert.Error(t, err)
}

package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFilesEqual covers equal, differing and missing file combinations.
func TestFilesEqual(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")

	require.NoError(t, os.WriteFile(a, []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("other"), 0o644))

	equal, err := FilesEqual(a, b)
	require.NoError(t, err)
	require.True(t, equal)

	equal, err = FilesEqual(a, c)
	require.NoError(t, err)
	require.False(t, equal)

	// Missing file is a difference, not an error.
	equal, err = FilesEqual(a, filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.False(t, equal)
}

// TestCopyFile verifies content, permissions and parent directory creation.
func TestCopyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "nested", "dst")

	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	require.NoError(t, CopyFile(src, dst, 0o600))

	contents, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "payload", string(contents))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestGetFileChecksum ensures identical content hashes identically and
// differing content does not.
func TestGetFileChecksum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	require.NoError(t, os.WriteFile(a, []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("payload"), 0o644))

	sumA, err := GetFileChecksum(a)
	require.NoError(t, err)

	sumB, err := GetFileChecksum(b)
	require.NoError(t, err)
	require.Equal(t, sumA, sumB)

	require.NoError(t, os.WriteFile(b, []byte("other"), 0o644))

	sumB, err = GetFileChecksum(b)
	require.NoError(t, err)
	require.NotEqual(t, sumA, sumB)
}

// TestLookupIdentity resolves the current user and rejects unknown accounts.
func TestLookupIdentity(t *testing.T) {
	t.Parallel()

	_, err := LookupIdentity("no-such-user-entry")
	require.Error(t, err)

	require.True(t, Root().IsRoot())
	require.False(t, Identity{Username: "nobody", UID: 65534, GID: 65534}.IsRoot())
}

package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSnapshot copies existing files into a timestamped directory and skips
// missing ones silently.
func TestSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	installed := filepath.Join(dir, "bot.py")
	secret := filepath.Join(dir, "secret.cfg")
	require.NoError(t, os.WriteFile(installed, []byte("print('bot')"), 0o755))
	require.NoError(t, os.WriteFile(secret, []byte("token=x"), 0o600))

	manager := NewManager(filepath.Join(dir, "backups"))
	manager.now = func() time.Time {
		return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	}

	snapshotDir, err := manager.Snapshot(context.Background(),
		installed, secret, filepath.Join(dir, "missing.service"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "backups", "20260829-120000"), snapshotDir)

	contents, err := os.ReadFile(filepath.Join(snapshotDir, "bot.py"))
	require.NoError(t, err)
	require.Equal(t, "print('bot')", string(contents))

	// Secret keeps its restricted permissions in the snapshot.
	info, err := os.Stat(filepath.Join(snapshotDir, "secret.cfg"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// The missing unit produced no entry.
	require.NoFileExists(t, filepath.Join(snapshotDir, "missing.service"))
}

// TestSnapshot_EmptyRun still creates the snapshot directory on a first
// install with nothing to preserve.
func TestSnapshot_EmptyRun(t *testing.T) {
	t.Parallel()

	manager := NewManager(filepath.Join(t.TempDir(), "backups"))

	snapshotDir, err := manager.Snapshot(context.Background(), "/nonexistent/bot.py")
	require.NoError(t, err)
	require.DirExists(t, snapshotDir)

	entries, err := os.ReadDir(snapshotDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
)

// timestampLayout names each snapshot directory.
const timestampLayout = "20060102-150405"

// Manager snapshots currently-installed files into a timestamped directory
// before any mutation, so an operator always has rollback material predating
// the current run. Snapshots accumulate; pruning is an operational concern.
type Manager struct {
	// root is the directory under which snapshots are created.
	root string
	// now supplies the snapshot timestamp; replaceable in tests.
	now func() time.Time
}

// NewManager creates a backup manager rooted at root.
func NewManager(root string) *Manager {
	return &Manager{
		root: root,
		now:  time.Now,
	}
}

// Snapshot copies each existing path into a fresh timestamped directory and
// returns that directory. Missing files are skipped silently: on a first
// install there is simply nothing to preserve. No comparison against new
// content happens here; the snapshot is unconditional.
func (m *Manager) Snapshot(ctx context.Context, paths ...string) (string, error) {
	dir := filepath.Join(m.root, m.now().UTC().Format(timestampLayout))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				logger.DebugKV(ctx, "Nothing to back up", "path", path)

				continue
			}

			return "", fmt.Errorf("inspect %s: %w", path, err)
		}

		target := filepath.Join(dir, filepath.Base(path))
		if err = common.CopyFile(path, target, info.Mode().Perm()); err != nil {
			return "", fmt.Errorf("back up %s: %w", path, err)
		}

		logger.InfoKV(ctx, "Backed up", "path", path, "to", target)
	}

	return dir, nil
}

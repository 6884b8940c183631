package sandbox

import (
	"context"
	"fmt"
	"os"

	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
)

// Sandbox is a restricted-permission temporary workspace owned by the
// unprivileged identity. All network-sourced content lands here, so a
// malicious upstream artifact cannot write outside it before the privileged
// install stages run.
type Sandbox struct {
	// Dir is the workspace root.
	Dir string
	// Owner is the unprivileged identity owning the workspace.
	Owner common.Identity
}

// directoryMode restricts the workspace to its owner.
const directoryMode os.FileMode = 0o700

// New allocates a uniquely-named workspace, hands ownership to owner and
// restricts permissions to owner-only access. Callers must defer Close.
func New(ctx context.Context, owner common.Identity) (*Sandbox, error) {
	dir, err := os.MkdirTemp("", "bot-deployer-")
	if err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}

	s := &Sandbox{Dir: dir, Owner: owner}

	if err = os.Chmod(dir, directoryMode); err != nil {
		s.Close(ctx)

		return nil, fmt.Errorf("restrict sandbox permissions: %w", err)
	}

	if err = owner.Own(dir); err != nil {
		s.Close(ctx)

		return nil, err
	}

	logger.InfoKV(ctx, "Sandbox created", "dir", dir, "owner", owner.Username)

	return s, nil
}

// Close removes the workspace and everything in it. It is safe to call on
// every exit path, including after a failed New.
func (s *Sandbox) Close(ctx context.Context) {
	if s == nil || s.Dir == "" {
		return
	}

	if err := os.RemoveAll(s.Dir); err != nil {
		logger.WarnKV(ctx, "Sandbox cleanup failed", "dir", s.Dir, "error", err)

		return
	}

	logger.DebugKV(ctx, "Sandbox removed", "dir", s.Dir)
}

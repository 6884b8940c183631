package selfupdate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshuvalov/bot-deployer/internal/domain/deploy"
	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
)

// executableMode is applied to the replaced deployer.
const executableMode os.FileMode = 0o755

// backupSuffix marks the pre-replacement copy of the deployer.
const backupSuffix = ".bak"

// Gate detects whether the fetched source tree bundles a newer deployer and,
// if so, replaces the running one. The caller must then hand control to the
// replacement instead of continuing the pipeline, so behavioral changes to
// the update logic take effect before any stage relies on them.
type Gate struct {
	// currentPath is the installed deployer this process runs from.
	currentPath string
	// sourceRel is the bundled deployer's path relative to the source root.
	sourceRel string
}

// NewGate creates a gate for the deployer at currentPath.
func NewGate(currentPath, sourceRel string) *Gate {
	return &Gate{
		currentPath: currentPath,
		sourceRel:   sourceRel,
	}
}

// Check compares the bundled deployer against the running one by byte
// content. Identical bytes, or a source tree without a bundled deployer,
// continue the current run. A differing bundle is backed up, applied
// atomically and reported as a hand-off.
func (g *Gate) Check(ctx context.Context, sourceRoot string) (deploy.Outcome, error) {
	if g.sourceRel == "" {
		logger.Debug(ctx, "No bundled deployer path configured, continuing")

		return deploy.Continue(), nil
	}

	bundled := filepath.Join(sourceRoot, g.sourceRel)

	bundledExists, err := common.FileExists(bundled)
	if err != nil {
		return deploy.Continue(), err
	}

	if !bundledExists {
		logger.Debug(ctx, "Source tree bundles no deployer, continuing")

		return deploy.Continue(), nil
	}

	equal, err := common.FilesEqual(bundled, g.currentPath)
	if err != nil {
		return deploy.Continue(), err
	}

	if equal {
		logger.Info(ctx, "Deployer is up to date")

		return deploy.Continue(), nil
	}

	logger.InfoKV(ctx, "Bundled deployer differs, replacing the running one", "path", g.currentPath)

	if err = g.replace(bundled); err != nil {
		return deploy.Continue(), fmt.Errorf("replace deployer: %w", err)
	}

	return deploy.Replaced(g.currentPath), nil
}

// replace backs up the current deployer and applies the bundled one with
// checksum verification, resetting ownership to the privileged identity.
func (g *Gate) replace(bundled string) error {
	currentExists, err := common.FileExists(g.currentPath)
	if err != nil {
		return err
	}

	if currentExists {
		if err = common.CopyFile(g.currentPath, g.currentPath+backupSuffix, executableMode); err != nil {
			return err
		}
	} else {
		placeholder, createErr := os.Create(g.currentPath)
		if createErr != nil {
			return createErr
		}

		if err = placeholder.Close(); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(filepath.Clean(bundled))
	if err != nil {
		return err
	}

	checksum, err := common.GetFileChecksum(bundled)
	if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: g.currentPath,
		TargetMode: executableMode,
		Checksum:   checksum,
		Hash:       common.DefaultChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	// go-update leaves the displaced file next to the target; the explicit
	// backup copy above is the rollback material.
	oldFileName := g.currentPath + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return common.Root().Own(g.currentPath)
}

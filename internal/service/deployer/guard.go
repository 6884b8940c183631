package deployer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshuvalov/bot-deployer/internal/logger"
)

const (
	// runMarkerName marks that a deployment is in flight to avoid parallel runs.
	runMarkerName = "bot-deployer-run-marker.bin"

	// deployerProcessName is the executable name used for stale-marker recovery.
	deployerProcessName = "bot-deployer"

	// markerLifetime is the period after which a leftover run marker is
	// considered stale. A run spends most of its time downloading, so the
	// window is generous.
	markerLifetime = 10 * time.Minute
)

// defaultMarkerPath places the run marker in the system temp directory.
func defaultMarkerPath() string {
	return filepath.Join(os.TempDir(), runMarkerName)
}

// isDeployerRunningNow checks presence of the run marker and attempts
// recovery when it looks stale.
func isDeployerRunningNow(ctx context.Context, markerPath string) bool {
	logger.Debug(ctx, "Checking for the presence of a run marker")

	fileInfo, err := os.Stat(markerPath)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The run marker is stale, attempting cleanup")

		if err = terminateProcessByName(deployerProcessName); err != nil {
			return true
		}

		if err = os.Remove(markerPath); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	logger.Warnf(ctx, "Unable to read run marker: %v", err)

	return false
}

// createRunMarker writes the marker claiming this run.
func createRunMarker(markerPath string) error {
	file, err := os.Create(markerPath)
	if err != nil {
		return err
	}

	return file.Close()
}

// removeRunMarker releases the claim; a missing marker is fine.
func removeRunMarker(markerPath string) {
	if _, err := os.Stat(markerPath); err == nil {
		_ = os.Remove(markerPath)
	}
}

// terminateProcessByName kills other processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

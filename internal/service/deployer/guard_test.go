package deployer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRunMarker_Lifecycle covers claim, detect and release of the run marker.
func TestRunMarker_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	markerPath := filepath.Join(t.TempDir(), runMarkerName)

	require.False(t, isDeployerRunningNow(ctx, markerPath))

	require.NoError(t, createRunMarker(markerPath))
	require.True(t, isDeployerRunningNow(ctx, markerPath))

	removeRunMarker(markerPath)
	require.False(t, isDeployerRunningNow(ctx, markerPath))

	// Releasing twice is harmless.
	removeRunMarker(markerPath)
}

// TestRunMarker_StaleRecovery verifies an old marker is cleaned up instead of
// blocking the run forever.
func TestRunMarker_StaleRecovery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	markerPath := filepath.Join(t.TempDir(), runMarkerName)

	require.NoError(t, createRunMarker(markerPath))

	stale := time.Now().Add(-2 * markerLifetime)
	require.NoError(t, os.Chtimes(markerPath, stale, stale))

	// No bot-deployer process exists in the test environment, so recovery
	// removes the marker and reports not-running.
	require.False(t, isDeployerRunningNow(ctx, markerPath))
	require.NoFileExists(t, markerPath)
}

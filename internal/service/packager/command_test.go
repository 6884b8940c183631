package packager

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshuvalov/bot-deployer/internal/service/common"
)

// TestRun_WritesManifest builds a distribution tree and checks the manifest content.
func TestRun_WritesManifest(t *testing.T) {
	t.Parallel()

	dist := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "deploy"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "bot.py"), []byte("print('bot')"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "deploy", "bot-deployer"), []byte("binary"), 0o755))

	outputPath := filepath.Join(t.TempDir(), "bot-release.yaml")

	err := Run(context.Background(), &Options{
		DistDir:    dist,
		OutputPath: outputPath,
		Version:    "2.0.0",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var manifest Manifest
	require.NoError(t, yaml.Unmarshal(data, &manifest))
	require.Equal(t, "2.0.0", manifest.VersionNumber)
	require.Len(t, manifest.Files, 2)

	// Checksums round-trip against the actual content.
	want, err := common.GetFileChecksum(filepath.Join(dist, "bot.py"))
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(want), manifest.Files["bot.py"])
	require.Contains(t, manifest.Files, "deploy/bot-deployer")
}

// TestRun_EmptyDist rejects a distribution directory without files.
func TestRun_EmptyDist(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		DistDir:    t.TempDir(),
		OutputPath: filepath.Join(t.TempDir(), "bot-release.yaml"),
	})
	require.ErrorIs(t, err, errEmptyDist)
}

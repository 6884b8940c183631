package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and URL validations for deployment settings.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings.
	err := Validate(new(Config))
	require.Error(t, err)

	// Missing artifact source.
	cfg := Default()
	cfg.RepoURL = "https://github.com/example/discord-twitch.git"

	err = Validate(cfg)
	require.ErrorIs(t, err, errNoArtifactSource)

	// Bad archive URL.
	cfg.ArchiveURLTemplate = "::not-a-url"

	err = Validate(cfg)
	require.Error(t, err)

	// Okay with a templated archive URL.
	cfg.ArchiveURLTemplate = "https://github.com/example/discord-twitch/archive/refs/tags/%s.zip"

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := Default()
	cfg.RepoURL = "https://github.com/example/discord-twitch.git"
	cfg.ArtifactURL = "https://releases.example.com/discord-twitch/latest.tar.gz"
	cfg.SecretURL = "https://config.example.com/discord-twitch/secret.cfg"

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RepoURL, loaded.RepoURL)
	require.Equal(t, cfg.ArtifactURL, loaded.ArtifactURL)
	require.Equal(t, cfg.ServiceName, loaded.ServiceName)

	// Settings file is written with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestPathHelpers verifies install-path composition.
func TestPathHelpers(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Equal(t, "/usr/local/discord-twitch/bot.py", cfg.AppEntryPath())
	require.Equal(t, "/usr/local/discord-twitch/secret.cfg", cfg.SecretPath())
	require.Equal(t, "/usr/local/discord-twitch/version.txt", cfg.VersionFilePath())
	require.Equal(t, "/etc/systemd/system/discord-twitch.service", cfg.UnitPath("discord-twitch.service"))
}

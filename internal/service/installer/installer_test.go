package installer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshuvalov/bot-deployer/internal/config"
	"github.com/oshuvalov/bot-deployer/internal/domain/deploy"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
)

// testConfig builds settings with install locations inside the test's temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()

	cfg := config.Default()
	cfg.RepoURL = "https://github.com/example/discord-twitch.git"
	cfg.ArtifactURL = "https://releases.example.com/latest.tar.gz"
	cfg.InstallDir = filepath.Join(base, "install")
	cfg.UnitDir = filepath.Join(base, "units")
	cfg.BackupDir = filepath.Join(base, "backups")
	cfg.DeployerSource = "deploy/bot-deployer"

	return cfg
}

// testOwner stands in for the privileged identity; Own is a no-op without root.
var testOwner = common.Identity{Username: "root", UID: 0, GID: 0}

// writeSourceTree lays out an extracted release with app, unit and bundled config.
func writeSourceTree(t *testing.T, cfg *config.Config, unitContent string) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "discord-twitch-2.0.0")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "deploy"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, cfg.AppEntry), []byte("#!/usr/bin/env python\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "helper.txt"), []byte("notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, cfg.ServiceName), []byte(unitContent), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "deploy", "bot-deployer"), []byte("deployer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, cfg.ConfigFile), []byte("[streamers]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, cfg.SecretFile), []byte("token=x\n"), 0o600))

	return root
}

// TestEnsureEntryPresent fails fast when the entry file is missing.
func TestEnsureEntryPresent(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	inst := NewInstaller(cfg, testOwner, time.Second)

	emptyRoot := t.TempDir()
	require.ErrorIs(t, inst.EnsureEntryPresent(emptyRoot), ErrMissingArtifact)

	root := writeSourceTree(t, cfg, "[Unit]\n")
	require.NoError(t, inst.EnsureEntryPresent(root))
}

// TestInstallUnits_GatedByContent verifies the compare-then-install gate and
// the service-changed flag.
func TestInstallUnits_GatedByContent(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	inst := NewInstaller(cfg, testOwner, time.Second)
	root := writeSourceTree(t, cfg, "[Unit]\nDescription=bot\n")
	ctx := context.Background()

	// First run: unit absent, installed, flag set.
	report := &deploy.Report{}
	require.NoError(t, inst.InstallUnits(ctx, root, report))
	require.True(t, report.ServiceChanged)

	installed := cfg.UnitPath(cfg.ServiceName)
	info, err := os.Stat(installed)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// Second run: identical content, no flag.
	report = &deploy.Report{}
	require.NoError(t, inst.InstallUnits(ctx, root, report))
	require.False(t, report.ServiceChanged)

	// Changed unit content flips the flag again.
	require.NoError(t, os.WriteFile(filepath.Join(root, cfg.ServiceName), []byte("[Unit]\nchanged\n"), 0o644))

	report = &deploy.Report{}
	require.NoError(t, inst.InstallUnits(ctx, root, report))
	require.True(t, report.ServiceChanged)
}

// TestInstallApp_Unconditional verifies application files are overwritten on
// every run and category files are excluded.
func TestInstallApp_Unconditional(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	inst := NewInstaller(cfg, testOwner, time.Second)
	root := writeSourceTree(t, cfg, "[Unit]\n")
	ctx := context.Background()

	require.NoError(t, inst.InstallApp(ctx, root))

	entry := cfg.AppEntryPath()
	info, err := os.Stat(entry)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm(), "script-like entry gets executable permission")
	require.FileExists(t, filepath.Join(cfg.InstallDir, "helper.txt"))

	// Unit, deployer and config categories stay out of the install dir walk.
	require.NoFileExists(t, filepath.Join(cfg.InstallDir, cfg.ServiceName))
	require.NoFileExists(t, filepath.Join(cfg.InstallDir, "deploy", "bot-deployer"))

	// A locally modified entry file is clobbered by the next run.
	require.NoError(t, os.WriteFile(entry, []byte("tampered"), 0o755))
	require.NoError(t, inst.InstallApp(ctx, root))

	contents, err := os.ReadFile(entry)
	require.NoError(t, err)
	require.Equal(t, "#!/usr/bin/env python\n", string(contents))
}

// TestInstallSecret_FirstRun verifies the existence check short-circuits the
// comparison and the secret lands with owner-only permissions.
func TestInstallSecret_FirstRun(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	inst := NewInstaller(cfg, testOwner, time.Second)
	root := writeSourceTree(t, cfg, "[Unit]\n")
	ctx := context.Background()

	report := &deploy.Report{}
	require.NoError(t, inst.InstallSecret(ctx, root, report))
	require.True(t, report.SecretChanged)

	info, err := os.Stat(cfg.SecretPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Second run with identical content: no flag.
	report = &deploy.Report{}
	require.NoError(t, inst.InstallSecret(ctx, root, report))
	require.False(t, report.SecretChanged)
}

// TestInstallConfig_TrustedChannel fetches configuration over HTTP and gates
// reinstallation on content.
func TestInstallConfig_TrustedChannel(t *testing.T) {
	t.Parallel()

	body := "[streamers]\nchannel = name\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.ConfigURL = server.URL + "/streamers.cfg"
	inst := NewInstaller(cfg, testOwner, 5*time.Second)
	ctx := context.Background()

	report := &deploy.Report{}
	require.NoError(t, inst.InstallConfig(ctx, "", report))
	require.True(t, report.ConfigChanged)

	contents, err := os.ReadFile(cfg.ConfigPath())
	require.NoError(t, err)
	require.Equal(t, body, string(contents))

	// Unchanged remote content: second run leaves the flag false.
	report = &deploy.Report{}
	require.NoError(t, inst.InstallConfig(ctx, "", report))
	require.False(t, report.ConfigChanged)
}

// TestInstall_Idempotence runs every category twice against identical inputs
// and expects a clean second report.
func TestInstall_Idempotence(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	inst := NewInstaller(cfg, testOwner, time.Second)
	root := writeSourceTree(t, cfg, "[Unit]\n")
	ctx := context.Background()

	first := &deploy.Report{}
	require.NoError(t, inst.InstallUnits(ctx, root, first))
	require.NoError(t, inst.InstallApp(ctx, root))
	require.NoError(t, inst.InstallConfig(ctx, root, first))
	require.NoError(t, inst.InstallSecret(ctx, root, first))
	require.True(t, first.AnyChanged())

	second := &deploy.Report{}
	require.NoError(t, inst.InstallUnits(ctx, root, second))
	require.NoError(t, inst.InstallApp(ctx, root))
	require.NoError(t, inst.InstallConfig(ctx, root, second))
	require.NoError(t, inst.InstallSecret(ctx, root, second))
	require.False(t, second.AnyChanged())
}

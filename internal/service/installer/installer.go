package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshuvalov/bot-deployer/internal/config"
	"github.com/oshuvalov/bot-deployer/internal/domain/deploy"
	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
)

var (
	// ErrMissingArtifact is returned when the application entry file is absent
	// from the extracted source tree. It must surface before any installation
	// mutation, so callers check the entry file right after extraction.
	ErrMissingArtifact = errors.New("application entry file missing from source tree")

	errBadHTTPStatus = errors.New("unexpected http status")
)

const (
	// unitMode is fixed for installed unit files: non-executable, world-readable.
	unitMode os.FileMode = 0o644
	// configMode is applied to non-secret configuration.
	configMode os.FileMode = 0o644
	// secretMode restricts credentials to owner read/write.
	secretMode os.FileMode = 0o600
	// scriptMode is applied to script-like application files.
	scriptMode os.FileMode = 0o755
	// plainMode is applied to other application files.
	plainMode os.FileMode = 0o644
)

// unitSuffix identifies service unit files in the source tree.
const unitSuffix = ".service"

// Installer copies new application files, service units and configuration
// into their target locations, tracking per-category change flags on the
// run's report. It holds the privileged identity: everything it writes lands
// in system directories.
type Installer struct {
	// cfg describes the install layout and trusted-channel URLs.
	cfg *config.Config
	// owner receives ownership of every installed file.
	owner common.Identity
	// client fetches trusted configuration; runs privileged by design since
	// the channel is trusted, unlike the artifact channel.
	client *http.Client
}

// NewInstaller creates an installer writing files owned by owner.
func NewInstaller(cfg *config.Config, owner common.Identity, timeout time.Duration) *Installer {
	return &Installer{
		cfg:    cfg,
		owner:  owner,
		client: &http.Client{Timeout: timeout},
	}
}

// EnsureEntryPresent fails with ErrMissingArtifact when the source tree lacks
// the application entry file. Run this immediately after extraction, before
// the backup stage, to avoid partial installs.
func (i *Installer) EnsureEntryPresent(sourceRoot string) error {
	exists, err := common.FileExists(filepath.Join(sourceRoot, i.cfg.AppEntry))
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, i.cfg.AppEntry)
	}

	return nil
}

// InstallUnits installs every unit file found under the source root whose
// byte content differs from (or is absent at) the installed location.
// Identical units are skipped without flag changes.
func (i *Installer) InstallUnits(ctx context.Context, sourceRoot string, report *deploy.Report) error {
	return filepath.WalkDir(sourceRoot, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() || !strings.HasSuffix(entry.Name(), unitSuffix) {
			return nil
		}

		target := i.cfg.UnitPath(entry.Name())

		equal, err := common.FilesEqual(path, target)
		if err != nil {
			return err
		}

		if equal {
			logger.DebugKV(ctx, "Unit unchanged", "unit", entry.Name())

			return nil
		}

		if err = i.installFile(path, target, unitMode); err != nil {
			return err
		}

		report.ServiceChanged = true
		logger.InfoKV(ctx, "Unit installed", "unit", entry.Name(), "path", target)

		return nil
	})
}

// InstallApp copies the application entry file and every other non-unit file
// from the source tree into the install directory. No byte-comparison gate is
// applied: application code is versioned by the overall tag, so it is
// overwritten unconditionally on every run.
func (i *Installer) InstallApp(ctx context.Context, sourceRoot string) error {
	if err := i.EnsureEntryPresent(sourceRoot); err != nil {
		return err
	}

	return filepath.WalkDir(sourceRoot, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(sourceRoot, path)
		if err != nil {
			return err
		}

		if i.skipForApp(rel) {
			return nil
		}

		target := filepath.Join(i.cfg.InstallDir, rel)
		if err = i.installFile(path, target, appFileMode(path)); err != nil {
			return err
		}

		logger.DebugKV(ctx, "Application file installed", "path", target)

		return nil
	})
}

// skipForApp filters source entries that belong to other install categories:
// unit files, the bundled deployer, and the configuration files handled by
// the gated config/secret stages.
func (i *Installer) skipForApp(rel string) bool {
	if strings.HasSuffix(rel, unitSuffix) {
		return true
	}

	if i.cfg.DeployerSource != "" && rel == filepath.FromSlash(i.cfg.DeployerSource) {
		return true
	}

	base := filepath.Base(rel)

	return base == i.cfg.ConfigFile || base == i.cfg.SecretFile
}

// InstallConfig installs the non-secret configuration from the trusted
// channel (or the source tree in the bundled-config variant), only when it
// differs from the installed copy.
func (i *Installer) InstallConfig(ctx context.Context, sourceRoot string, report *deploy.Report) error {
	data, found, err := i.loadTrusted(ctx, i.cfg.ConfigURL, sourceRoot, i.cfg.ConfigFile)
	if err != nil {
		return err
	}

	if !found {
		logger.Debug(ctx, "No configuration source, skipping")

		return nil
	}

	changed, err := i.installGated(data, i.cfg.ConfigPath(), configMode)
	if err != nil {
		return err
	}

	if changed {
		report.ConfigChanged = true
		logger.InfoKV(ctx, "Configuration installed", "path", i.cfg.ConfigPath())
	}

	return nil
}

// InstallSecret installs the secret credential file with owner-only
// permissions. A missing installed copy short-circuits the comparison: on a
// first run the secret is installed unconditionally.
func (i *Installer) InstallSecret(ctx context.Context, sourceRoot string, report *deploy.Report) error {
	data, found, err := i.loadTrusted(ctx, i.cfg.SecretURL, sourceRoot, i.cfg.SecretFile)
	if err != nil {
		return err
	}

	if !found {
		logger.Debug(ctx, "No secret source, skipping")

		return nil
	}

	target := i.cfg.SecretPath()

	exists, err := common.FileExists(target)
	if err != nil {
		return err
	}

	if !exists {
		if err = i.writeFile(target, data, secretMode); err != nil {
			return err
		}

		report.SecretChanged = true
		logger.InfoKV(ctx, "Secret installed", "path", target)

		return nil
	}

	changed, err := i.installGated(data, target, secretMode)
	if err != nil {
		return err
	}

	if changed {
		report.SecretChanged = true
		logger.InfoKV(ctx, "Secret updated", "path", target)
	}

	return nil
}

// loadTrusted fetches the named file from the trusted channel URL, falling
// back to the source tree when no URL is configured. The second return value
// reports whether any source held the file.
func (i *Installer) loadTrusted(ctx context.Context, url, sourceRoot, name string) ([]byte, bool, error) {
	if url != "" {
		data, err := i.fetch(ctx, url)
		if err != nil {
			return nil, false, err
		}

		return data, true, nil
	}

	if name == "" {
		return nil, false, nil
	}

	bundled := filepath.Join(sourceRoot, name)

	exists, err := common.FileExists(bundled)
	if err != nil || !exists {
		return nil, false, err
	}

	data, err := os.ReadFile(filepath.Clean(bundled))
	if err != nil {
		return nil, false, err
	}

	return data, true, nil
}

// fetch retrieves a trusted-channel file body.
func (i *Installer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	response, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s: %w", url, response.Status, errBadHTTPStatus)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	return data, nil
}

// installGated writes data to target only when the installed content differs.
// A missing installed copy counts as a difference.
func (i *Installer) installGated(data []byte, target string, mode os.FileMode) (bool, error) {
	installed, err := os.ReadFile(filepath.Clean(target))
	if err == nil && bytes.Equal(installed, data) {
		return false, nil
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", target, err)
	}

	if err = i.writeFile(target, data, mode); err != nil {
		return false, err
	}

	return true, nil
}

// installFile copies src to target with the given mode and resets ownership.
func (i *Installer) installFile(src, target string, mode os.FileMode) error {
	if err := common.CopyFile(src, target, mode); err != nil {
		return err
	}

	return i.owner.Own(target)
}

// writeFile writes data to target with the given mode and resets ownership.
func (i *Installer) writeFile(target string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", target, err)
	}

	if err := os.WriteFile(target, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	// WriteFile honors umask; make the requested mode authoritative.
	if err := os.Chmod(target, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", target, err)
	}

	return i.owner.Own(target)
}

// appFileMode picks executable permission for script-like files.
func appFileMode(path string) os.FileMode {
	switch filepath.Ext(path) {
	case ".py", ".sh":
		return scriptMode
	}

	if hasShebang(path) {
		return scriptMode
	}

	return plainMode
}

// hasShebang sniffs the first two bytes of a file.
func hasShebang(path string) bool {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return false
	}

	defer func() {
		_ = f.Close()
	}()

	var prefix [2]byte
	if _, err = io.ReadFull(f, prefix[:]); err != nil {
		return false
	}

	return prefix[0] == '#' && prefix[1] == '!'
}

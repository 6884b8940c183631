package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the deployment layout and artifact sources for the managed bot.
type Config struct {
	// ServiceName is the systemd unit controlling the bot (e.g. "discord-twitch.service").
	ServiceName string `yaml:"service_name"`
	// RepoURL is the git remote queried for release tags.
	RepoURL string `yaml:"repo_url"`
	// ArchiveURLTemplate is the zip download URL with a single %s placeholder for the tag.
	ArchiveURLTemplate string `yaml:"archive_url"`
	// ArtifactURL is an optional pre-built tarball at a fixed object-storage key.
	// When set, it is preferred over the tag-derived archive.
	ArtifactURL string `yaml:"artifact_url"`
	// ConfigURL is the trusted channel serving the plaintext configuration file.
	ConfigURL string `yaml:"config_url"`
	// SecretURL is the trusted channel serving the secret credential file.
	SecretURL string `yaml:"secret_url"`
	// InstallDir is where application files live (e.g. /usr/local/discord-twitch).
	InstallDir string `yaml:"install_dir"`
	// UnitDir is the init system's unit-definition directory.
	UnitDir string `yaml:"unit_dir"`
	// BackupDir is the root under which timestamped backup snapshots are created.
	BackupDir string `yaml:"backup_dir"`
	// AppEntry is the application entry file name inside the source tree and InstallDir.
	AppEntry string `yaml:"app_entry"`
	// ConfigFile is the non-secret configuration file name.
	ConfigFile string `yaml:"config_file"`
	// SecretFile is the secret credential file name.
	SecretFile string `yaml:"secret_file"`
	// VersionFile is the name of the version-marker file inside InstallDir.
	VersionFile string `yaml:"version_file"`
	// SandboxUser is the unprivileged identity that owns the download sandbox.
	SandboxUser string `yaml:"sandbox_user"`
	// DeployerSource is the path of the bundled deployer inside the source tree.
	DeployerSource string `yaml:"deployer_source"`
	// DeployerPath is the installed deployer location. Empty means the running executable.
	DeployerPath string `yaml:"deployer_path"`
	// Timeout bounds individual network and init-system operations.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for deployment settings.
	DefaultConfigFilename = "bot-deployer-settings.yaml"

	// DefaultTimeout is the default duration for network and init-system operations.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the permission for the settings file itself.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRepoRequired is returned when no git remote is configured.
	errRepoRequired = errors.New("repository URL must be provided")
	// errNoArtifactSource is returned when neither archive nor artifact URL is set.
	errNoArtifactSource = errors.New("either archive or artifact URL must be provided")
	// errInstallDirRequired is returned when the install directory is missing.
	errInstallDirRequired = errors.New("install directory must be provided")
	// errAppEntryRequired is returned when the application entry file name is missing.
	errAppEntryRequired = errors.New("application entry file must be provided")
	// errServiceRequired is returned when the managed unit name is missing.
	errServiceRequired = errors.New("service name must be provided")
)

// Default returns settings matching the bot's stock install layout.
func Default() *Config {
	return &Config{
		ServiceName: "discord-twitch.service",
		InstallDir:  "/usr/local/discord-twitch",
		UnitDir:     "/etc/systemd/system",
		BackupDir:   "/usr/local/discord-twitch/backups",
		AppEntry:    "bot.py",
		ConfigFile:  "streamers.cfg",
		SecretFile:  "secret.cfg",
		VersionFile: "version.txt",
		SandboxUser: "nobody",
		Timeout:     DefaultTimeout,
	}
}

// Load reads configuration from the provided path, fills defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the settings may carry trusted-channel URLs.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServiceName == "" {
		return errServiceRequired
	}

	if cfg.RepoURL == "" {
		return errRepoRequired
	}

	if cfg.ArchiveURLTemplate == "" && cfg.ArtifactURL == "" {
		return errNoArtifactSource
	}

	if cfg.InstallDir == "" {
		return errInstallDirRequired
	}

	if cfg.AppEntry == "" {
		return errAppEntryRequired
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	for _, candidate := range []string{cfg.ArchiveURLTemplate, cfg.ArtifactURL, cfg.ConfigURL, cfg.SecretURL} {
		if candidate == "" {
			continue
		}

		// The archive template is validated with the placeholder substituted.
		probe := strings.Replace(candidate, "%s", "v0.0.0", 1)
		if _, err := url.ParseRequestURI(probe); err != nil {
			return fmt.Errorf("invalid source URL %q: %w", candidate, err)
		}
	}

	return nil
}

// AppEntryPath returns the installed location of the application entry file.
func (c *Config) AppEntryPath() string {
	return filepath.Join(c.InstallDir, c.AppEntry)
}

// ConfigPath returns the installed location of the non-secret configuration file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.InstallDir, c.ConfigFile)
}

// SecretPath returns the installed location of the secret credential file.
func (c *Config) SecretPath() string {
	return filepath.Join(c.InstallDir, c.SecretFile)
}

// VersionFilePath returns the location of the version-marker file.
func (c *Config) VersionFilePath() string {
	return filepath.Join(c.InstallDir, c.VersionFile)
}

// UnitPath returns the installed location of the named unit file.
func (c *Config) UnitPath(unitName string) string {
	return filepath.Join(c.UnitDir, unitName)
}

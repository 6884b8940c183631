package packager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
	"github.com/oshuvalov/bot-deployer/internal/version"
)

// ManifestFilename is the default name of the release manifest.
const ManifestFilename = "bot-release.yaml"

// manifestPermissions keeps the manifest world-readable for the update server.
const manifestPermissions = 0o644

var errEmptyDist = errors.New("distribution directory holds no files")

// Options contains inputs for the packager entry point.
type Options struct {
	// DistDir is the directory holding the distributable release files.
	DistDir string
	// OutputPath is where the manifest is written (defaults to ManifestFilename).
	OutputPath string
	// Version overrides the manifest version (defaults to the build version).
	Version string
}

// Manifest describes a published release: the version and a checksum per file.
type Manifest struct {
	// VersionNumber is the semantic version of this release.
	VersionNumber string `yaml:"version"`
	// Files maps release-relative paths to base64-encoded SHA-512 checksums.
	Files map[string]string `yaml:"files"`
}

// NewManifest produces a Manifest initialized with the build version.
func NewManifest() *Manifest {
	return &Manifest{
		VersionNumber: version.Short(),
		Files:         make(map[string]string),
	}
}

// Run builds and writes the release manifest for the distribution directory.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bot-packager")

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = ManifestFilename
	}

	manifest := NewManifest()
	if opts.Version != "" {
		manifest.VersionNumber = opts.Version
	}

	logger.InfoKV(ctx, "Collecting release checksums", "dist", opts.DistDir)

	if err := manifest.fill(opts.DistDir); err != nil {
		return fmt.Errorf("collect checksums: %w", err)
	}

	logger.InfoKV(ctx, "Saving release manifest", "path", outputPath)

	if err := manifest.save(outputPath); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	logger.Info(ctx, "Next steps: upload the distribution files and the manifest to the artifact channel")

	return nil
}

// fill walks the distribution directory and records a checksum per file.
func (m *Manifest) fill(distDir string) error {
	err := filepath.WalkDir(distDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		checksum, err := common.GetFileChecksum(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(distDir, path)
		if err != nil {
			return err
		}

		m.Files[filepath.ToSlash(rel)] = base64.StdEncoding.EncodeToString(checksum)

		return nil
	})
	if err != nil {
		return err
	}

	if len(m.Files) == 0 {
		return fmt.Errorf("%s: %w", distDir, errEmptyDist)
	}

	return nil
}

// save writes the manifest as YAML.
func (m *Manifest) save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Clean(path), data, manifestPermissions)
}

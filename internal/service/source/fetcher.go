package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshuvalov/bot-deployer/internal/logger"
	"github.com/oshuvalov/bot-deployer/internal/service/common"
)

var (
	// ErrFetch is returned when the artifact download fails.
	ErrFetch = errors.New("artifact download failed")
	// ErrExtraction is returned when the archive yields no usable source tree.
	ErrExtraction = errors.New("archive extraction failed")

	errBadHTTPStatus = errors.New("unexpected http status")
)

// Fetcher retrieves the release payload for a target version into the
// sandbox and unpacks it. It holds the unprivileged identity so everything
// it writes belongs to the sandbox owner.
type Fetcher struct {
	// archiveURLTemplate is the zip endpoint with a %s placeholder for the tag.
	archiveURLTemplate string
	// artifactURL is an optional pre-built tarball at a fixed key, preferred when set.
	artifactURL string
	// owner is the unprivileged identity receiving the downloaded files.
	owner common.Identity
	// client performs the downloads.
	client *http.Client
}

// NewFetcher creates a fetcher writing artifacts owned by owner.
func NewFetcher(archiveURLTemplate, artifactURL string, owner common.Identity, timeout time.Duration) *Fetcher {
	return &Fetcher{
		archiveURLTemplate: archiveURLTemplate,
		artifactURL:        artifactURL,
		owner:              owner,
		client:             &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the payload for tag into destDir, unpacks it into a fresh
// subdirectory and returns the source root: the first top-level directory of
// the extracted tree. Archive tools produce version-suffixed directory names,
// so the root is discovered rather than assumed.
func (f *Fetcher) Fetch(ctx context.Context, tag, destDir string) (string, error) {
	locator := f.locator(tag)

	archivePath, err := f.download(ctx, locator, destDir)
	if err != nil {
		return "", err
	}

	extractDir := filepath.Join(destDir, "src")
	if err = os.MkdirAll(extractDir, 0o700); err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}

	if err = extractArchive(archivePath, extractDir); err != nil {
		return "", err
	}

	if err = ownTree(extractDir, f.owner); err != nil {
		return "", err
	}

	root, err := findSourceRoot(extractDir)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Artifact unpacked", "root", root)

	return root, nil
}

// locator picks the download URL: the fixed pre-built artifact when
// configured, otherwise the tag-derived archive.
func (f *Fetcher) locator(tag string) string {
	if f.artifactURL != "" {
		return f.artifactURL
	}

	return fmt.Sprintf(f.archiveURLTemplate, tag)
}

// download streams the payload into destDir and returns the local path.
func (f *Fetcher) download(ctx context.Context, locator, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFetch, locator, err)
	}

	response, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFetch, locator, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s, %s: %v", ErrFetch, locator, response.Status, errBadHTTPStatus)
	}

	archivePath := filepath.Join(destDir, archiveFileName(locator))

	out, err := os.OpenFile(filepath.Clean(archivePath), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrFetch, archivePath, err)
	}

	if _, err = io.Copy(out, response.Body); err != nil {
		_ = out.Close()

		return "", fmt.Errorf("%w: write %s: %v", ErrFetch, archivePath, err)
	}

	if err = out.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", ErrFetch, archivePath, err)
	}

	if err = f.owner.Own(archivePath); err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Artifact downloaded", "url", locator, "path", archivePath)

	return archivePath, nil
}

// archiveFileName derives a local file name from the URL path, falling back
// to a fixed name when the URL carries none.
func archiveFileName(locator string) string {
	parsed, err := url.Parse(locator)
	if err == nil {
		if name := path.Base(parsed.Path); name != "" && name != "/" && name != "." {
			return name
		}
	}

	return "artifact.download"
}

// ownTree hands ownership of every entry under root to the identity.
func ownTree(root string, owner common.Identity) error {
	return filepath.WalkDir(root, func(entry string, _ os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		return owner.Own(entry)
	})
}

// findSourceRoot locates the first top-level directory of the extracted tree.
func findSourceRoot(extractDir string) (string, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrExtraction, extractDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			return filepath.Join(extractDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w: no top-level directory under %s", ErrExtraction, extractDir)
}

// isTarball reports whether the locator points at a gzip tarball rather than a zip.
func isTarball(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")
}

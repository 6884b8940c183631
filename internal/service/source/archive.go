package source

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractArchive unpacks archivePath into dest, choosing the format by
// file extension.
func extractArchive(archivePath, dest string) error {
	if isTarball(archivePath) {
		return extractTarGz(archivePath, dest)
	}

	return extractZip(archivePath, dest)
}

// extractZip unpacks a zip archive into dest.
func extractZip(archivePath, dest string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open zip %s: %v", ErrExtraction, archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, entry := range reader.File {
		target, err := safeJoin(dest, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err = os.MkdirAll(target, 0o700); err != nil {
				return fmt.Errorf("%w: create %s: %v", ErrExtraction, target, err)
			}

			continue
		}

		if err = writeZipEntry(entry, target); err != nil {
			return err
		}
	}

	return nil
}

// writeZipEntry extracts a single file entry to target.
func writeZipEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrExtraction, filepath.Dir(target), err)
	}

	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %v", ErrExtraction, entry.Name, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(target), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryMode(entry.Mode()))
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrExtraction, target, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("%w: write %s: %v", ErrExtraction, target, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrExtraction, target, err)
	}

	return nil
}

// extractTarGz unpacks a gzip tarball into dest.
func extractTarGz(archivePath, dest string) error {
	archive, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("%w: open tarball %s: %v", ErrExtraction, archivePath, err)
	}

	defer func() {
		_ = archive.Close()
	}()

	gzipReader, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("%w: read gzip %s: %v", ErrExtraction, archivePath, err)
	}

	defer func() {
		_ = gzipReader.Close()
	}()

	tarReader := tar.NewReader(gzipReader)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return fmt.Errorf("%w: read tarball %s: %v", ErrExtraction, archivePath, err)
		}

		target, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, 0o700); err != nil {
				return fmt.Errorf("%w: create %s: %v", ErrExtraction, target, err)
			}
		case tar.TypeReg:
			if err = writeTarEntry(tarReader, header, target); err != nil {
				return err
			}
		default:
			// Symlinks and specials from an untrusted archive are skipped.
			continue
		}
	}
}

// writeTarEntry extracts a single regular file entry to target.
func writeTarEntry(tarReader *tar.Reader, header *tar.Header, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrExtraction, filepath.Dir(target), err)
	}

	mode := entryMode(os.FileMode(header.Mode))

	out, err := os.OpenFile(filepath.Clean(target), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrExtraction, target, err)
	}

	if _, err = io.Copy(out, tarReader); err != nil { //nolint:gosec // Bounded by the sandbox quota in practice.
		_ = out.Close()

		return fmt.Errorf("%w: write %s: %v", ErrExtraction, target, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrExtraction, target, err)
	}

	return nil
}

// entryMode keeps only permission bits and guarantees owner access.
func entryMode(mode os.FileMode) os.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o600
	}

	return perm | 0o600
}

// safeJoin joins an archive entry name onto dest, rejecting entries that
// escape the extraction directory.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: entry %q escapes extraction dir", ErrExtraction, name)
	}

	return target, nil
}

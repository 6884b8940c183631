package common

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	// Ensure SHA512 is linked in for checksum calculation.
	_ "crypto/sha512"
)

// DefaultChecksumFunction is used to calculate release file hashes.
const DefaultChecksumFunction crypto.Hash = crypto.SHA512

var errHashUnavailable = errors.New("hash function unavailable")

// FileExists reports whether path exists as a regular file or directory.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("stat %s: %w", path, err)
}

// FilesEqual compares two files by byte content.
// A missing file on either side counts as a difference, not an error.
func FilesEqual(a, b string) (bool, error) {
	contentsA, err := os.ReadFile(filepath.Clean(a))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("read %s: %w", a, err)
	}

	contentsB, err := os.ReadFile(filepath.Clean(b))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("read %s: %w", b, err)
	}

	return bytes.Equal(contentsA, contentsB), nil
}

// CopyFile copies src to dst with the given permissions, creating parent
// directories as needed.
func CopyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dst, err)
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	// OpenFile honors umask; make the requested mode authoritative.
	if err = os.Chmod(dst, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", dst, err)
	}

	return nil
}

// GetFileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func GetFileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

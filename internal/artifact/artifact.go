// Package artifact records what a build produced. Checksums let the
// person installing the bundle confirm they got the bytes the build
// made.
package artifact

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const ChecksumsFile = "checksums.txt"

// Entry is one produced file with its digest.
type Entry struct {
	Name   string
	SHA256 string
	Size   int64
}

// Checksum computes the hex SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Collect hashes the given artifact files. Names in the result are
// relative to distDir so they stay meaningful on another machine.
func Collect(distDir string, paths []string) ([]Entry, error) {
	var entries []Entry
	for _, path := range paths {
		sum, err := Checksum(path)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		name, err := filepath.Rel(distDir, path)
		if err != nil {
			name = filepath.Base(path)
		}
		entries = append(entries, Entry{
			Name:   filepath.ToSlash(name),
			SHA256: sum,
			Size:   info.Size(),
		})
	}
	return entries, nil
}

// WriteChecksums hashes the artifacts and writes checksums.txt into
// distDir in sha256sum format, one "digest  name" pair per line.
func WriteChecksums(distDir string, paths []string) ([]Entry, error) {
	entries, err := Collect(distDir, paths)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "%s  %s\n", entry.SHA256, entry.Name)
	}

	out := filepath.Join(distDir, ChecksumsFile)
	if err := os.WriteFile(out, []byte(b.String()), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}
	return entries, nil
}

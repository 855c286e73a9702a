package cleanup

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"PBW/internal/config"
	"PBW/internal/logging"
)

// RemoveWorkspace deletes the bundler's scratch directories. The dist
// directory only goes when keepDist is false. Returns the directories
// that were actually removed.
func RemoveWorkspace(projectDir string, cfg *config.Config, keepDist bool) []string {
	dirs := []string{cfg.Bundle.WorkDir, cfg.Bundle.SpecDir}
	if !keepDist {
		dirs = append(dirs, cfg.Bundle.DistDir)
	}

	var removed []string
	for _, dir := range dirs {
		path := filepath.Join(projectDir, dir)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			logging.ErrorLogger.Printf("Failed to remove %s: %v", path, err)
			continue
		}
		logging.InfoLogger.Printf("Removed %s", path)
		removed = append(removed, dir)
	}
	return removed
}

// RemovePycache walks the project and deletes python bytecode caches,
// which PyInstaller scatters next to every imported module.
func RemovePycache(projectDir string) int {
	removed := 0
	filepath.WalkDir(projectDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == "__pycache__" {
			if err := os.RemoveAll(path); err != nil {
				logging.ErrorLogger.Printf("Failed to remove %s: %v", path, err)
				return filepath.SkipDir
			}
			removed++
			return filepath.SkipDir
		}
		return nil
	})
	return removed
}

// BackupArtifact moves the artifact of a previous run out of the way
// before the bundler overwrites it. Returns the backup path, or ""
// when there was nothing to move.
func BackupArtifact(artifactPath string) (string, error) {
	info, err := os.Stat(artifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if info.IsDir() {
		return "", nil
	}

	backupPath := fmt.Sprintf("%s.%s.bak", artifactPath, time.Now().Format("20060102_150405"))
	if err := os.Rename(artifactPath, backupPath); err != nil {
		return "", fmt.Errorf("back up %s: %w", artifactPath, err)
	}
	return backupPath, nil
}

// Archive zips the given files into zipPath. Entry names are relative
// to baseDir so the archive unpacks the way dist/ is laid out.
func Archive(zipPath, baseDir string, paths []string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, path := range paths {
		if err := addFile(zw, baseDir, path); err != nil {
			zw.Close()
			return fmt.Errorf("archive %s: %w", path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addFile(zw *zip.Writer, baseDir, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	name, err := filepath.Rel(baseDir, path)
	if err != nil {
		name = filepath.Base(path)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(name)
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

package logshot

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
}

// ListShots returns the image files in dirPath, usually the report
// folder of a finished build.
func ListShots(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, err
	}

	var shots []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if imageExtensions[ext] {
			shots = append(shots, filepath.Join(dirPath, entry.Name()))
		}
	}
	return shots, nil
}

// ReadShotBase64 returns the content of one image file as base64 for
// JSON transport. Paths without an image extension are refused.
func ReadShotBase64(filePath string) (string, error) {
	if !imageExtensions[strings.ToLower(filepath.Ext(filePath))] {
		return "", fmt.Errorf("%s is not an image file", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

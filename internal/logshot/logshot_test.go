package logshot

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PBW/internal/logging"
)

func TestWrapTextBreaksLongLines(t *testing.T) {
	long := strings.Repeat("pyinstaller ", 30)
	lines := wrapText(long, 200, fontFace)
	require.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.NotEmpty(t, line)
	}
}

func TestWrapTextKeepsLineBreaks(t *testing.T) {
	lines := wrapText("first\nsecond", 800, fontFace)
	assert.Equal(t, []string{"first", "second"}, lines)
}

func TestTakeWritesDecodablePNG(t *testing.T) {
	logging.Init()
	dir := t.TempDir()

	output := "INFO: PyInstaller: 6.3.0\nERROR: script 'main.py' not found"
	Take(dir, "build.png", output, []string{"error"})

	f, err := os.Open(filepath.Join(dir, "build.png"))
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dy(), 40)
}

func TestTakeCreatesMissingFolder(t *testing.T) {
	logging.Init()
	dir := filepath.Join(t.TempDir(), "nested", "deeper")

	Take(dir, "tail.png", "one line", nil)

	_, err := os.Stat(filepath.Join(dir, "tail.png"))
	require.NoError(t, err)
}

func TestListShotsFiltersImages(t *testing.T) {
	logging.Init()
	dir := t.TempDir()

	Take(dir, "pip_install_log.png", "error: boom", []string{"error"})
	Take(dir, "demo_build_log.png", "traceback", nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PBW_build_report.md"), []byte("# report"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dist"), 0755))

	shots, err := ListShots(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "demo_build_log.png"),
		filepath.Join(dir, "pip_install_log.png"),
	}, shots)
}

func TestReadShotBase64RoundTrips(t *testing.T) {
	logging.Init()
	dir := t.TempDir()
	Take(dir, "tail.png", "one line", nil)

	encoded, err := ReadShotBase64(filepath.Join(dir, "tail.png"))
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	_, err = ReadShotBase64(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	_, err = ReadShotBase64(filepath.Join(dir, "report.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an image file")
}

// Package logshot renders the tail of a build log as a PNG so a failed
// bundler run can be dropped into a ticket or chat as one image.
package logshot

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"PBW/internal/logging"
)

var fontFace font.Face = basicfont.Face7x13

func drawString(img *image.RGBA, x, y int, label string, highlightWords []string) {
	col := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	highlightColor := color.RGBA{R: 255, G: 0, B: 0, A: 255}
	point := fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}

	for _, word := range strings.Fields(label) {
		wordCol := col
		for _, hw := range highlightWords {
			if strings.Contains(strings.ToLower(word), strings.ToLower(hw)) {
				wordCol = highlightColor
				break
			}
		}
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(wordCol),
			Face: fontFace,
			Dot:  point,
		}
		d.DrawString(word + " ")
		point.X += d.MeasureString(word + " ")
	}
}

func wrapText(text string, maxWidth int, face font.Face) []string {
	var wrapped []string
	for _, line := range strings.Split(text, "\n") {
		var currentLine string
		for _, word := range strings.Fields(line) {
			if currentLine == "" {
				currentLine = word
			} else {
				width := font.MeasureString(face, currentLine+" "+word).Ceil()
				if width > maxWidth {
					wrapped = append(wrapped, currentLine)
					currentLine = word
				} else {
					currentLine += " " + word
				}
			}
		}
		wrapped = append(wrapped, currentLine)
	}
	return wrapped
}

// Take renders output into projectFolder/shotPath. Words from
// highlightWords are drawn in red wherever they appear. Failures are
// logged and swallowed, a missing picture never fails a build.
func Take(projectFolder, shotPath, output string, highlightWords []string) {
	const maxWidth = 800
	const lineHeight = 18
	const padding = 20

	lines := wrapText(output, maxWidth-padding*2, fontFace)
	height := padding*2 + len(lines)*lineHeight
	width := maxWidth

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	darkBackground := color.RGBA{R: 30, G: 30, B: 30, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: darkBackground}, image.Point{}, draw.Src)

	y := padding
	for _, line := range lines {
		drawString(img, padding, y, line, highlightWords)
		y += lineHeight
	}

	if err := os.MkdirAll(projectFolder, os.ModePerm); err != nil {
		logging.ErrorLogger.Printf("Failed to create log snapshot folder: %v", err)
		return
	}

	filename := filepath.Join(projectFolder, shotPath)
	file, err := os.Create(filename)
	if err != nil {
		logging.ErrorLogger.Printf("Failed to create log snapshot file: %v", err)
		return
	}
	defer file.Close()

	err = png.Encode(file, img)
	if err != nil {
		logging.ErrorLogger.Printf("Failed to encode log snapshot to PNG: %v", err)
	}
}

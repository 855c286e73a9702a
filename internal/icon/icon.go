// Package icon validates Windows .ico files before they are handed to
// the bundler. A broken icon does not fail the bundler, it fails the
// built executable, so it has to be caught up front.
package icon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

const (
	headerSize = 6
	entrySize  = 16

	typeIcon   = 1
	typeCursor = 2
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Image describes one image inside the icon container.
type Image struct {
	Width        int
	Height       int
	BitsPerPixel int
	PNG          bool
	Size         uint32
}

func (i Image) String() string {
	format := "BMP"
	if i.PNG {
		format = "PNG"
	}
	return fmt.Sprintf("%dx%d %d-bit %s", i.Width, i.Height, i.BitsPerPixel, format)
}

// Info is the decoded icon directory.
type Info struct {
	Images []Image
}

// Best returns the largest image in the container.
func (info *Info) Best() Image {
	var best Image
	for _, img := range info.Images {
		if img.Width*img.Height > best.Width*best.Height {
			best = img
		}
	}
	return best
}

// InspectFile decodes and validates the icon at path.
func InspectFile(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return info, nil
}

// Decode parses an ICONDIR and checks that every directory entry points
// at plausible image data inside the file.
func Decode(data []byte) (*Info, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("icon file too short (%d bytes)", len(data))
	}

	reserved := binary.LittleEndian.Uint16(data[0:2])
	imgType := binary.LittleEndian.Uint16(data[2:4])
	count := binary.LittleEndian.Uint16(data[4:6])

	if reserved != 0 {
		return nil, fmt.Errorf("bad icon header, reserved field is %d", reserved)
	}
	switch imgType {
	case typeIcon:
	case typeCursor:
		return nil, fmt.Errorf("file is a cursor (.cur), not an icon")
	default:
		return nil, fmt.Errorf("bad icon header, unknown resource type %d", imgType)
	}
	if count == 0 {
		return nil, fmt.Errorf("icon contains no images")
	}

	dirEnd := headerSize + int(count)*entrySize
	if len(data) < dirEnd {
		return nil, fmt.Errorf("icon directory truncated, need %d bytes, have %d", dirEnd, len(data))
	}

	info := &Info{}
	for n := 0; n < int(count); n++ {
		entry := data[headerSize+n*entrySize:]

		img := Image{
			Width:        widthOrHeight(entry[0]),
			Height:       widthOrHeight(entry[1]),
			BitsPerPixel: int(binary.LittleEndian.Uint16(entry[6:8])),
			Size:         binary.LittleEndian.Uint32(entry[8:12]),
		}
		offset := binary.LittleEndian.Uint32(entry[12:16])

		if img.Size == 0 {
			return nil, fmt.Errorf("image %d has zero size", n)
		}
		end := uint64(offset) + uint64(img.Size)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("image %d data truncated, runs to byte %d of %d", n, end, len(data))
		}

		payload := data[offset:end]
		if bytes.HasPrefix(payload, pngSignature) {
			img.PNG = true
		} else if !looksLikeBMP(payload) {
			return nil, fmt.Errorf("image %d is neither PNG nor BMP data", n)
		}

		info.Images = append(info.Images, img)
	}
	return info, nil
}

// widthOrHeight maps the one-byte dimension field, where 0 means 256.
func widthOrHeight(b byte) int {
	if b == 0 {
		return 256
	}
	return int(b)
}

// looksLikeBMP checks for a BITMAPINFOHEADER, which is how raster
// entries are stored inside an icon.
func looksLikeBMP(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	return binary.LittleEndian.Uint32(data[0:4]) == 40
}

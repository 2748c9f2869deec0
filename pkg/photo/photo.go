// Package photo converts camera frames to greyscale and saves them as PNG.
package photo

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/teslashibe/cube-action/pkg/platform"
)

// Greyscale returns a single-channel copy of img.
func Greyscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

// SaveGreyscalePNG converts img to greyscale and writes it to path,
// replacing any existing file. The image is written to a temp file in the
// same directory and renamed, so readers never see a partial PNG.
func SaveGreyscalePNG(img image.Image, path string) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", platform.ErrIO)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".photo-*.png")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", platform.ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := png.Encode(tmp, Greyscale(img)); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: encode png: %v", platform.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", platform.ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", platform.ErrIO, path, err)
	}
	return nil
}

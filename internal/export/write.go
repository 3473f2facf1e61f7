package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/setanarut/apng"
	"golang.org/x/image/tiff"
)

// AnimationDelay is the per-frame delay of exported animations in 1/100 s.
const AnimationDelay = 4

// EncodePNG encodes img as PNG into memory.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNG writes img to path.
func WritePNG(path string, img image.Image) error {
	return writeFile(path, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}

// WritePNGFrames writes frames as prefix_000.png, prefix_001.png, ... into
// dir and returns the written paths.
func WritePNGFrames(dir, prefix string, frames []*image.Gray) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	paths := make([]string, 0, len(frames))
	for i, f := range frames {
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.png", prefix, i))
		if err := WritePNG(path, f); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteTIFF writes a deflate-compressed TIFF, typically of an image.Gray16.
func WriteTIFF(path string, img image.Image) error {
	return writeFile(path, func(w io.Writer) error {
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	})
}

// GrayPalette is the 256-level palette used for GIF export.
func GrayPalette() color.Palette {
	pal := make(color.Palette, 256)
	for i := range pal {
		pal[i] = color.Gray{Y: uint8(i)}
	}
	return pal
}

// EncodeGIF writes frames as an endlessly looping animated GIF.
func EncodeGIF(w io.Writer, frames []*image.Gray, delay int) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}
	pal := GrayPalette()
	anim := &gif.GIF{LoopCount: 0}
	for _, f := range frames {
		p := image.NewPaletted(f.Bounds(), pal)
		b := f.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				p.SetColorIndex(x, y, f.GrayAt(x, y).Y)
			}
		}
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, delay)
	}
	return gif.EncodeAll(w, anim)
}

// WriteGIF writes frames to path as a looping GIF.
func WriteGIF(path string, frames []*image.Gray, delay int) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeGIF(w, frames, delay)
	})
}

// WriteAPNG writes frames to path as an animated PNG with AnimationDelay.
func WriteAPNG(path string, frames []*image.Gray) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}
	return writeFile(path, func(w io.Writer) error {
		return EncodeAPNG(w, frames)
	})
}

// EncodeAPNG writes frames to w as an animated PNG that loops forever.
func EncodeAPNG(w io.Writer, frames []*image.Gray) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}
	a := apng.APNG{
		Images: make([]image.Image, len(frames)),
		Delays: make([]int, len(frames)),
	}
	for i, f := range frames {
		a.Images[i] = f
		a.Delays[i] = AnimationDelay
	}
	return apng.EncodeAll(w, &a)
}

func writeFile(path string, encode func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := encode(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

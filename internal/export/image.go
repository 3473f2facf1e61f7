// Package export turns noise buffers into images, animations and raw arrays.
package export

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/gift"

	"github.com/MeKo-Tech/noiseloops/internal/sampler"
)

// GrayLevel maps a noise value in [-1, 1] to an 8-bit level as v*127+128.
func GrayLevel(v float64) uint8 {
	g := v*127 + 128
	if g < 0 {
		return 0
	}
	if g > 255 {
		return 255
	}
	return uint8(g)
}

// Gray16Level maps a noise value in [-1, 1] linearly onto 0..65535.
func Gray16Level(v float64) uint16 {
	g := (v + 1) * 0.5 * 65535
	if g < 0 {
		return 0
	}
	if g > 65535 {
		return 65535
	}
	return uint16(g + 0.5)
}

// GrayImage renders w*h row-major values as an 8-bit image.
func GrayImage[T sampler.Sample](values []T, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: GrayLevel(float64(values[y*w+x]))})
		}
	}
	return img
}

// Gray16Image renders w*h row-major values as a 16-bit image.
func Gray16Image[T sampler.Sample](values []T, w, h int) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray16(x, y, color.Gray16{Y: Gray16Level(float64(values[y*w+x]))})
		}
	}
	return img
}

// Frames renders a buffer as images. A looping image stack yields one image
// per frame; a curve stack yields one image with a row per frame; a tileable
// buffer yields one image.
func Frames[T sampler.Sample](buf *sampler.Buffer[T]) ([]*image.Gray, error) {
	switch buf.Layout {
	case sampler.LayoutFrames2D:
		frames := make([]*image.Gray, buf.Units())
		for i := range frames {
			frames[i] = GrayImage(buf.Unit(i), buf.Width(), buf.Height())
		}
		return frames, nil
	case sampler.LayoutFrames1D:
		return []*image.Gray{GrayImage(buf.Data, buf.Width(), buf.Units())}, nil
	case sampler.LayoutTile2D:
		return []*image.Gray{GrayImage(buf.Data, buf.Width(), buf.Height())}, nil
	default:
		return nil, fmt.Errorf("unsupported layout %v", buf.Layout)
	}
}

// CurveFrames draws each curve of a closed 1-D stack as a line plot of the
// given height, one image per frame.
func CurveFrames[T sampler.Sample](buf *sampler.Buffer[T], height int) ([]*image.Gray, error) {
	if buf.Layout != sampler.LayoutFrames1D {
		return nil, fmt.Errorf("curve plots need a %v buffer, got %v", sampler.LayoutFrames1D, buf.Layout)
	}
	if height < 2 {
		return nil, fmt.Errorf("plot height must be at least 2, got %d", height)
	}

	w := buf.Width()
	frames := make([]*image.Gray, buf.Units())
	for i := range frames {
		img := image.NewGray(image.Rect(0, 0, w, height))
		for p := range img.Pix {
			img.Pix[p] = 255
		}
		curve := buf.Unit(i)
		for x, v := range curve {
			y := int((1 - float64(v)) * 0.5 * float64(height-1))
			if y < 0 {
				y = 0
			}
			if y >= height {
				y = height - 1
			}
			img.SetGray(x, y, color.Gray{Y: 0})
		}
		frames[i] = img
	}
	return frames, nil
}

// Upscale enlarges img by an integer factor with nearest-neighbour sampling,
// which keeps tileable output tileable.
func Upscale(img *image.Gray, factor int) *image.Gray {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	g := gift.New(gift.Resize(b.Dx()*factor, b.Dy()*factor, gift.NearestNeighborResampling))
	dst := image.NewGray(g.Bounds(b))
	g.Draw(dst, img)
	return dst
}

// UpscaleAll applies Upscale to every frame.
func UpscaleAll(frames []*image.Gray, factor int) []*image.Gray {
	if factor <= 1 {
		return frames
	}
	out := make([]*image.Gray, len(frames))
	for i, f := range frames {
		out[i] = Upscale(f, factor)
	}
	return out
}

// Package loops generates seamless noise: image stacks that loop in time,
// closed curves that loop in time, and images that tile edge to edge.
//
// Each generator resolves defaults, validates, allocates the output, derives
// the noise field from the seed and fills the buffer. Nothing is cached
// between calls and no partial buffer is ever returned.
package loops

import (
	"context"
	"fmt"
	"time"

	"github.com/MeKo-Tech/noiseloops/internal/embed"
	"github.com/MeKo-Tech/noiseloops/internal/sampler"
)

// Mode names for logs and archive metadata.
const (
	ModeLoopingImage = "looping-2d"
	ModeLoopingCurve = "looping-closed-1d"
	ModeTileable     = "tileable-2d"
)

// LoopingAnimated2D returns a [frames, ny, nx] stack of images. Pixels lie on
// a plane and frames on a circle, so frame frames would equal frame 0.
func LoopingAnimated2D[T sampler.Sample](ctx context.Context, p LoopingImageParams, opts Options) (*sampler.Buffer[T], error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	emb, err := embed.NewPlaneTime(p.Frames, p.TStep, p.XStep, p.YStep)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return generate[T](ctx, ModeLoopingImage, sampler.LayoutFrames2D, []int{p.Frames, p.NY, p.NX}, emb, opts)
}

// LoopingClosed1D returns a [frames, nx] stack of curves that close back on
// themselves and loop in time.
func LoopingClosed1D[T sampler.Sample](ctx context.Context, p LoopingCurveParams, opts Options) (*sampler.Buffer[T], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	emb, err := embed.NewRingTime(p.Frames, p.NX, p.TStep, p.XStep)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return generate[T](ctx, ModeLoopingCurve, sampler.LayoutFrames1D, []int{p.Frames, p.NX}, emb, opts)
}

// Tileable2D returns a [ny, nx] image that tiles along both axes.
func Tileable2D[T sampler.Sample](ctx context.Context, p TileableParams, opts Options) (*sampler.Buffer[T], error) {
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	emb, err := embed.NewTorus(p.NX, p.NY, p.XStep, p.YStep)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return generate[T](ctx, ModeTileable, sampler.LayoutTile2D, []int{p.NY, p.NX}, emb, opts)
}

func generate[T sampler.Sample](ctx context.Context, mode string, layout sampler.Layout, shape []int, emb embed.Embedder, opts Options) (*sampler.Buffer[T], error) {
	buf, err := sampler.NewBuffer[T](layout, shape, opts.MaxCells)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", mode, err)
	}

	logger := opts.logger()
	src := opts.source()
	start := time.Now()
	if opts.Verbose {
		logger.Info("Generating noise...",
			"mode", mode,
			"shape", shape,
			"source", src.Name(),
			"seed", opts.Seed,
		)
	}

	field := src.Derive(opts.Seed)
	if err := sampler.Fill(ctx, buf, field, emb, sampler.Config{
		Workers:  opts.Workers,
		Observer: opts.Observer,
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", mode, err)
	}

	if opts.Verbose {
		logger.Info("Noise generated",
			"mode", mode,
			"elapsed", fmt.Sprintf("%.2f s", time.Since(start).Seconds()),
		)
	}
	return buf, nil
}

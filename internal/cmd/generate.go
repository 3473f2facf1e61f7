package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noiseloops/internal/loops"
	"github.com/MeKo-Tech/noiseloops/internal/sampler"
)

var loop2DCmd = &cobra.Command{
	Use:   "loop2d",
	Short: "Generate a stack of 2-D images that loops in time",
	Long: `Generate frames x ny x nx samples. Each frame is a plane of noise; the
last frame flows back into the first, so playing the frames in a loop shows
no jump.`,
	RunE: runLoop2D,
}

var loop1DCmd = &cobra.Command{
	Use:   "loop1d",
	Short: "Generate closed 1-D curves that loop in time",
	Long: `Generate frames x nx samples. Each curve closes on itself (sample nx-1
is followed by sample 0) and the stack loops in time.`,
	RunE: runLoop1D,
}

var tileCmd = &cobra.Command{
	Use:   "tile",
	Short: "Generate a 2-D image that tiles in both directions",
	RunE:  runTile,
}

func init() {
	rootCmd.AddCommand(loop2DCmd, loop1DCmd, tileCmd)

	loop2DCmd.Flags().Int("frames", loops.DefaultFrames, "Number of frames")
	loop2DCmd.Flags().Int("nx", loops.DefaultPixels, "Image width in pixels")
	loop2DCmd.Flags().Int("ny", 0, "Image height in pixels (default: nx)")
	loop2DCmd.Flags().Float64("t-step", loops.DefaultTStep, "Noise-space distance between frames")
	loop2DCmd.Flags().Float64("x-step", loops.DefaultXStep, "Noise-space distance between columns")
	loop2DCmd.Flags().Float64("y-step", 0, "Noise-space distance between rows (default: x-step)")
	addOutputFlags(loop2DCmd, "loop2d", "loop2d", formatGIF)
	bindCommandFlags(loop2DCmd, "loop2d", "frames", "nx", "ny", "t-step", "x-step", "y-step")

	loop1DCmd.Flags().Int("frames", loops.DefaultFrames, "Number of frames")
	loop1DCmd.Flags().Int("nx", loops.DefaultPixels, "Samples per curve")
	loop1DCmd.Flags().Float64("t-step", loops.DefaultTStep, "Noise-space distance between frames")
	loop1DCmd.Flags().Float64("x-step", loops.DefaultXStep, "Noise-space distance between samples")
	loop1DCmd.Flags().Int("plot-height", 256, "Height of the curve plots in gif/apng output")
	addOutputFlags(loop1DCmd, "loop1d", "loop1d", formatNPY)
	bindCommandFlags(loop1DCmd, "loop1d", "frames", "nx", "t-step", "x-step", "plot-height")

	tileCmd.Flags().Int("nx", loops.DefaultPixels, "Image width in pixels")
	tileCmd.Flags().Int("ny", 0, "Image height in pixels (default: nx)")
	tileCmd.Flags().Float64("x-step", loops.DefaultXStep, "Noise-space distance between columns")
	tileCmd.Flags().Float64("y-step", 0, "Noise-space distance between rows (default: x-step)")
	addOutputFlags(tileCmd, "tile", "tile", formatPNG)
	bindCommandFlags(tileCmd, "tile", "nx", "ny", "x-step", "y-step")
}

// bindCommandFlags binds each flag to section.<flag> with dashes turned
// into underscores.
func bindCommandFlags(cmd *cobra.Command, section string, flags ...string) {
	for _, flag := range flags {
		key := section + "." + strings.ReplaceAll(flag, "-", "_")
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}
}

func runLoop2D(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	s, err := loadSettings("loop2d")
	if err != nil {
		return err
	}
	p := loops.LoopingImageParams{
		Frames: viper.GetInt("loop2d.frames"),
		NX:     viper.GetInt("loop2d.nx"),
		NY:     viper.GetInt("loop2d.ny"),
		TStep:  viper.GetFloat64("loop2d.t_step"),
		XStep:  viper.GetFloat64("loop2d.x_step"),
		YStep:  viper.GetFloat64("loop2d.y_step"),
	}.WithDefaults()

	meta := s.metadata(loops.ModeLoopingImage)
	meta.TStep, meta.XStep, meta.YStep = p.TStep, p.XStep, p.YStep

	logger.Info("Starting looping image generation",
		"frames", p.Frames, "nx", p.NX, "ny", p.NY,
		"source", s.source.Name(), "seed", s.seed, "dtype", s.dtype)

	if s.dtype == loops.Float32 {
		return produce(s, meta, p.Frames, "frames", func(ctx context.Context, o loops.Options) (*sampler.Buffer[float32], error) {
			return loops.LoopingAnimated2D[float32](ctx, p, o)
		})
	}
	return produce(s, meta, p.Frames, "frames", func(ctx context.Context, o loops.Options) (*sampler.Buffer[float64], error) {
		return loops.LoopingAnimated2D[float64](ctx, p, o)
	})
}

func runLoop1D(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	s, err := loadSettings("loop1d")
	if err != nil {
		return err
	}
	p := loops.LoopingCurveParams{
		Frames: viper.GetInt("loop1d.frames"),
		NX:     viper.GetInt("loop1d.nx"),
		TStep:  viper.GetFloat64("loop1d.t_step"),
		XStep:  viper.GetFloat64("loop1d.x_step"),
	}

	meta := s.metadata(loops.ModeLoopingCurve)
	meta.TStep, meta.XStep = p.TStep, p.XStep

	logger.Info("Starting looping curve generation",
		"frames", p.Frames, "nx", p.NX,
		"source", s.source.Name(), "seed", s.seed, "dtype", s.dtype)

	if s.dtype == loops.Float32 {
		return produce(s, meta, p.Frames, "frames", func(ctx context.Context, o loops.Options) (*sampler.Buffer[float32], error) {
			return loops.LoopingClosed1D[float32](ctx, p, o)
		})
	}
	return produce(s, meta, p.Frames, "frames", func(ctx context.Context, o loops.Options) (*sampler.Buffer[float64], error) {
		return loops.LoopingClosed1D[float64](ctx, p, o)
	})
}

func runTile(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	s, err := loadSettings("tile")
	if err != nil {
		return err
	}
	p := loops.TileableParams{
		NX:    viper.GetInt("tile.nx"),
		NY:    viper.GetInt("tile.ny"),
		XStep: viper.GetFloat64("tile.x_step"),
		YStep: viper.GetFloat64("tile.y_step"),
	}.WithDefaults()

	meta := s.metadata(loops.ModeTileable)
	meta.XStep, meta.YStep = p.XStep, p.YStep

	logger.Info("Starting tileable image generation",
		"nx", p.NX, "ny", p.NY,
		"source", s.source.Name(), "seed", s.seed, "dtype", s.dtype)

	if s.dtype == loops.Float32 {
		return produce(s, meta, p.NY, "rows", func(ctx context.Context, o loops.Options) (*sampler.Buffer[float32], error) {
			return loops.Tileable2D[float32](ctx, p, o)
		})
	}
	return produce(s, meta, p.NY, "rows", func(ctx context.Context, o loops.Options) (*sampler.Buffer[float64], error) {
		return loops.Tileable2D[float64](ctx, p, o)
	})
}

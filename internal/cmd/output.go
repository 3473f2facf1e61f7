package cmd

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noiseloops/internal/archive"
	"github.com/MeKo-Tech/noiseloops/internal/export"
	"github.com/MeKo-Tech/noiseloops/internal/loops"
	"github.com/MeKo-Tech/noiseloops/internal/noise"
	"github.com/MeKo-Tech/noiseloops/internal/sampler"
	"github.com/MeKo-Tech/noiseloops/internal/worker"
)

// Output formats accepted by --format.
const (
	formatPNG     = "png"
	formatGIF     = "gif"
	formatAPNG    = "apng"
	formatTIFF    = "tiff"
	formatNPY     = "npy"
	formatArchive = "archive"
)

var allFormats = []string{formatPNG, formatGIF, formatAPNG, formatTIFF, formatNPY, formatArchive}

// settings are the options shared by the generating commands.
type settings struct {
	source     noise.Source
	dtype      loops.DType
	outputDir  string
	name       string
	formats    []string
	seed       int64
	workers    int
	scale      int
	plotHeight int
	progress   bool
	verbose    bool
}

// addOutputFlags registers the output flags of a generating command under
// the viper section key.
func addOutputFlags(cmd *cobra.Command, key, defaultName, defaultFormat string) {
	cmd.Flags().String("name", defaultName, "Base name of the written files")
	cmd.Flags().String("format", defaultFormat, fmt.Sprintf("Comma-separated output formats (%s)", strings.Join(allFormats, ", ")))
	cmd.Flags().Int("scale", 1, "Integer upscale factor for image outputs (nearest neighbour)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{key + ".name", "name"},
		{key + ".format", "format"},
		{key + ".scale", "scale"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, cmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func loadSettings(key string) (settings, error) {
	src, err := loops.LookupSource(viper.GetString("source"))
	if err != nil {
		return settings{}, err
	}
	dtype, err := loops.ParseDType(viper.GetString("dtype"))
	if err != nil {
		return settings{}, err
	}
	formats, err := parseFormats(viper.GetString(key + ".format"))
	if err != nil {
		return settings{}, err
	}
	s := settings{
		source:     src,
		dtype:      dtype,
		outputDir:  viper.GetString("output-dir"),
		name:       viper.GetString(key + ".name"),
		formats:    formats,
		seed:       viper.GetInt64("seed"),
		workers:    viper.GetInt("workers"),
		scale:      viper.GetInt(key + ".scale"),
		plotHeight: viper.GetInt(key + ".plot_height"),
		progress:   viper.GetBool("progress"),
		verbose:    !viper.GetBool("quiet"),
	}
	if s.name == "" {
		return settings{}, fmt.Errorf("name must not be empty")
	}
	if s.scale < 1 {
		return settings{}, fmt.Errorf("scale must be at least 1, got %d", s.scale)
	}
	return s, nil
}

// parseFormats splits a comma-separated format list, dropping duplicates.
func parseFormats(s string) ([]string, error) {
	var formats []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		f := strings.ToLower(strings.TrimSpace(part))
		if f == "" {
			continue
		}
		known := false
		for _, a := range allFormats {
			if f == a {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown format %q (expected %s)", f, strings.Join(allFormats, ", "))
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("at least one output format is required")
	}
	return formats, nil
}

func (s settings) options(progress *worker.Progress) loops.Options {
	return loops.Options{
		Seed:     s.seed,
		Source:   s.source,
		Workers:  s.workers,
		Observer: progress,
		Logger:   logger,
		Verbose:  s.verbose,
	}
}

func (s settings) metadata(mode string) archive.Metadata {
	return archive.Metadata{
		Mode:    mode,
		Source:  s.source.Name(),
		DType:   string(s.dtype),
		Version: version,
		Seed:    s.seed,
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// produce runs gen with a progress bar over units and writes every
// requested output.
func produce[T sampler.Sample](
	s settings,
	meta archive.Metadata,
	units int,
	unitName string,
	gen func(context.Context, loops.Options) (*sampler.Buffer[T], error),
) error {
	ctx, cancel := signalContext()
	defer cancel()

	progress := worker.NewProgress(units, unitName, s.progress)
	buf, err := gen(ctx, s.options(progress))
	progress.Done()
	if err != nil {
		return err
	}
	logger.Info(progress.Summary())

	lo, hi := buf.Range()
	logger.Info("Noise sampled", "mode", meta.Mode, "shape", buf.Shape, "min", lo, "max", hi)

	paths, err := writeOutputs(s, meta, buf)
	if err != nil {
		return err
	}
	for _, p := range paths {
		logger.Debug("Wrote output", "path", p)
	}
	logger.Info("Output written", "dir", s.outputDir, "files", len(paths), "formats", strings.Join(s.formats, ","))
	return nil
}

// writeOutputs writes buf in every format of s and returns the paths.
func writeOutputs[T sampler.Sample](s settings, meta archive.Metadata, buf *sampler.Buffer[T]) ([]string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	base := filepath.Join(s.outputDir, s.name)

	var paths []string
	for _, format := range s.formats {
		switch format {
		case formatPNG:
			frames, err := export.Frames(buf)
			if err != nil {
				return paths, err
			}
			frames = export.UpscaleAll(frames, s.scale)
			if len(frames) == 1 {
				if err := export.WritePNG(base+".png", frames[0]); err != nil {
					return paths, err
				}
				paths = append(paths, base+".png")
				continue
			}
			written, err := export.WritePNGFrames(s.outputDir, s.name, frames)
			paths = append(paths, written...)
			if err != nil {
				return paths, err
			}

		case formatGIF, formatAPNG:
			frames, err := animationFrames(s, buf)
			if err != nil {
				return paths, err
			}
			if format == formatGIF {
				err = export.WriteGIF(base+".gif", frames, export.AnimationDelay)
				paths = append(paths, base+".gif")
			} else {
				err = export.WriteAPNG(base+".apng.png", frames)
				paths = append(paths, base+".apng.png")
			}
			if err != nil {
				return paths, err
			}

		case formatTIFF:
			written, err := writeTIFFs(base, buf)
			paths = append(paths, written...)
			if err != nil {
				return paths, err
			}

		case formatNPY:
			if err := export.WriteNPY(base+".npy", buf); err != nil {
				return paths, err
			}
			paths = append(paths, base+".npy")

		case formatArchive:
			path := base + ".noise"
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return paths, fmt.Errorf("failed to replace %s: %w", path, err)
			}
			if err := archive.Save(path, meta, buf); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// animationFrames renders one image per frame: images for a looping image
// stack, line plots for a curve stack.
func animationFrames[T sampler.Sample](s settings, buf *sampler.Buffer[T]) ([]*image.Gray, error) {
	if !buf.Layout.Animated() {
		return nil, fmt.Errorf("%v output cannot be animated", buf.Layout)
	}

	var (
		frames []*image.Gray
		err    error
	)
	if buf.Layout == sampler.LayoutFrames1D {
		height := s.plotHeight
		if height <= 0 {
			height = 256
		}
		frames, err = export.CurveFrames(buf, height)
	} else {
		frames, err = export.Frames(buf)
	}
	if err != nil {
		return nil, err
	}
	return export.UpscaleAll(frames, s.scale), nil
}

// writeTIFFs writes 16-bit grayscale TIFFs: one per frame of an image stack,
// one otherwise.
func writeTIFFs[T sampler.Sample](base string, buf *sampler.Buffer[T]) ([]string, error) {
	if buf.Layout != sampler.LayoutFrames2D {
		var img image.Image
		if buf.Layout == sampler.LayoutFrames1D {
			img = export.Gray16Image(buf.Data, buf.Width(), buf.Units())
		} else {
			img = export.Gray16Image(buf.Data, buf.Width(), buf.Height())
		}
		if err := export.WriteTIFF(base+".tiff", img); err != nil {
			return nil, err
		}
		return []string{base + ".tiff"}, nil
	}

	paths := make([]string, 0, buf.Units())
	for i := 0; i < buf.Units(); i++ {
		path := fmt.Sprintf("%s_%03d.tiff", base, i)
		if err := export.WriteTIFF(path, export.Gray16Image(buf.Unit(i), buf.Width(), buf.Height())); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

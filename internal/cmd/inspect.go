package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noiseloops/internal/archive"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Show the parameters of a noise archive and optionally extract it",
	Long: `Print the metadata stored in a noise archive. With --extract-dir the
frames are written as PNG files and the samples as a .npy file.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("extract-dir", "", "Write frames and samples into this directory")

	if err := viper.BindPFlag("inspect.extract_dir", inspectCmd.Flags().Lookup("extract-dir")); err != nil {
		panic(fmt.Sprintf("failed to bind flag extract-dir: %v", err))
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	r, err := archive.OpenReader(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	if err := printArchive(cmd.OutOrStdout(), r); err != nil {
		return err
	}

	dir := viper.GetString("inspect.extract_dir")
	if dir == "" {
		return nil
	}
	n, err := extractArchive(r, dir)
	if err != nil {
		return err
	}
	logger.Info("Archive extracted", "dir", dir, "frames", n)
	return nil
}

func printArchive(w io.Writer, r *archive.Reader) error {
	meta, err := r.Metadata()
	if err != nil {
		return err
	}
	n, err := r.FrameCount()
	if err != nil {
		return err
	}

	dims := make([]string, len(meta.Shape))
	for i, d := range meta.Shape {
		dims[i] = fmt.Sprint(d)
	}

	fmt.Fprintf(w, "mode:    %s\n", meta.Mode)
	fmt.Fprintf(w, "source:  %s\n", meta.Source)
	fmt.Fprintf(w, "seed:    %d\n", meta.Seed)
	fmt.Fprintf(w, "dtype:   %s\n", meta.DType)
	fmt.Fprintf(w, "shape:   %s\n", strings.Join(dims, " x "))
	if meta.TStep > 0 {
		fmt.Fprintf(w, "t_step:  %g\n", meta.TStep)
	}
	fmt.Fprintf(w, "x_step:  %g\n", meta.XStep)
	if meta.YStep > 0 {
		fmt.Fprintf(w, "y_step:  %g\n", meta.YStep)
	}
	fmt.Fprintf(w, "frames:  %d\n", n)
	if meta.Version != "" {
		fmt.Fprintf(w, "version: %s\n", meta.Version)
	}
	return nil
}

// extractArchive writes frame_NNN.png for every stored frame plus
// samples.npy into dir and returns the number of frames written.
func extractArchive(r *archive.Reader, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create extract dir: %w", err)
	}

	n, err := r.FrameCount()
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		data, err := r.ReadFrame(i)
		if err != nil {
			return i, err
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return i, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	samples, err := r.ReadArray(archive.SamplesArray)
	if err != nil {
		return n, err
	}
	path := filepath.Join(dir, archive.SamplesArray+".npy")
	if err := os.WriteFile(path, samples, 0o644); err != nil {
		return n, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return n, nil
}

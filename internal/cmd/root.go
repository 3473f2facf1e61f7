package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noiseloops/internal/noise"
)

var (
	cfgFile string
	logger  *slog.Logger

	// version is overridden at build time with -ldflags "-X".
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:     "noiseloops",
	Short:   "Seamlessly looping and tileable noise",
	Version: version,
	Long: `noiseloops samples 4-D gradient noise on circles to produce noise that
repeats without seams: image stacks that loop in time, closed curves that
loop in time, and images that tile in both directions.

Results can be written as PNG frames, GIF or APNG animations, 16-bit TIFF,
NumPy arrays or a single SQLite archive, and served over HTTP.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.String("output-dir", "./out", "Output directory for generated files")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.Bool("quiet", false, "Suppress the generation banner and timing lines")
	flags.Int64("seed", noise.DefaultSeed, "Noise seed")
	flags.String("source", noise.OpenSimplexName, fmt.Sprintf("Noise source (%s)", strings.Join(noise.Names(), ", ")))
	flags.Int("workers", 0, "Number of sampling workers (default: number of CPUs)")
	flags.String("dtype", "float64", "Sample precision (float64, float32)")
	flags.Bool("progress", true, "Show progress bar")

	for _, name := range []string{"output-dir", "verbose", "quiet", "seed", "source", "workers", "dtype", "progress"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("NOISELOOPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

func initLogging() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

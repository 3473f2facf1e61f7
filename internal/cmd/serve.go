package cmd

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noiseloops/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tileable images and looping animations rendered on demand",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("archive", "", "Noise archive whose frames are served under /frames/ (optional)")
	serveCmd.Flags().Int("max-concurrent-renders", runtime.NumCPU(), "Max concurrent renders (default: number of CPUs)")
	serveCmd.Flags().Duration("render-timeout", time.Minute, "Timeout per render")
	serveCmd.Flags().Int("max-size", 2048, "Largest accepted image width/height")
	serveCmd.Flags().Int("max-frames", 500, "Largest accepted animation frame count")
	serveCmd.Flags().Int("max-cells", server.DefaultMaxCells, "Largest accepted sample count per render (frames x size x size)")
	serveCmd.Flags().String("cache-control", "public, max-age=86400", "Cache-Control header for served images")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.archive", "archive")
	mustBind("serve.max_concurrent_renders", "max-concurrent-renders")
	mustBind("serve.render_timeout", "render-timeout")
	mustBind("serve.max_size", "max-size")
	mustBind("serve.max_frames", "max-frames")
	mustBind("serve.max_cells", "max-cells")
	mustBind("serve.cache_control", "cache-control")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	archivePath := viper.GetString("serve.archive")
	maxConc := viper.GetInt("serve.max_concurrent_renders")
	cacheControl := viper.GetString("serve.cache_control")

	nh, err := server.NewNoiseHandler(server.NoiseConfig{
		Seed:                 viper.GetInt64("seed"),
		Source:               viper.GetString("source"),
		MaxSize:              viper.GetInt("serve.max_size"),
		MaxFrames:            viper.GetInt("serve.max_frames"),
		MaxCells:             viper.GetInt("serve.max_cells"),
		MaxConcurrentRenders: maxConc,
		RenderTimeout:        viper.GetDuration("serve.render_timeout"),
		CacheControl:         cacheControl,
	}, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/status", nh.StatusHandler())

	noiseHandler := server.WithCORS(nh.Handler())
	mux.Handle("/tile.png", noiseHandler)
	mux.Handle("/loop.gif", noiseHandler)
	mux.Handle("/loop.png", noiseHandler)

	if archivePath != "" {
		ah, err := server.NewArchiveHandler(server.ArchiveConfig{
			ArchivePath:  archivePath,
			CacheControl: cacheControl,
		}, logger)
		if err != nil {
			return err
		}
		defer ah.Close()
		mux.Handle("/frames/", server.WithCORS(ah.Handler()))
	}

	logger.Info("noise server listening",
		"addr", addr,
		"archive", archivePath,
		"max_concurrent_renders", maxConc,
	)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return srv.ListenAndServe()
}

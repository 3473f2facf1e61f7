package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/noiseloops/internal/export"
	"github.com/MeKo-Tech/noiseloops/internal/loops"
	"github.com/MeKo-Tech/noiseloops/internal/noise"
)

// NoiseConfig configures on-demand noise rendering.
type NoiseConfig struct {
	// Seed is used when a request carries no seed parameter.
	Seed int64
	// Source is the default noise source name.
	Source string
	// MaxSize caps the width and height of a requested image (default: 2048).
	MaxSize int
	// MaxFrames caps the frame count of a requested animation (default: 500).
	MaxFrames int
	// MaxCells caps the samples of one render (default: DefaultMaxCells).
	MaxCells int
	// MaxConcurrentRenders limits simultaneous renders (default: number of CPUs).
	MaxConcurrentRenders int
	// RenderTimeout bounds one render (default: 1 minute).
	RenderTimeout time.Duration
	CacheControl  string
}

// RenderStatus reports render activity.
type RenderStatus struct {
	ActiveRenders  int64 `json:"active_renders"`
	QueuedRenders  int64 `json:"queued_renders"`
	TotalRenders   int64 `json:"total_renders"`
	FailedRenders  int64 `json:"failed_renders"`
	MaxConcurrency int   `json:"max_concurrency"`
}

// NoiseHandler renders tileable images and looping animations per request.
//
//	GET /tile.png?size=256&step=0.01&seed=3&source=opensimplex
//	GET /loop.gif?size=128&frames=50&tstep=0.1&step=0.02
//	GET /loop.png  (animated PNG, same parameters as loop.gif)
type NoiseHandler struct {
	cfg    NoiseConfig
	logger *slog.Logger
	sem    chan struct{}

	activeRenders atomic.Int64
	queuedRenders atomic.Int64
	totalRenders  atomic.Int64
	failedRenders atomic.Int64
}

// DefaultMaxCells bounds the samples of one render: 64 MiB of float32.
const DefaultMaxCells = 1 << 24

// NewNoiseHandler validates cfg, fills defaults and returns a handler.
func NewNoiseHandler(cfg NoiseConfig, logger *slog.Logger) (*NoiseHandler, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 2048
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 500
	}
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = DefaultMaxCells
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = runtime.NumCPU()
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = time.Minute
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "public, max-age=86400"
	}
	if _, err := loops.LookupSource(cfg.Source); err != nil {
		return nil, err
	}

	return &NoiseHandler{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentRenders),
	}, nil
}

// Handler returns the HTTP handler.
func (h *NoiseHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/tile.png", h.serveTile)
	mux.HandleFunc("/loop.gif", h.serveLoop)
	mux.HandleFunc("/loop.png", h.serveLoop)
	return mux
}

// Status returns a snapshot of render counters.
func (h *NoiseHandler) Status() RenderStatus {
	return RenderStatus{
		ActiveRenders:  h.activeRenders.Load(),
		QueuedRenders:  h.queuedRenders.Load(),
		TotalRenders:   h.totalRenders.Load(),
		FailedRenders:  h.failedRenders.Load(),
		MaxConcurrency: h.cfg.MaxConcurrentRenders,
	}
}

// StatusHandler serves Status as JSON.
func (h *NoiseHandler) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(h.Status()); err != nil {
			h.log().Error("failed to encode status", "error", err)
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
		}
	})
}

// request holds the parsed query of a render request.
type request struct {
	source noise.Source
	seed   int64
	size   int
	frames int
	step   float64
	tstep  float64
}

func (h *NoiseHandler) parseRequest(q url.Values, animated bool) (request, error) {
	req := request{
		seed:   h.cfg.Seed,
		size:   256,
		step:   loops.DefaultXStep,
		frames: 50,
		tstep:  loops.DefaultTStep,
	}
	if animated {
		req.size = 128
	}
	req.size = min(req.size, h.cfg.MaxSize)
	req.frames = min(req.frames, h.cfg.MaxFrames)

	name := q.Get("source")
	if name == "" {
		name = h.cfg.Source
	}
	src, err := loops.LookupSource(name)
	if err != nil {
		return request{}, err
	}
	req.source = src

	if v := q.Get("seed"); v != "" {
		if req.seed, err = strconv.ParseInt(v, 10, 64); err != nil {
			return request{}, fmt.Errorf("invalid seed %q", v)
		}
	}
	if v := q.Get("size"); v != "" {
		if req.size, err = strconv.Atoi(v); err != nil {
			return request{}, fmt.Errorf("invalid size %q", v)
		}
	}
	if req.size < 1 || req.size > h.cfg.MaxSize {
		return request{}, fmt.Errorf("size must be between 1 and %d, got %d", h.cfg.MaxSize, req.size)
	}
	if v := q.Get("step"); v != "" {
		if req.step, err = strconv.ParseFloat(v, 64); err != nil {
			return request{}, fmt.Errorf("invalid step %q", v)
		}
	}
	if animated {
		if v := q.Get("frames"); v != "" {
			if req.frames, err = strconv.Atoi(v); err != nil {
				return request{}, fmt.Errorf("invalid frames %q", v)
			}
		}
		if req.frames < 1 || req.frames > h.cfg.MaxFrames {
			return request{}, fmt.Errorf("frames must be between 1 and %d, got %d", h.cfg.MaxFrames, req.frames)
		}
		if v := q.Get("tstep"); v != "" {
			if req.tstep, err = strconv.ParseFloat(v, 64); err != nil {
				return request{}, fmt.Errorf("invalid tstep %q", v)
			}
		}
	}
	return req, nil
}

func (h *NoiseHandler) options(req request) loops.Options {
	return loops.Options{
		Seed:     req.seed,
		Source:   req.source,
		Workers:  1,
		Logger:   h.logger,
		MaxCells: h.cfg.MaxCells,
	}
}

func (h *NoiseHandler) serveTile(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r.URL.Query(), false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.render(w, r, "image/png", func(ctx context.Context) ([]byte, error) {
		buf, err := loops.Tileable2D[float32](ctx, loops.TileableParams{
			NX: req.size, NY: req.size, XStep: req.step, YStep: req.step,
		}, h.options(req))
		if err != nil {
			return nil, err
		}
		return export.EncodePNG(export.GrayImage(buf.Data, buf.Width(), buf.Height()))
	})
}

func (h *NoiseHandler) serveLoop(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r.URL.Query(), true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	asGIF := r.URL.Path == "/loop.gif"
	contentType := "image/apng"
	if asGIF {
		contentType = "image/gif"
	}

	h.render(w, r, contentType, func(ctx context.Context) ([]byte, error) {
		buf, err := loops.LoopingAnimated2D[float32](ctx, loops.LoopingImageParams{
			Frames: req.frames, NX: req.size, NY: req.size,
			TStep: req.tstep, XStep: req.step, YStep: req.step,
		}, h.options(req))
		if err != nil {
			return nil, err
		}
		frames, err := export.Frames(buf)
		if err != nil {
			return nil, err
		}
		var out bytes.Buffer
		if asGIF {
			err = export.EncodeGIF(&out, frames, export.AnimationDelay)
		} else {
			err = export.EncodeAPNG(&out, frames)
		}
		if err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	})
}

// render waits for a render slot, runs fn under the render timeout and
// writes the result.
func (h *NoiseHandler) render(w http.ResponseWriter, r *http.Request, contentType string, fn func(ctx context.Context) ([]byte, error)) {
	h.queuedRenders.Add(1)
	select {
	case h.sem <- struct{}{}:
		h.queuedRenders.Add(-1)
		defer func() { <-h.sem }()
	case <-r.Context().Done():
		h.queuedRenders.Add(-1)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	h.activeRenders.Add(1)
	defer h.activeRenders.Add(-1)
	h.totalRenders.Add(1)

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RenderTimeout)
	defer cancel()

	start := time.Now()
	data, err := fn(ctx)
	if err != nil {
		h.failedRenders.Add(1)
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, loops.ErrInvalidConfig), errors.Is(err, loops.ErrTooLarge):
			status = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			status = http.StatusServiceUnavailable
		}
		h.log().Error("render failed", "path", r.URL.Path, "query", r.URL.RawQuery, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	h.log().Debug("rendered", "path", r.URL.Path, "query", r.URL.RawQuery, "bytes", len(data), "elapsed", time.Since(start))

	w.Header().Set("Cache-Control", h.cfg.CacheControl)
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *NoiseHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

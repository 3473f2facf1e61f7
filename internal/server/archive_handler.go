package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/noiseloops/internal/archive"
)

// ArchiveHandler serves frames from a noise archive.
//
//	GET /frames/{index}.png
//	GET /frames/metadata.json
type ArchiveHandler struct {
	reader       *archive.Reader
	logger       *slog.Logger
	cacheControl string
}

// ArchiveConfig configures the archive handler.
type ArchiveConfig struct {
	ArchivePath  string
	CacheControl string
}

// NewArchiveHandler opens the archive at cfg.ArchivePath.
func NewArchiveHandler(cfg ArchiveConfig, logger *slog.Logger) (*ArchiveHandler, error) {
	reader, err := archive.OpenReader(cfg.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	return &ArchiveHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cfg.CacheControl,
	}, nil
}

// Handler returns the HTTP handler function.
func (h *ArchiveHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if path.Base(r.URL.Path) == "metadata.json" {
			h.serveMetadata(w)
			return
		}
		h.serveFrame(w, r)
	}
}

func (h *ArchiveHandler) serveFrame(w http.ResponseWriter, r *http.Request) {
	index, ok := parseFramePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := h.reader.ReadFrame(index)
	if errors.Is(err, archive.ErrNotFound) {
		http.Error(w, "Frame not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("Failed to read frame", "index", index, "error", err)
		http.Error(w, "Failed to read frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

type metadataResponse struct {
	Mode        string  `json:"mode,omitempty"`
	Source      string  `json:"source,omitempty"`
	DType       string  `json:"dtype,omitempty"`
	Description string  `json:"description,omitempty"`
	Shape       []int   `json:"shape"`
	Seed        int64   `json:"seed"`
	TStep       float64 `json:"t_step,omitempty"`
	XStep       float64 `json:"x_step,omitempty"`
	YStep       float64 `json:"y_step,omitempty"`
	Frames      int     `json:"frames"`
}

func (h *ArchiveHandler) serveMetadata(w http.ResponseWriter) {
	meta, err := h.reader.Metadata()
	if err != nil {
		h.log().Error("Failed to read metadata", "error", err)
		http.Error(w, "Failed to read metadata", http.StatusInternalServerError)
		return
	}
	n, err := h.reader.FrameCount()
	if err != nil {
		h.log().Error("Failed to count frames", "error", err)
		http.Error(w, "Failed to count frames", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", h.cacheControl)
	err = json.NewEncoder(w).Encode(metadataResponse{
		Mode:        meta.Mode,
		Source:      meta.Source,
		DType:       meta.DType,
		Description: meta.Description,
		Shape:       meta.Shape,
		Seed:        meta.Seed,
		TStep:       meta.TStep,
		XStep:       meta.XStep,
		YStep:       meta.YStep,
		Frames:      n,
	})
	if err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

// Close closes the archive reader.
func (h *ArchiveHandler) Close() error {
	return h.reader.Close()
}

func (h *ArchiveHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// parseFramePath parses a frame path like /frames/12.png.
func parseFramePath(requestPath string) (int, bool) {
	if !strings.HasPrefix(requestPath, "/frames/") {
		return 0, false
	}

	base := path.Base(requestPath)
	if !strings.HasSuffix(base, ".png") {
		return 0, false
	}

	index, err := strconv.Atoi(strings.TrimSuffix(base, ".png"))
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// WithCORS allows browser pages on other origins to fetch from next.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

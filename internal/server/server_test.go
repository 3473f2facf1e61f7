package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/gif"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/noiseloops/internal/archive"
	"github.com/MeKo-Tech/noiseloops/internal/sampler"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newNoiseHandler(t *testing.T) *NoiseHandler {
	t.Helper()
	h, err := NewNoiseHandler(NoiseConfig{Seed: 3, MaxSize: 64, MaxFrames: 8}, quietLogger())
	require.NoError(t, err)
	return h
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNewNoiseHandlerRejectsUnknownSource(t *testing.T) {
	_, err := NewNoiseHandler(NoiseConfig{Source: "perlin"}, nil)
	assert.Error(t, err)
}

func TestServeTile(t *testing.T) {
	h := newNoiseHandler(t)

	rec := get(t, h.Handler(), "/tile.png?size=16&step=0.05")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	again := get(t, h.Handler(), "/tile.png?size=16&step=0.05")
	assert.Equal(t, rec.Body.Bytes(), again.Body.Bytes(), "same query renders the same tile")

	other := get(t, h.Handler(), "/tile.png?size=16&step=0.05&seed=4")
	require.Equal(t, http.StatusOK, other.Code)
	assert.NotEqual(t, rec.Body.Bytes(), other.Body.Bytes())

	simplex := get(t, h.Handler(), "/tile.png?size=16&step=0.05&source=simplex")
	require.Equal(t, http.StatusOK, simplex.Code)
	assert.NotEqual(t, rec.Body.Bytes(), simplex.Body.Bytes())
}

func TestServeLoopGIF(t *testing.T) {
	h := newNoiseHandler(t)

	rec := get(t, h.Handler(), "/loop.gif?size=8&frames=4&tstep=0.2&step=0.1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))

	anim, err := gif.DecodeAll(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Len(t, anim.Image, 4)
	assert.Equal(t, 0, anim.LoopCount)
	for _, d := range anim.Delay {
		assert.Equal(t, 4, d)
	}
}

func TestServeLoopAPNG(t *testing.T) {
	h := newNoiseHandler(t)

	rec := get(t, h.Handler(), "/loop.png?size=8&frames=3")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/apng", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("acTL")))
}

func TestServeBadRequests(t *testing.T) {
	h := newNoiseHandler(t)

	tests := []string{
		"/tile.png?size=0",
		"/tile.png?size=65",
		"/tile.png?size=abc",
		"/tile.png?seed=x",
		"/tile.png?step=-1",
		"/tile.png?source=perlin",
		"/loop.gif?frames=9",
		"/loop.gif?frames=0",
		"/loop.gif?tstep=nope",
		"/loop.gif?size=8&tstep=0",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rec := get(t, h.Handler(), target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	assert.Equal(t, http.StatusNotFound, get(t, h.Handler(), "/tile.jpg").Code)
}

func TestServeLoopRejectsTooManyCells(t *testing.T) {
	h, err := NewNoiseHandler(NoiseConfig{Seed: 3, MaxSize: 64, MaxFrames: 50, MaxCells: 1000}, quietLogger())
	require.NoError(t, err)

	ok := get(t, h.Handler(), "/loop.gif?size=8&frames=8")
	assert.Equal(t, http.StatusOK, ok.Code, "512 cells fit")

	rec := get(t, h.Handler(), "/loop.gif?size=16&frames=8")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "2048 cells exceed the limit")
	assert.Contains(t, rec.Body.String(), "too large")

	assert.Equal(t, http.StatusBadRequest, get(t, h.Handler(), "/tile.png?size=40").Code)
}

func TestNewNoiseHandlerDefaultsMaxCells(t *testing.T) {
	h, err := NewNoiseHandler(NoiseConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxCells, h.cfg.MaxCells)
}

func TestStatusCounts(t *testing.T) {
	h := newNoiseHandler(t)

	get(t, h.Handler(), "/tile.png?size=4")
	get(t, h.Handler(), "/tile.png?size=4&step=0")

	rec := get(t, h.StatusHandler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status RenderStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, int64(2), status.TotalRenders)
	assert.Equal(t, int64(1), status.FailedRenders)
	assert.Zero(t, status.ActiveRenders)
	assert.Zero(t, status.QueuedRenders)
}

func newArchive(t *testing.T) string {
	t.Helper()
	buf, err := sampler.NewBuffer[float64](sampler.LayoutFrames2D, []int{2, 3, 5}, 0)
	require.NoError(t, err)
	for i := range buf.Data {
		buf.Data[i] = float64(i%7)/7 - 0.5
	}
	path := filepath.Join(t.TempDir(), "stack.noise")
	require.NoError(t, archive.Save(path, archive.Metadata{Mode: "looping-2d", Seed: 9, XStep: 0.01}, buf))
	return path
}

func TestArchiveHandler(t *testing.T) {
	h, err := NewArchiveHandler(ArchiveConfig{ArchivePath: newArchive(t), CacheControl: "no-store"}, quietLogger())
	require.NoError(t, err)
	defer h.Close()

	rec := get(t, h.Handler(), "/frames/1.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 3), img.Bounds())

	assert.Equal(t, http.StatusNotFound, get(t, h.Handler(), "/frames/2.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h.Handler(), "/frames/x.png").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h.Handler(), "/other/0.png").Code)

	rec = get(t, h.Handler(), "/frames/metadata.json")
	require.Equal(t, http.StatusOK, rec.Code)
	var meta metadataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, "looping-2d", meta.Mode)
	assert.Equal(t, []int{2, 3, 5}, meta.Shape)
	assert.Equal(t, int64(9), meta.Seed)
	assert.Equal(t, 2, meta.Frames)
}

func TestParseFramePath(t *testing.T) {
	t.Run("frame", func(t *testing.T) {
		index, ok := parseFramePath("/frames/12.png")
		if !ok {
			t.Fatalf("expected ok")
		}
		if index != 12 {
			t.Fatalf("expected 12, got %d", index)
		}
	})

	t.Run("reject negative", func(t *testing.T) {
		if _, ok := parseFramePath("/frames/-1.png"); ok {
			t.Fatalf("expected not ok")
		}
	})

	t.Run("reject non-png", func(t *testing.T) {
		if _, ok := parseFramePath("/frames/1.gif"); ok {
			t.Fatalf("expected not ok")
		}
	})
}

func TestWithCORS(t *testing.T) {
	called := false
	handler := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/tile.png", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)

	get(t, handler, "/tile.png")
	assert.True(t, called)
}

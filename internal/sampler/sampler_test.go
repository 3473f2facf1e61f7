package sampler

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/noiseloops/internal/embed"
	"github.com/MeKo-Tech/noiseloops/internal/noise"
)

// analyticField is a bounded closed-form stand-in for real noise.
type analyticField struct{}

func (analyticField) Eval4(x, y, z, w float64) float64 {
	return math.Sin(x+2*y) * math.Cos(z-w) * 0.5
}

type fieldFunc func(x, y, z, w float64) float64

func (f fieldFunc) Eval4(x, y, z, w float64) float64 { return f(x, y, z, w) }

type recordingObserver struct {
	mu    sync.Mutex
	calls [][2]int
}

func (r *recordingObserver) OnProgress(completed, total int) {
	r.mu.Lock()
	r.calls = append(r.calls, [2]int{completed, total})
	r.mu.Unlock()
}

func TestNewBufferShapes(t *testing.T) {
	tests := []struct {
		layout Layout
		shape  []int
		len    int
		units  int
		width  int
		height int
	}{
		{LayoutFrames2D, []int{3, 4, 5}, 60, 3, 5, 4},
		{LayoutFrames1D, []int{8, 16}, 128, 8, 16, 1},
		{LayoutTile2D, []int{6, 2}, 12, 6, 2, 6},
	}
	for _, tt := range tests {
		t.Run(tt.layout.String(), func(t *testing.T) {
			buf, err := NewBuffer[float64](tt.layout, tt.shape, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, buf.Shape)
			assert.Equal(t, tt.len, buf.Len())
			assert.Equal(t, tt.units, buf.Units())
			assert.Equal(t, tt.width, buf.Width())
			assert.Equal(t, tt.height, buf.Height())
			assert.Len(t, buf.Unit(tt.units-1), tt.len/tt.units)
		})
	}
}

func TestLayoutAnimated(t *testing.T) {
	assert.True(t, LayoutFrames2D.Animated())
	assert.True(t, LayoutFrames1D.Animated())
	assert.False(t, LayoutTile2D.Animated())
}

func TestNewBufferRejects(t *testing.T) {
	_, err := NewBuffer[float32](LayoutFrames2D, []int{2, 2}, 0)
	assert.Error(t, err, "rank mismatch")

	_, err = NewBuffer[float32](Layout(0), []int{2, 2}, 0)
	assert.Error(t, err, "unknown layout")

	_, err = NewBuffer[float32](LayoutTile2D, []int{0, 2}, 0)
	assert.Error(t, err, "zero dimension")

	_, err = NewBuffer[float32](LayoutTile2D, []int{100, 100}, 9999)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = NewBuffer[float32](LayoutFrames2D, []int{math.MaxInt / 2, 4, 4}, math.MaxInt)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestBufferAtAndRange(t *testing.T) {
	buf, err := NewBuffer[float64](LayoutFrames2D, []int{2, 3, 4}, 0)
	require.NoError(t, err)
	for i := range buf.Data {
		buf.Data[i] = float64(i) - 5
	}

	assert.Equal(t, float64(1*12+2*4+3)-5, buf.At(1, 2, 3))
	assert.Panics(t, func() { buf.At(2, 0, 0) })
	assert.Panics(t, func() { buf.At(0, 0) })

	lo, hi := buf.Range()
	assert.Equal(t, -5.0, lo)
	assert.Equal(t, 18.0, hi)
}

func TestFillMatchesDirectEvaluation(t *testing.T) {
	emb, err := embed.NewPlaneTime(4, 0.2, 0.1, 0.3)
	require.NoError(t, err)

	buf, err := NewBuffer[float64](LayoutFrames2D, []int{4, 3, 5}, 0)
	require.NoError(t, err)
	require.NoError(t, Fill(context.Background(), buf, analyticField{}, emb, Config{Workers: 3}))

	f := analyticField{}
	for frame := 0; frame < 4; frame++ {
		for py := 0; py < 3; py++ {
			for px := 0; px < 5; px++ {
				c := emb.Coord(frame, py, px)
				assert.Equal(t, f.Eval4(c.X, c.Y, c.Z, c.W), buf.At(frame, py, px))
			}
		}
	}
}

func TestFillTileUsesRowsAsUnits(t *testing.T) {
	emb, err := embed.NewTorus(5, 3, 0.1, 0.2)
	require.NoError(t, err)

	buf, err := NewBuffer[float64](LayoutTile2D, []int{3, 5}, 0)
	require.NoError(t, err)

	obs := &recordingObserver{}
	require.NoError(t, Fill(context.Background(), buf, analyticField{}, emb, Config{Workers: 2, Observer: obs}))

	f := analyticField{}
	c := emb.Coord(0, 2, 4)
	assert.Equal(t, f.Eval4(c.X, c.Y, c.Z, c.W), buf.At(2, 4))

	require.Len(t, obs.calls, 3)
	for i, call := range obs.calls {
		assert.Equal(t, [2]int{i + 1, 3}, call)
	}
}

func TestFillNarrowsAfterFullPrecision(t *testing.T) {
	emb, err := embed.NewRingTime(3, 7, 0.1, 0.05)
	require.NoError(t, err)

	b64, err := NewBuffer[float64](LayoutFrames1D, []int{3, 7}, 0)
	require.NoError(t, err)
	b32, err := NewBuffer[float32](LayoutFrames1D, []int{3, 7}, 0)
	require.NoError(t, err)

	field := noise.Simplex{}.Derive(11)
	require.NoError(t, Fill(context.Background(), b64, field, emb, Config{}))
	require.NoError(t, Fill(context.Background(), b32, field, emb, Config{}))

	for i := range b64.Data {
		assert.Equal(t, float32(b64.Data[i]), b32.Data[i])
	}
}

func TestFillIndependentOfWorkerCount(t *testing.T) {
	emb, err := embed.NewPlaneTime(6, 0.1, 0.05, 0.05)
	require.NoError(t, err)
	field := noise.OpenSimplex{}.Derive(3)

	var reference []float64
	for _, workers := range []int{1, 2, 5, 16} {
		buf, err := NewBuffer[float64](LayoutFrames2D, []int{6, 4, 4}, 0)
		require.NoError(t, err)
		require.NoError(t, Fill(context.Background(), buf, field, emb, Config{Workers: workers}))
		if reference == nil {
			reference = buf.Data
			continue
		}
		assert.Equal(t, reference, buf.Data, "workers=%d", workers)
	}
}

func TestFillRejectsNonFiniteNoise(t *testing.T) {
	emb, err := embed.NewTorus(4, 4, 0.1, 0.1)
	require.NoError(t, err)
	buf, err := NewBuffer[float64](LayoutTile2D, []int{4, 4}, 0)
	require.NoError(t, err)

	field := fieldFunc(func(x, y, z, w float64) float64 { return math.NaN() })
	err = Fill(context.Background(), buf, field, emb, Config{Workers: 2})
	require.ErrorIs(t, err, ErrNoiseFailure)
	assert.Contains(t, err.Error(), "y=0", "lowest failing unit is reported")
}

func TestFillReportsPanickingNoise(t *testing.T) {
	emb, err := embed.NewRingTime(4, 4, 0.1, 0.1)
	require.NoError(t, err)
	buf, err := NewBuffer[float32](LayoutFrames1D, []int{4, 4}, 0)
	require.NoError(t, err)

	field := fieldFunc(func(x, y, z, w float64) float64 { panic("table corrupted") })
	err = Fill(context.Background(), buf, field, emb, Config{Workers: 2})
	require.ErrorIs(t, err, ErrNoiseFailure)
	assert.Contains(t, err.Error(), "table corrupted")
}

func TestFillHonoursCancelledContext(t *testing.T) {
	emb, err := embed.NewTorus(4, 4, 0.1, 0.1)
	require.NoError(t, err)
	buf, err := NewBuffer[float64](LayoutTile2D, []int{4, 4}, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = Fill(ctx, buf, analyticField{}, emb, Config{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFillRequiresCollaborators(t *testing.T) {
	buf, err := NewBuffer[float64](LayoutTile2D, []int{1, 1}, 0)
	require.NoError(t, err)
	assert.Error(t, Fill(context.Background(), buf, nil, embed.Torus{}, Config{}))
}

func TestObserverFunc(t *testing.T) {
	var got [2]int
	var obs Observer = ObserverFunc(func(c, total int) { got = [2]int{c, total} })
	obs.OnProgress(2, 9)
	assert.Equal(t, [2]int{2, 9}, got)
}

func TestFillReportsNoiseFailureOverCancellation(t *testing.T) {
	emb, err := embed.NewTorus(4, 4, 0.1, 0.1)
	require.NoError(t, err)
	buf, err := NewBuffer[float64](LayoutTile2D, []int{4, 4}, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	field := fieldFunc(func(x, y, z, w float64) float64 {
		cancel()
		return math.Inf(1)
	})

	err = Fill(ctx, buf, field, emb, Config{Workers: 1})
	require.ErrorIs(t, err, ErrNoiseFailure)
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestFillReportsOnlySuccessfulUnits(t *testing.T) {
	emb, err := embed.NewTorus(4, 4, 0.1, 0.1)
	require.NoError(t, err)
	buf, err := NewBuffer[float64](LayoutTile2D, []int{4, 4}, 0)
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	field := fieldFunc(func(x, y, z, w float64) float64 {
		mu.Lock()
		defer mu.Unlock()
		calls++
		// The first row of four cells succeeds, the second fails.
		if calls > 4 {
			return math.NaN()
		}
		return 0
	})

	obs := &recordingObserver{}
	err = Fill(context.Background(), buf, field, emb, Config{Workers: 1, Observer: obs})
	require.ErrorIs(t, err, ErrNoiseFailure)

	require.Len(t, obs.calls, 1)
	assert.Equal(t, [2]int{1, 4}, obs.calls[0])
}

func TestFillReportsNothingWhenCancelledUpFront(t *testing.T) {
	emb, err := embed.NewTorus(4, 4, 0.1, 0.1)
	require.NoError(t, err)
	buf, err := NewBuffer[float64](LayoutTile2D, []int{4, 4}, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	obs := &recordingObserver{}
	require.Error(t, Fill(ctx, buf, analyticField{}, emb, Config{Workers: 2, Observer: obs}))
	assert.Empty(t, obs.calls)
}

package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func assertCoordNear(t *testing.T, want, got Coord) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, "X")
	assert.InDelta(t, want.Y, got.Y, tol, "Y")
	assert.InDelta(t, want.Z, got.Z, tol, "Z")
	assert.InDelta(t, want.W, got.W, tol, "W")
}

func TestNewCircleRadius(t *testing.T) {
	c, err := NewCircle(0.1, 200)
	require.NoError(t, err)
	assert.InDelta(t, 0.1*200/(2*math.Pi), c.Radius, tol)
	assert.InDelta(t, 2*math.Pi/200, c.Angle, tol)

	// Chord length between neighbours approaches the step for large counts.
	x0, y0 := c.At(0)
	x1, y1 := c.At(1)
	assert.InDelta(t, 0.1, math.Hypot(x1-x0, y1-y0), 1e-4)
}

func TestCircleWrapsAfterOnePeriod(t *testing.T) {
	for _, count := range []int{2, 3, 7, 16, 200, 1000} {
		c, err := NewCircle(0.05, count)
		require.NoError(t, err)

		x0, y0 := c.At(0)
		xn, yn := c.At(count)
		assert.InDelta(t, x0, xn, tol, "count=%d", count)
		assert.InDelta(t, y0, yn, tol, "count=%d", count)
	}
}

func TestCircleCountOneCollapses(t *testing.T) {
	c, err := NewCircle(0.3, 1)
	require.NoError(t, err)
	assert.Zero(t, c.Angle)

	x, y := c.At(0)
	assert.InDelta(t, c.Radius, x, tol)
	assert.Zero(t, y)

	x1, y1 := c.At(1)
	assert.Equal(t, x, x1)
	assert.Equal(t, y, y1)
}

func TestNewCircleRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		step  float64
		count int
	}{
		{"zero count", 0.1, 0},
		{"negative count", 0.1, -4},
		{"zero step", 0, 8},
		{"negative step", -0.5, 8},
		{"nan step", math.NaN(), 8},
		{"inf step", math.Inf(1), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCircle(tt.step, tt.count)
			assert.Error(t, err)
		})
	}
}

func TestPlaneTimeLoopsInTime(t *testing.T) {
	e, err := NewPlaneTime(50, 0.1, 0.04, 0.02)
	require.NoError(t, err)

	assertCoordNear(t, e.Coord(0, 3, 5), e.Coord(50, 3, 5))

	c := e.Coord(7, 3, 5)
	assert.InDelta(t, 5*0.04, c.X, tol)
	assert.InDelta(t, 3*0.02, c.Y, tol)
	assert.InDelta(t, e.Time.Radius, math.Hypot(c.Z, c.W), tol)
}

func TestPlaneTimeRejectsBadSpatialStep(t *testing.T) {
	_, err := NewPlaneTime(10, 0.1, 0, 0.1)
	assert.Error(t, err)
	_, err = NewPlaneTime(10, 0.1, 0.1, -1)
	assert.Error(t, err)
	_, err = NewPlaneTime(0, 0.1, 0.1, 0.1)
	assert.Error(t, err)
}

func TestRingTimeClosesAndLoops(t *testing.T) {
	e, err := NewRingTime(8, 16, 0.1, 0.05)
	require.NoError(t, err)

	assertCoordNear(t, e.Coord(2, 0, 0), e.Coord(2, 0, 16))
	assertCoordNear(t, e.Coord(0, 0, 9), e.Coord(8, 0, 9))

	c := e.Coord(3, 99, 4)
	assert.InDelta(t, e.Space.Radius, math.Hypot(c.X, c.Y), tol)
	assert.Equal(t, c, e.Coord(3, 0, 4), "y index is ignored")
}

func TestTorusTilesBothAxes(t *testing.T) {
	e, err := NewTorus(4, 4, 0.1, 0.1)
	require.NoError(t, err)

	for py := 0; py < 4; py++ {
		assertCoordNear(t, e.Coord(0, py, 0), e.Coord(0, py, 4))
	}
	for px := 0; px < 4; px++ {
		assertCoordNear(t, e.Coord(0, 0, px), e.Coord(0, 4, px))
	}
	assert.Equal(t, e.Coord(0, 1, 2), e.Coord(5, 1, 2), "frame index is ignored")
}

func TestTorusIndependentAxes(t *testing.T) {
	e, err := NewTorus(10, 5, 0.1, 0.3)
	require.NoError(t, err)

	assert.InDelta(t, 0.1*10/(2*math.Pi), e.XCircle.Radius, tol)
	assert.InDelta(t, 0.3*5/(2*math.Pi), e.YCircle.Radius, tol)

	a := e.Coord(0, 2, 3)
	b := e.Coord(0, 4, 3)
	assert.Equal(t, a.X, b.X)
	assert.Equal(t, a.Y, b.Y)
	assert.NotEqual(t, a.Z, b.Z)
}

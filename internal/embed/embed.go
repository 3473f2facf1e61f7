// Package embed maps discrete output indices onto circles in 4-D space.
//
// A circle traversed in count equal angular steps returns to its starting
// point at index count, so noise sampled along it wraps without a seam.
// The radius is chosen so the arc length between neighbouring indices equals
// the configured linear step, which keeps feature size independent of count.
package embed

import (
	"fmt"
	"math"
)

// Coord is a point in the 4-D noise domain.
type Coord struct {
	X, Y, Z, W float64
}

// Circle embeds an index range of a given period onto a circle.
type Circle struct {
	Radius float64
	// Angle is the angular step per index, zero for a period of one.
	Angle float64
}

// NewCircle returns the circle for count indices spaced step apart along the
// circumference. A count of 1 collapses the circle to the point at angle 0.
func NewCircle(step float64, count int) (Circle, error) {
	if err := validateAxis("step", step, count); err != nil {
		return Circle{}, err
	}
	c := Circle{Radius: step * float64(count) / (2 * math.Pi)}
	if count > 1 {
		c.Angle = 2 * math.Pi / float64(count)
	}
	return c, nil
}

// At returns the (cos, sin) pair for index i scaled by the radius.
func (c Circle) At(i int) (float64, float64) {
	theta := float64(i) * c.Angle
	return c.Radius * math.Cos(theta), c.Radius * math.Sin(theta)
}

// Embedder computes the coordinate of one output cell. Indices that the mode
// does not use are ignored.
type Embedder interface {
	Coord(frame, py, px int) Coord
}

// PlaneTime lays pixels on a plane in the first two dimensions and frames on
// a circle in the last two. It backs looping animated 2-D images.
type PlaneTime struct {
	XStep, YStep float64
	Time         Circle
}

// NewPlaneTime validates the steps and builds the time circle.
func NewPlaneTime(frames int, tStep, xStep, yStep float64) (PlaneTime, error) {
	if err := validateStep("x_step", xStep); err != nil {
		return PlaneTime{}, err
	}
	if err := validateStep("y_step", yStep); err != nil {
		return PlaneTime{}, err
	}
	tc, err := NewCircle(tStep, frames)
	if err != nil {
		return PlaneTime{}, fmt.Errorf("time axis: %w", err)
	}
	return PlaneTime{XStep: xStep, YStep: yStep, Time: tc}, nil
}

func (e PlaneTime) Coord(frame, py, px int) Coord {
	z, w := e.Time.At(frame)
	return Coord{X: float64(px) * e.XStep, Y: float64(py) * e.YStep, Z: z, W: w}
}

// RingTime closes the pixel axis into a circle in the first two dimensions and
// puts frames on a circle in the last two. It backs looping closed 1-D curves.
type RingTime struct {
	Space Circle
	Time  Circle
}

// NewRingTime builds both circles.
func NewRingTime(frames, pixels int, tStep, xStep float64) (RingTime, error) {
	tc, err := NewCircle(tStep, frames)
	if err != nil {
		return RingTime{}, fmt.Errorf("time axis: %w", err)
	}
	sc, err := NewCircle(xStep, pixels)
	if err != nil {
		return RingTime{}, fmt.Errorf("x axis: %w", err)
	}
	return RingTime{Space: sc, Time: tc}, nil
}

func (e RingTime) Coord(frame, _, px int) Coord {
	x, y := e.Space.At(px)
	z, w := e.Time.At(frame)
	return Coord{X: x, Y: y, Z: z, W: w}
}

// Torus puts each pixel axis on its own circle, giving an image that tiles in
// both directions.
type Torus struct {
	XCircle, YCircle Circle
}

// NewTorus builds the x and y circles.
func NewTorus(nx, ny int, xStep, yStep float64) (Torus, error) {
	xc, err := NewCircle(xStep, nx)
	if err != nil {
		return Torus{}, fmt.Errorf("x axis: %w", err)
	}
	yc, err := NewCircle(yStep, ny)
	if err != nil {
		return Torus{}, fmt.Errorf("y axis: %w", err)
	}
	return Torus{XCircle: xc, YCircle: yc}, nil
}

func (e Torus) Coord(_, py, px int) Coord {
	x, y := e.XCircle.At(px)
	z, w := e.YCircle.At(py)
	return Coord{X: x, Y: y, Z: z, W: w}
}

func validateAxis(name string, step float64, count int) error {
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}
	return validateStep(name, step)
}

func validateStep(name string, step float64) error {
	if math.IsNaN(step) || math.IsInf(step, 0) {
		return fmt.Errorf("%s must be finite, got %v", name, step)
	}
	if step <= 0 {
		return fmt.Errorf("%s must be positive, got %v", name, step)
	}
	return nil
}

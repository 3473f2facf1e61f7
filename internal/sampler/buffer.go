package sampler

import (
	"errors"
	"fmt"
	"math"
)

// Sample is the storage precision of a buffer. Noise is always computed in
// float64 and narrowed on store.
type Sample interface {
	~float32 | ~float64
}

// Layout names the axes of a buffer, outermost first.
type Layout int

const (
	// LayoutFrames2D is [frames, y, x].
	LayoutFrames2D Layout = iota + 1
	// LayoutFrames1D is [frames, x].
	LayoutFrames1D
	// LayoutTile2D is [y, x].
	LayoutTile2D
)

func (l Layout) String() string {
	switch l {
	case LayoutFrames2D:
		return "frames-2d"
	case LayoutFrames1D:
		return "frames-1d"
	case LayoutTile2D:
		return "tile-2d"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Rank is the number of axes of the layout.
func (l Layout) Rank() int {
	switch l {
	case LayoutFrames2D:
		return 3
	case LayoutFrames1D, LayoutTile2D:
		return 2
	default:
		return 0
	}
}

// Animated reports whether the outer axis is time.
func (l Layout) Animated() bool {
	return l == LayoutFrames2D || l == LayoutFrames1D
}

// DefaultMaxCells bounds the element count of a single buffer.
const DefaultMaxCells = 1 << 30

// ErrTooLarge is returned when a requested shape exceeds the cell budget.
var ErrTooLarge = errors.New("buffer too large")

// Buffer is a dense row-major array of noise samples.
type Buffer[T Sample] struct {
	Layout Layout
	Shape  []int
	Data   []T
}

// NewBuffer allocates a zeroed buffer. maxCells <= 0 selects DefaultMaxCells.
// The size check happens before any allocation.
func NewBuffer[T Sample](layout Layout, shape []int, maxCells int) (*Buffer[T], error) {
	if layout.Rank() == 0 {
		return nil, fmt.Errorf("unknown layout %v", layout)
	}
	if len(shape) != layout.Rank() {
		return nil, fmt.Errorf("layout %v needs %d dimensions, got %d", layout, layout.Rank(), len(shape))
	}
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}

	cells := 1
	for i, n := range shape {
		if n <= 0 {
			return nil, fmt.Errorf("dimension %d must be positive, got %d", i, n)
		}
		if cells > math.MaxInt/n {
			return nil, fmt.Errorf("%w: shape %v overflows", ErrTooLarge, shape)
		}
		cells *= n
	}
	if cells > maxCells {
		return nil, fmt.Errorf("%w: shape %v has %d cells, limit is %d", ErrTooLarge, shape, cells, maxCells)
	}

	return &Buffer[T]{
		Layout: layout,
		Shape:  append([]int(nil), shape...),
		Data:   make([]T, cells),
	}, nil
}

// Len returns the number of elements.
func (b *Buffer[T]) Len() int { return len(b.Data) }

// Units returns the size of the outermost axis: frames, or rows for a tile.
func (b *Buffer[T]) Units() int { return b.Shape[0] }

// UnitLen returns the number of elements in one outer unit.
func (b *Buffer[T]) UnitLen() int { return len(b.Data) / b.Shape[0] }

// Unit returns the slice holding outer unit i (one frame or one row).
func (b *Buffer[T]) Unit(i int) []T {
	n := b.UnitLen()
	return b.Data[i*n : (i+1)*n : (i+1)*n]
}

// Width is the size of the innermost axis.
func (b *Buffer[T]) Width() int { return b.Shape[len(b.Shape)-1] }

// Height is the y size for 2-D layouts and 1 for curves.
func (b *Buffer[T]) Height() int {
	switch b.Layout {
	case LayoutFrames2D:
		return b.Shape[1]
	case LayoutTile2D:
		return b.Shape[0]
	default:
		return 1
	}
}

// At returns the element at the given index, one value per axis.
func (b *Buffer[T]) At(idx ...int) T {
	if len(idx) != len(b.Shape) {
		panic(fmt.Sprintf("sampler: At needs %d indices, got %d", len(b.Shape), len(idx)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= b.Shape[i] {
			panic(fmt.Sprintf("sampler: index %d out of range [0,%d) on axis %d", v, b.Shape[i], i))
		}
		off = off*b.Shape[i] + v
	}
	return b.Data[off]
}

// Range returns the smallest and largest element.
func (b *Buffer[T]) Range() (lo, hi T) {
	if len(b.Data) == 0 {
		return 0, 0
	}
	lo, hi = b.Data[0], b.Data[0]
	for _, v := range b.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

package loops

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MeKo-Tech/noiseloops/internal/noise"
	"github.com/MeKo-Tech/noiseloops/internal/sampler"
)

// ErrInvalidConfig marks parameters rejected before any noise is evaluated.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrTooLarge is returned when the requested shape exceeds the cell budget.
var ErrTooLarge = sampler.ErrTooLarge

// Defaults used by the command line when a value is not configured.
const (
	DefaultFrames = 200
	DefaultPixels = 1000
	DefaultTStep  = 0.1
	DefaultXStep  = 0.01
)

// LoopingImageParams describes a stack of 2-D images looping in time.
// Zero NY and YStep take the values of NX and XStep.
type LoopingImageParams struct {
	Frames int
	NX     int
	NY     int
	TStep  float64
	XStep  float64
	YStep  float64
}

// WithDefaults fills NY and YStep from NX and XStep when unset.
func (p LoopingImageParams) WithDefaults() LoopingImageParams {
	if p.NY == 0 {
		p.NY = p.NX
	}
	if p.YStep == 0 {
		p.YStep = p.XStep
	}
	return p
}

// Validate checks counts and steps after defaulting.
func (p LoopingImageParams) Validate() error {
	return validate(
		[]count{{"frames", p.Frames}, {"nx", p.NX}, {"ny", p.NY}},
		[]step{{"t_step", p.TStep}, {"x_step", p.XStep}, {"y_step", p.YStep}},
	)
}

// LoopingCurveParams describes a stack of closed 1-D curves looping in time.
type LoopingCurveParams struct {
	Frames int
	NX     int
	TStep  float64
	XStep  float64
}

// Validate checks counts and steps.
func (p LoopingCurveParams) Validate() error {
	return validate(
		[]count{{"frames", p.Frames}, {"nx", p.NX}},
		[]step{{"t_step", p.TStep}, {"x_step", p.XStep}},
	)
}

// TileableParams describes a single image that tiles along both axes.
// Zero NY and YStep take the values of NX and XStep.
type TileableParams struct {
	NX    int
	NY    int
	XStep float64
	YStep float64
}

// WithDefaults fills NY and YStep from NX and XStep when unset.
func (p TileableParams) WithDefaults() TileableParams {
	if p.NY == 0 {
		p.NY = p.NX
	}
	if p.YStep == 0 {
		p.YStep = p.XStep
	}
	return p
}

// Validate checks counts and steps after defaulting.
func (p TileableParams) Validate() error {
	return validate(
		[]count{{"nx", p.NX}, {"ny", p.NY}},
		[]step{{"x_step", p.XStep}, {"y_step", p.YStep}},
	)
}

type count struct {
	name string
	n    int
}

type step struct {
	name string
	v    float64
}

func validate(counts []count, steps []step) error {
	var problems []string
	for _, c := range counts {
		if c.n <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %d", c.name, c.n))
		}
	}
	for _, s := range steps {
		switch {
		case math.IsNaN(s.v) || math.IsInf(s.v, 0):
			problems = append(problems, fmt.Sprintf("%s must be finite, got %v", s.name, s.v))
		case s.v <= 0:
			problems = append(problems, fmt.Sprintf("%s must be positive, got %v", s.name, s.v))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Options are the generation settings shared by every mode.
type Options struct {
	Seed int64
	// Source defaults to noise.Default().
	Source noise.Source
	// Workers defaults to runtime.NumCPU().
	Workers  int
	Observer sampler.Observer
	// Logger receives the start and timing lines when Verbose is set.
	Logger  *slog.Logger
	Verbose bool
	// MaxCells defaults to sampler.DefaultMaxCells.
	MaxCells int
}

func (o Options) source() noise.Source {
	if o.Source == nil {
		return noise.Default()
	}
	return o.Source
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// DType selects the storage precision of generated buffers.
type DType string

const (
	Float64 DType = "float64"
	Float32 DType = "float32"
)

// ParseDType accepts float64/double and float32/single (case-insensitive).
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "float64", "double", "f64":
		return Float64, nil
	case "float32", "single", "f32":
		return Float32, nil
	default:
		return "", fmt.Errorf("%w: unsupported dtype %q (want float32 or float64)", ErrInvalidConfig, s)
	}
}

// LookupSource resolves a noise source by name, reporting unknown names as
// ErrInvalidConfig.
func LookupSource(name string) (noise.Source, error) {
	src, err := noise.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return src, nil
}

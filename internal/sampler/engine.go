// Package sampler fills noise buffers by evaluating a field at embedded
// coordinates.
//
// Cells are visited frame, then y, then x. Each outer unit (a frame, or a row
// of a tileable image) is an independent task for the worker pool and writes
// a disjoint slice of the buffer, so the output does not depend on the number
// of workers.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/MeKo-Tech/noiseloops/internal/embed"
	"github.com/MeKo-Tech/noiseloops/internal/noise"
	"github.com/MeKo-Tech/noiseloops/internal/worker"
)

// ErrNoiseFailure marks a noise evaluation that panicked or produced a
// non-finite value.
var ErrNoiseFailure = errors.New("noise evaluation failed")

// Observer receives progress after each successfully completed unit. Calls
// are serialised and completed grows by one per call up to total. Failed
// units and units skipped after cancellation are not reported.
type Observer interface {
	OnProgress(completed, total int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(completed, total int)

func (f ObserverFunc) OnProgress(completed, total int) { f(completed, total) }

// Config controls how a buffer is filled.
type Config struct {
	// Workers is the number of goroutines; zero selects runtime.NumCPU.
	Workers  int
	Observer Observer
}

// Fill evaluates field at every cell of buf using emb to place the cell in
// 4-D space. On error the buffer contents are unspecified.
func Fill[T Sample](ctx context.Context, buf *Buffer[T], field noise.Field, emb embed.Embedder, cfg Config) error {
	if buf == nil || field == nil || emb == nil {
		return fmt.Errorf("sampler: buffer, field and embedder are required")
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	units := buf.Units()
	var onProgress worker.ProgressFunc
	if cfg.Observer != nil {
		obs := cfg.Observer
		reported := 0
		onProgress = func(completed, total, failed int) {
			if ok := completed - failed; ok > reported {
				reported = ok
				obs.OnProgress(ok, total)
			}
		}
	}

	pool := worker.New(worker.Config{
		Workers: workers,
		Runner: worker.RunnerFunc(func(ctx context.Context, unit int) error {
			return fillUnit(buf, unit, field, emb)
		}),
		OnProgress: onProgress,
	})

	tasks := make([]worker.Task, units)
	for i := range tasks {
		tasks[i] = worker.Task{Unit: i}
	}

	return firstError(ctx, pool.Run(ctx, tasks))
}

// firstError reports the failure of the lowest-numbered unit so that the
// error is stable across runs. A noise failure outranks cancellation.
func firstError(ctx context.Context, results []worker.Result) error {
	var failed []worker.Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i].Task.Unit < failed[j].Task.Unit })
	for _, r := range failed {
		if isContextError(r.Err) {
			continue
		}
		var pe *worker.PanicError
		if errors.As(r.Err, &pe) {
			return fmt.Errorf("%w: %v", ErrNoiseFailure, pe)
		}
		return r.Err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return failed[0].Err
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func fillUnit[T Sample](buf *Buffer[T], unit int, field noise.Field, emb embed.Embedder) error {
	dst := buf.Unit(unit)
	width := buf.Width()

	switch buf.Layout {
	case LayoutFrames2D:
		for py := 0; py < buf.Shape[1]; py++ {
			row := dst[py*width : (py+1)*width]
			if err := fillRow(row, unit, py, field, emb); err != nil {
				return err
			}
		}
		return nil
	case LayoutFrames1D:
		return fillRow(dst, unit, 0, field, emb)
	case LayoutTile2D:
		return fillRow(dst, 0, unit, field, emb)
	default:
		return fmt.Errorf("sampler: unknown layout %v", buf.Layout)
	}
}

func fillRow[T Sample](row []T, frame, py int, field noise.Field, emb embed.Embedder) error {
	for px := range row {
		c := emb.Coord(frame, py, px)
		v := field.Eval4(c.X, c.Y, c.Z, c.W)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v at frame=%d y=%d x=%d", ErrNoiseFailure, v, frame, py, px)
		}
		row[px] = T(v)
	}
	return nil
}

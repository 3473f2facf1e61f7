package archive

import (
	"bytes"
	"fmt"

	"github.com/MeKo-Tech/noiseloops/internal/export"
	"github.com/MeKo-Tech/noiseloops/internal/sampler"
)

// Save writes buf to a new archive at path: one PNG per rendered frame and
// the raw samples under SamplesArray. meta.Shape is taken from buf.
func Save[T sampler.Sample](path string, meta Metadata, buf *sampler.Buffer[T]) error {
	frames, err := export.Frames(buf)
	if err != nil {
		return err
	}
	meta.Shape = append([]int(nil), buf.Shape...)

	w, err := New(path, meta)
	if err != nil {
		return err
	}

	for i, f := range frames {
		data, err := export.EncodePNG(f)
		if err != nil {
			w.Close()
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if err := w.WriteFrame(i, data); err != nil {
			w.Close()
			return err
		}
	}

	var npy bytes.Buffer
	if err := export.EncodeNPY(&npy, buf); err != nil {
		w.Close()
		return fmt.Errorf("failed to encode samples: %w", err)
	}
	if err := w.WriteArray(SamplesArray, npy.Bytes()); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

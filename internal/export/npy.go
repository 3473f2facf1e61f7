package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/noiseloops/internal/sampler"
)

const npyMagic = "\x93NUMPY"

// EncodeNPY writes buf as a NumPy .npy version 1.0 array, little-endian and
// C-ordered, so the shape matches the buffer's axes.
func EncodeNPY[T sampler.Sample](w io.Writer, buf *sampler.Buffer[T]) error {
	var zero T
	var descr string
	switch binary.Size(zero) {
	case 4:
		descr = "<f4"
	case 8:
		descr = "<f8"
	default:
		return fmt.Errorf("unsupported sample size %d", binary.Size(zero))
	}

	header := npyHeader(descr, buf.Shape)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(npyMagic); err != nil {
		return err
	}
	if _, err := bw.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	if _, err := bw.WriteString(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, buf.Data); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return bw.Flush()
}

// npyHeader renders the dictionary header padded so that the data starts on
// a 64-byte boundary.
func npyHeader(descr string, shape []int) string {
	dims := make([]string, len(shape))
	for i, n := range shape {
		dims[i] = strconv.Itoa(n)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}

	h := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, tuple)
	// magic(6) + version(2) + length(2) + header + newline
	total := len(npyMagic) + 2 + 2 + len(h) + 1
	if pad := (64 - total%64) % 64; pad > 0 {
		h += strings.Repeat(" ", pad)
	}
	return h + "\n"
}

// WriteNPY writes buf to path as a .npy file.
func WriteNPY[T sampler.Sample](path string, buf *sampler.Buffer[T]) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeNPY(w, buf)
	})
}

// Package archive stores a generated noise stack in a single SQLite file:
// every frame as a gzip-compressed PNG plus the full-precision samples as a
// NumPy array, together with the parameters that reproduce them.
package archive

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata describes how an archived stack was generated.
type Metadata struct {
	Mode        string // looping-2d, looping-closed-1d or tileable-2d
	Source      string // noise source name
	DType       string // float32 or float64
	Description string
	Version     string
	Shape       []int
	Seed        int64
	TStep       float64
	XStep       float64
	YStep       float64
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Mode != "" {
		result["mode"] = m.Mode
	}
	if m.Source != "" {
		result["source"] = m.Source
	}
	if m.DType != "" {
		result["dtype"] = m.DType
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	if len(m.Shape) > 0 {
		dims := make([]string, len(m.Shape))
		for i, n := range m.Shape {
			dims[i] = strconv.Itoa(n)
		}
		result["shape"] = strings.Join(dims, ",")
	}
	result["seed"] = strconv.FormatInt(m.Seed, 10)
	if m.TStep > 0 {
		result["t_step"] = strconv.FormatFloat(m.TStep, 'g', -1, 64)
	}
	if m.XStep > 0 {
		result["x_step"] = strconv.FormatFloat(m.XStep, 'g', -1, 64)
	}
	if m.YStep > 0 {
		result["y_step"] = strconv.FormatFloat(m.YStep, 'g', -1, 64)
	}

	return result
}

// metadataFromMap parses the metadata table. Unparseable values are
// reported rather than silently dropped.
func metadataFromMap(values map[string]string) (Metadata, error) {
	meta := Metadata{
		Mode:        values["mode"],
		Source:      values["source"],
		DType:       values["dtype"],
		Description: values["description"],
		Version:     values["version"],
	}

	if v, ok := values["shape"]; ok && v != "" {
		for _, part := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return Metadata{}, fmt.Errorf("invalid shape %q: %w", v, err)
			}
			meta.Shape = append(meta.Shape, n)
		}
	}
	if v, ok := values["seed"]; ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("invalid seed %q: %w", v, err)
		}
		meta.Seed = seed
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"t_step", &meta.TStep},
		{"x_step", &meta.XStep},
		{"y_step", &meta.YStep},
	}
	for _, f := range floats {
		v, ok := values[f.key]
		if !ok {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Metadata{}, fmt.Errorf("invalid %s %q: %w", f.key, v, err)
		}
		*f.dst = parsed
	}

	return meta, nil
}

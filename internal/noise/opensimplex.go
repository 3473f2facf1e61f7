package noise

import (
	"github.com/ojrac/opensimplex-go"
)

// OpenSimplex is the default source, backed by the OpenSimplex algorithm.
type OpenSimplex struct{}

func (OpenSimplex) Name() string { return OpenSimplexName }

// Derive builds the OpenSimplex permutation tables for seed.
func (OpenSimplex) Derive(seed int64) Field {
	return opensimplex.New(seed)
}

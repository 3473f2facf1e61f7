package noise

import (
	"math"
	"math/rand"
)

// Simplex is a 4-D simplex noise source driven by an explicit permutation
// table shuffled from the seed.
type Simplex struct{}

func (Simplex) Name() string { return SimplexName }

// Derive shuffles a permutation table for seed.
func (Simplex) Derive(seed int64) Field {
	return NewPermutationTable(seed)
}

// Skew and unskew factors for four dimensions: (sqrt(5)-1)/4 and (5-sqrt(5))/20.
const (
	skew4   = 0.30901699437494745
	unskew4 = 0.1381966011250105
)

// PermutationTable holds a doubled 256-entry permutation so that chained
// lookups never need wrapping.
type PermutationTable struct {
	perm [512]uint8
}

// NewPermutationTable derives the table for seed with a Fisher-Yates shuffle.
func NewPermutationTable(seed int64) *PermutationTable {
	r := rand.New(rand.NewSource(seed))
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	for i := 255; i > 0; i-- {
		j := r.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}

	t := &PermutationTable{}
	for i := range t.perm {
		t.perm[i] = p[i&255]
	}
	return t
}

// Eval4 returns simplex noise at (x, y, z, w).
func (t *PermutationTable) Eval4(x, y, z, w float64) float64 {
	p := [4]float64{x, y, z, w}

	s := (x + y + z + w) * skew4
	var cell [4]int
	for a := range p {
		cell[a] = fastFloor(p[a] + s)
	}
	u := float64(cell[0]+cell[1]+cell[2]+cell[3]) * unskew4

	var d0 [4]float64
	for a := range p {
		d0[a] = p[a] - (float64(cell[a]) - u)
	}

	// Rank the axes by offset magnitude to pick the simplex we are in.
	var rank [4]int
	for a := 0; a < 4; a++ {
		for b := a + 1; b < 4; b++ {
			if d0[a] > d0[b] {
				rank[a]++
			} else {
				rank[b]++
			}
		}
	}

	var sum float64
	for c := 0; c <= 4; c++ {
		var off [4]int
		var d [4]float64
		for a := range d {
			if rank[a] >= 4-c {
				off[a] = 1
			}
			d[a] = d0[a] - float64(off[a]) + float64(c)*unskew4
		}
		sum += t.contribution(cell, off, d)
	}

	return 27.0 * sum
}

func (t *PermutationTable) contribution(cell, off [4]int, d [4]float64) float64 {
	falloff := 0.6 - d[0]*d[0] - d[1]*d[1] - d[2]*d[2] - d[3]*d[3]
	if falloff <= 0 {
		return 0
	}
	g := grad4[t.gradientIndex(cell, off)]
	falloff *= falloff
	return falloff * falloff * (g[0]*d[0] + g[1]*d[1] + g[2]*d[2] + g[3]*d[3])
}

func (t *PermutationTable) gradientIndex(cell, off [4]int) int {
	h := int(t.perm[cell[3]&255+off[3]])
	h = int(t.perm[cell[2]&255+off[2]+h])
	h = int(t.perm[cell[1]&255+off[1]+h])
	h = int(t.perm[cell[0]&255+off[0]+h])
	return h % len(grad4)
}

func fastFloor(x float64) int {
	if x >= 0 {
		return int(x)
	}
	return int(math.Floor(x))
}

var grad4 = [32][4]float64{
	{0, 1, 1, 1}, {0, 1, 1, -1}, {0, 1, -1, 1}, {0, 1, -1, -1},
	{0, -1, 1, 1}, {0, -1, 1, -1}, {0, -1, -1, 1}, {0, -1, -1, -1},
	{1, 0, 1, 1}, {1, 0, 1, -1}, {1, 0, -1, 1}, {1, 0, -1, -1},
	{-1, 0, 1, 1}, {-1, 0, 1, -1}, {-1, 0, -1, 1}, {-1, 0, -1, -1},
	{1, 1, 0, 1}, {1, 1, 0, -1}, {1, -1, 0, 1}, {1, -1, 0, -1},
	{-1, 1, 0, 1}, {-1, 1, 0, -1}, {-1, -1, 0, 1}, {-1, -1, 0, -1},
	{1, 1, 1, 0}, {1, 1, -1, 0}, {1, -1, 1, 0}, {1, -1, -1, 0},
	{-1, 1, 1, 0}, {-1, 1, -1, 0}, {-1, -1, 1, 0}, {-1, -1, -1, 0},
}

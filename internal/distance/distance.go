// Package distance computes Euclidean distance matrices between sets of embeddings.
package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MinSquaredDistance is the floor applied to squared distances before the square root.
// Rounding in the norm expansion can produce tiny negative values otherwise.
const MinSquaredDistance = 1e-12

var (
	// ErrShapeMismatch is returned when the two embedding sets differ in dimension
	// or a set contains rows of different lengths.
	ErrShapeMismatch = errors.New("embedding shape mismatch")

	// ErrEmpty is returned when an embedding set has no rows or zero-length rows.
	ErrEmpty = errors.New("empty embedding set")
)

// Pairwise returns the m×n matrix of Euclidean distances between the rows of a (m×D)
// and the rows of b (n×D). It expands ‖a-b‖² = ‖a‖² + ‖b‖² - 2·a·b so the cross term
// is a single matrix product.
func Pairwise(a, b mat.Matrix) (*mat.Dense, error) {
	m, da := a.Dims()
	n, db := b.Dims()
	if da != db {
		return nil, fmt.Errorf("%w: %d vs %d columns", ErrShapeMismatch, da, db)
	}
	if m == 0 || n == 0 || da == 0 {
		return nil, ErrEmpty
	}

	aNorms := squaredNorms(a, m)
	bNorms := squaredNorms(b, n)

	dist := mat.NewDense(m, n, nil)
	dist.Mul(a, b.T())
	dist.Apply(func(i, j int, dot float64) float64 {
		return clampedSqrt(-2*dot + aNorms[i] + bNorms[j])
	}, dist)

	return dist, nil
}

// PairwiseHost is the row-at-a-time counterpart of Pairwise for plain slices.
// Both use the same expansion and clamp, so results agree within floating tolerance.
func PairwiseHost(a, b [][]float32) ([][]float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, ErrEmpty
	}
	dim := len(a[0])
	if dim == 0 {
		return nil, ErrEmpty
	}

	a64, err := widen(a, dim)
	if err != nil {
		return nil, err
	}
	b64, err := widen(b, dim)
	if err != nil {
		return nil, err
	}

	bNorms := make([]float64, len(b64))
	for j, row := range b64 {
		bNorms[j] = vek.Dot(row, row)
	}

	out := make([][]float64, len(a64))
	for i, row := range a64 {
		aNorm := vek.Dot(row, row)
		dists := make([]float64, len(b64))
		for j, other := range b64 {
			dists[j] = clampedSqrt(-2*vek.Dot(row, other) + aNorm + bNorms[j])
		}
		out[i] = dists
	}
	return out, nil
}

// FromEmbeddings copies embeddings into a dense row-major matrix.
func FromEmbeddings(embeddings [][]float32) (*mat.Dense, error) {
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, ErrEmpty
	}
	dim := len(embeddings[0])
	data := make([]float64, 0, len(embeddings)*dim)
	for i, e := range embeddings {
		if len(e) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(e), dim)
		}
		for _, v := range e {
			data = append(data, float64(v))
		}
	}
	return mat.NewDense(len(embeddings), dim, data), nil
}

func squaredNorms(x mat.Matrix, rows int) []float64 {
	norms := make([]float64, rows)
	var row []float64
	for i := range rows {
		row = mat.Row(row, i, x)
		norms[i] = floats.Dot(row, row)
	}
	return norms
}

func widen(rows [][]float32, dim int) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(r), dim)
		}
		w := make([]float64, dim)
		for k, v := range r {
			w[k] = float64(v)
		}
		out[i] = w
	}
	return out, nil
}

func clampedSqrt(squared float64) float64 {
	return math.Sqrt(max(squared, MinSquaredDistance))
}

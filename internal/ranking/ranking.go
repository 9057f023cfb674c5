// Package ranking orders gallery candidates by distance to a query and aggregates
// the rankings into mAP@k and CMC statistics.
package ranking

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/kozaktomas/reid-eval/internal/distance"
	"gonum.org/v1/gonum/mat"
)

// CMCHorizon is the fixed number of ranks the CMC curve covers.
const CMCHorizon = 20

var (
	// ErrEmptyQuerySet is returned when an aggregate is requested over zero queries.
	ErrEmptyQuerySet = errors.New("empty query set")

	// ErrLengthMismatch is returned when parallel inputs differ in length.
	ErrLengthMismatch = errors.New("ranking inputs differ in length")
)

// Result is the ranked candidate pool of a single query.
type Result struct {
	QueryLabel int
	// Labels, Indices and Distances are ordered by ascending distance.
	Labels    []int
	Indices   []int
	Distances []float64
}

// Rank sorts the pool by Euclidean distance to the query. Ties keep pool order.
func Rank(queryLabel int, query []float32, pool [][]float32, poolLabels []int) (Result, error) {
	if len(pool) != len(poolLabels) {
		return Result{}, fmt.Errorf("%w: %d candidates, %d labels", ErrLengthMismatch, len(pool), len(poolLabels))
	}
	dist, err := distance.PairwiseHost([][]float32{query}, pool)
	if err != nil {
		return Result{}, fmt.Errorf("computing distances: %w", err)
	}
	return rankRow(queryLabel, dist[0], poolLabels), nil
}

// RankMatrix ranks every row of a precomputed query × pool distance matrix.
func RankMatrix(dist mat.Matrix, queryLabels, poolLabels []int) ([]Result, error) {
	rows, cols := dist.Dims()
	if rows != len(queryLabels) || cols != len(poolLabels) {
		return nil, fmt.Errorf("%w: matrix %dx%d, %d query labels, %d pool labels",
			ErrLengthMismatch, rows, cols, len(queryLabels), len(poolLabels))
	}

	results := make([]Result, rows)
	for i := range rows {
		results[i] = rankRow(queryLabels[i], mat.Row(nil, i, dist), poolLabels)
	}
	return results, nil
}

// RankedLabels projects the label sequence of each result.
func RankedLabels(results []Result) (queryLabels []int, ranked [][]int) {
	queryLabels = make([]int, len(results))
	ranked = make([][]int, len(results))
	for i, r := range results {
		queryLabels[i] = r.QueryLabel
		ranked[i] = r.Labels
	}
	return queryLabels, ranked
}

func rankRow(queryLabel int, dists []float64, poolLabels []int) Result {
	order := make([]int, len(dists))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(dists[a], dists[b])
	})

	r := Result{
		QueryLabel: queryLabel,
		Labels:     make([]int, len(order)),
		Indices:    order,
		Distances:  make([]float64, len(order)),
	}
	for pos, idx := range order {
		r.Labels[pos] = poolLabels[idx]
		r.Distances[pos] = dists[idx]
	}
	return r
}

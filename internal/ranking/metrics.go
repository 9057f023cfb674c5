package ranking

import "fmt"

// AveragePrecisionAtK walks the first min(k, len(ranked)) labels and averages the
// precision at every position that matches label.
//
// The sum is divided by the number of matches found within the cutoff, not by the
// number of relevant items in the whole pool. Returns 0 when nothing matches.
func AveragePrecisionAtK(label int, ranked []int, k int) float64 {
	relevant := 0
	sum := 0.0
	for i := range min(k, len(ranked)) {
		if ranked[i] == label {
			relevant++
			sum += float64(relevant) / float64(i+1)
		}
	}
	if relevant == 0 {
		return 0
	}
	return sum / float64(relevant)
}

// MeanAveragePrecisionAtK is the arithmetic mean of AveragePrecisionAtK over all queries.
// Rank@1 is MeanAveragePrecisionAtK with k = 1.
func MeanAveragePrecisionAtK(labels []int, ranked [][]int, k int) (float64, error) {
	if len(labels) != len(ranked) {
		return 0, fmt.Errorf("%w: %d labels, %d rankings", ErrLengthMismatch, len(labels), len(ranked))
	}
	if len(labels) == 0 {
		return 0, ErrEmptyQuerySet
	}

	total := 0.0
	for i, label := range labels {
		total += AveragePrecisionAtK(label, ranked[i], k)
	}
	return total / float64(len(labels)), nil
}

// CMCResult is a cumulative match characteristic over CMCHorizon ranks.
type CMCResult struct {
	// Curve[r] is the fraction of queries whose first correct match is at rank r+1 or better.
	Curve []float64
	// FirstRanks holds the 1-indexed first correct rank of every query that had one.
	FirstRanks []int
}

// CMC computes the cumulative match curve. Position 0 of every ranking is the query
// itself when the gallery contains the query set, so the search starts at position 1
// and a query can first match at rank 2.
func CMC(labels []int, ranked [][]int) (CMCResult, error) {
	if len(labels) != len(ranked) {
		return CMCResult{}, fmt.Errorf("%w: %d labels, %d rankings", ErrLengthMismatch, len(labels), len(ranked))
	}
	if len(labels) == 0 {
		return CMCResult{}, ErrEmptyQuerySet
	}

	matches := make([]float64, CMCHorizon)
	var firstRanks []int
	for i, label := range labels {
		for j := 1; j < min(len(ranked[i]), CMCHorizon); j++ {
			if ranked[i][j] == label {
				matches[j]++
				firstRanks = append(firstRanks, j+1)
				break
			}
		}
	}

	curve := make([]float64, CMCHorizon)
	cumulative := 0.0
	for r, m := range matches {
		cumulative += m
		curve[r] = cumulative / float64(len(labels))
	}
	return CMCResult{Curve: curve, FirstRanks: firstRanks}, nil
}

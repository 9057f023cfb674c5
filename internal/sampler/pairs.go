package sampler

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBatch is returned when no identity in a batch has two samples.
	ErrInsufficientBatch = errors.New("insufficient batch: no identity with at least two samples")

	// ErrLengthMismatch is returned when embeddings and labels differ in length.
	ErrLengthMismatch = errors.New("embeddings and labels differ in length")
)

// Pair is two batch samples together with whether they share an identity.
// IndexA and IndexB point back into the source batch.
type Pair struct {
	A      []float32
	B      []float32
	Same   bool
	IndexA int
	IndexB int
}

// PairSet holds the same-identity and different-identity pools of one batch.
type PairSet struct {
	Same []Pair
	Diff []Pair
	// Skipped lists identities that had fewer than two samples.
	Skipped []int
}

// Balanced truncates both pools to the smaller count so the binary test set has as
// many positives as negatives. The result lists same pairs first, then different
// pairs, with labels 1 and 0 respectively.
func (s PairSet) Balanced() ([]Pair, []float64) {
	n := min(len(s.Same), len(s.Diff))
	pairs := make([]Pair, 0, 2*n)
	pairs = append(pairs, s.Same[:n]...)
	pairs = append(pairs, s.Diff[:n]...)

	labels := make([]float64, 2*n)
	for i := range n {
		labels[i] = 1
	}
	return pairs, labels
}

// IndexPairs returns the (IndexA, IndexB) bookkeeping of pairs in order.
func IndexPairs(pairs []Pair) [][2]int {
	out := make([][2]int, len(pairs))
	for i, p := range pairs {
		out[i] = [2]int{p.IndexA, p.IndexB}
	}
	return out
}

// SelectPairs builds same and different identity pairs from a batch of P identities
// with K samples each. Identities are taken in order of first appearance, capped at
// p identities and k samples. Same pairs are all unordered pairs within an identity.
// Different pairs walk identity offsets 1..P-1 and join slot s with slot s, so the
// nearest identities come first and any prefix covers the whole batch.
//
// Identities with fewer than two samples are skipped. ErrInsufficientBatch is
// returned only when no identity is left.
func SelectPairs(embeddings [][]float32, labels []int, p, k int) (PairSet, error) {
	if len(embeddings) != len(labels) {
		return PairSet{}, fmt.Errorf("%w: %d embeddings, %d labels", ErrLengthMismatch, len(embeddings), len(labels))
	}
	if p <= 0 || k <= 0 {
		return PairSet{}, fmt.Errorf("%w: P=%d K=%d", ErrInvalidBatchShape, p, k)
	}

	var set PairSet
	groups := make([][]int, 0, p)
	for _, g := range groupByLabel(labels) {
		if len(groups) == p {
			break
		}
		if len(g.indices) < 2 {
			set.Skipped = append(set.Skipped, g.label)
			continue
		}
		if len(g.indices) > k {
			g.indices = g.indices[:k]
		}
		groups = append(groups, g.indices)
	}
	if len(groups) == 0 {
		return set, ErrInsufficientBatch
	}

	for _, g := range groups {
		for i := 0; i < len(g); i++ {
			for j := i + 1; j < len(g); j++ {
				set.Same = append(set.Same, newPair(embeddings, g[i], g[j], true))
			}
		}
	}

	for offset := 1; offset < len(groups); offset++ {
		for g := 0; g+offset < len(groups); g++ {
			a, b := groups[g], groups[g+offset]
			for s := range min(len(a), len(b)) {
				set.Diff = append(set.Diff, newPair(embeddings, a[s], b[s], false))
			}
		}
	}

	return set, nil
}

type labelGroup struct {
	label   int
	indices []int
}

func groupByLabel(labels []int) []labelGroup {
	pos := make(map[int]int)
	var groups []labelGroup
	for i, l := range labels {
		gi, ok := pos[l]
		if !ok {
			gi = len(groups)
			pos[l] = gi
			groups = append(groups, labelGroup{label: l})
		}
		groups[gi].indices = append(groups[gi].indices, i)
	}
	return groups
}

func newPair(embeddings [][]float32, a, b int, same bool) Pair {
	return Pair{
		A:      embeddings[a],
		B:      embeddings[b],
		Same:   same,
		IndexA: a,
		IndexB: b,
	}
}

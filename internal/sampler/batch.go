// Package sampler builds identity-balanced batches and same/different identity pairs.
package sampler

import (
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
)

// ErrInvalidBatchShape is returned when P or K is not positive.
var ErrInvalidBatchShape = errors.New("invalid batch shape")

// BatchSampler yields batches of P identities with K dataset indices each.
// Every call to Batches starts a new epoch with freshly shuffled identities.
type BatchSampler struct {
	identities []int
	pools      map[int][]int
	p, k       int
	rng        *rand.Rand
}

// NewBatchSampler creates a sampler over an identity -> dataset indices mapping.
// Identities without any index are ignored. The random source makes epochs reproducible.
func NewBatchSampler(identities map[int][]int, p, k int, rng *rand.Rand) (*BatchSampler, error) {
	if p <= 0 || k <= 0 {
		return nil, fmt.Errorf("%w: P=%d K=%d", ErrInvalidBatchShape, p, k)
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}

	s := &BatchSampler{
		pools: make(map[int][]int, len(identities)),
		p:     p,
		k:     k,
		rng:   rng,
	}
	for id, idx := range identities {
		if len(idx) == 0 {
			continue
		}
		s.identities = append(s.identities, id)
		s.pools[id] = slices.Clone(idx)
	}
	// Map iteration order is random; sort so the seed alone decides the epoch order.
	slices.Sort(s.identities)
	return s, nil
}

// Len returns the number of batches per epoch.
func (s *BatchSampler) Len() int {
	return len(s.identities) / s.p
}

// BatchSize returns P*K.
func (s *BatchSampler) BatchSize() int {
	return s.p * s.k
}

// Batches returns one epoch of batches. Identities with at least K indices are
// sampled without replacement, smaller pools are padded by sampling with replacement.
func (s *BatchSampler) Batches() iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		order := slices.Clone(s.identities)
		s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, id := range order {
			pool := s.pools[id]
			s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		}

		for b := range s.Len() {
			batch := make([]int, 0, s.BatchSize())
			for _, id := range order[b*s.p : (b+1)*s.p] {
				batch = append(batch, s.pick(s.pools[id])...)
			}
			if !yield(batch) {
				return
			}
		}
	}
}

func (s *BatchSampler) pick(pool []int) []int {
	out := make([]int, s.k)
	if len(pool) >= s.k {
		for i, j := range s.rng.Perm(len(pool))[:s.k] {
			out[i] = pool[j]
		}
		return out
	}
	for i := range out {
		out[i] = pool[s.rng.IntN(len(pool))]
	}
	return out
}

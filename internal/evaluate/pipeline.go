package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/kozaktomas/reid-eval/internal/metrics"
	"github.com/kozaktomas/reid-eval/internal/model"
	"github.com/kozaktomas/reid-eval/internal/sampler"
)

// Embedder turns preprocessed images into embeddings.
type Embedder interface {
	Embed(ctx context.Context, images [][]byte) ([][]float32, error)
}

// Source is an image dataset indexed by position.
type Source interface {
	Identities() map[int][]int
	Labels(indices []int) []int
	Load(i int, spec model.Spec) ([]byte, error)
}

// Batch is one embedded P x K batch.
type Batch struct {
	Indices    []int
	Labels     []int
	Embeddings [][]float32
}

// Pipeline samples a batch from a dataset, embeds it and evaluates it.
type Pipeline struct {
	Source    Source
	Embedder  Embedder
	Spec      model.Spec
	Evaluator *Evaluator
	Rand      *rand.Rand
}

// RunBatch evaluates the first batch of a fresh epoch.
func (p *Pipeline) RunBatch(ctx context.Context) (*metrics.Report, *Batch, error) {
	batch, err := p.EmbedBatch(ctx)
	if err != nil {
		return nil, nil, err
	}
	report, err := p.Evaluator.Evaluate(ctx, batch.Embeddings, batch.Labels)
	if err != nil {
		return nil, batch, err
	}
	return report, batch, nil
}

// EmbedBatch draws one P x K batch and embeds its images.
func (p *Pipeline) EmbedBatch(ctx context.Context) (*Batch, error) {
	opts := p.Evaluator.Options
	bs, err := sampler.NewBatchSampler(p.Source.Identities(), opts.P, opts.K, p.Rand)
	if err != nil {
		return nil, fmt.Errorf("creating batch sampler: %w", err)
	}

	var indices []int
	for b := range bs.Batches() {
		indices = b
		break
	}
	if indices == nil {
		return nil, errors.New("dataset has fewer identities than one batch needs")
	}

	images := make([][]byte, len(indices))
	for i, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := p.Source.Load(idx, p.Spec)
		if err != nil {
			return nil, fmt.Errorf("loading image: %w", err)
		}
		images[i] = img
	}

	embeddings, err := p.Embedder.Embed(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("embedding batch: %w", err)
	}
	return &Batch{Indices: indices, Labels: p.Source.Labels(indices), Embeddings: embeddings}, nil
}

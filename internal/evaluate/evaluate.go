// Package evaluate ties the distance engine, ranking, pair sampling and metric
// aggregation together into one evaluation run.
package evaluate

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/reid-eval/internal/distance"
	"github.com/kozaktomas/reid-eval/internal/metrics"
	"github.com/kozaktomas/reid-eval/internal/ranking"
	"github.com/kozaktomas/reid-eval/internal/sampler"
)

var (
	// ErrProbabilityCount is returned when scored pairs and probabilities differ in length.
	ErrProbabilityCount = errors.New("probability count does not match pair count")
	// ErrProbabilityRange is returned for a probability outside [0, 1] or NaN.
	ErrProbabilityRange = errors.New("probability outside [0, 1]")
)

// Classifier scores embedding pairs with the probability that both show the same person.
type Classifier interface {
	Classify(ctx context.Context, pairs []sampler.Pair) ([]float64, error)
}

// Options control one evaluation run.
type Options struct {
	P         int
	K         int
	TopK      int
	Threshold float64
}

// DefaultOptions matches the batch shape the models are trained with.
func DefaultOptions() Options {
	return Options{P: 18, K: 5, TopK: 5, Threshold: 0.5}
}

// Evaluator computes ranking and verification metrics over one batch of embeddings.
type Evaluator struct {
	// Classifier is optional. Without it only ranking metrics are computed.
	Classifier Classifier
	Options    Options
	// Model is recorded in every report.
	Model string
}

// Evaluate ranks every embedding against the whole batch, then classifies balanced
// same/different pairs and aggregates the verification metrics.
func (e *Evaluator) Evaluate(ctx context.Context, embeddings [][]float32, labels []int) (*metrics.Report, error) {
	report, err := e.rank(embeddings, labels)
	if err != nil {
		return nil, err
	}
	if e.Classifier == nil {
		return report, nil
	}

	pairs, err := e.Pairs(embeddings, labels)
	if err != nil {
		return nil, err
	}
	probabilities, err := e.Classifier.Classify(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("classifying pairs: %w", err)
	}
	if err := e.score(report, pairs, probabilities); err != nil {
		return nil, err
	}
	return report, nil
}

// EvaluateScored is Evaluate for callers that already hold classifier outputs for
// pairs, typically the result of Pairs.
func (e *Evaluator) EvaluateScored(embeddings [][]float32, labels []int, pairs []sampler.Pair, probabilities []float64) (*metrics.Report, error) {
	report, err := e.rank(embeddings, labels)
	if err != nil {
		return nil, err
	}
	if err := e.score(report, pairs, probabilities); err != nil {
		return nil, err
	}
	return report, nil
}

// Pairs returns the balanced pair set the classifier is evaluated on: same pairs
// first, then as many different pairs.
func (e *Evaluator) Pairs(embeddings [][]float32, labels []int) ([]sampler.Pair, error) {
	set, err := sampler.SelectPairs(embeddings, labels, e.Options.P, e.Options.K)
	if err != nil {
		return nil, fmt.Errorf("selecting pairs: %w", err)
	}
	pairs, _ := set.Balanced()
	if len(pairs) == 0 {
		return nil, fmt.Errorf("selecting pairs: %w", sampler.ErrInsufficientBatch)
	}
	return pairs, nil
}

func (e *Evaluator) rank(embeddings [][]float32, labels []int) (*metrics.Report, error) {
	if len(embeddings) == 0 {
		return nil, ranking.ErrEmptyQuerySet
	}
	if len(embeddings) != len(labels) {
		return nil, fmt.Errorf("%w: %d embeddings, %d labels", ranking.ErrLengthMismatch, len(embeddings), len(labels))
	}

	batch, err := distance.FromEmbeddings(embeddings)
	if err != nil {
		return nil, fmt.Errorf("building embedding matrix: %w", err)
	}
	dist, err := distance.Pairwise(batch, batch)
	if err != nil {
		return nil, fmt.Errorf("computing distances: %w", err)
	}

	results, err := ranking.RankMatrix(dist, labels, labels)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	queryLabels, ranked := ranking.RankedLabels(results)

	rank1, err := ranking.MeanAveragePrecisionAtK(queryLabels, ranked, 1)
	if err != nil {
		return nil, err
	}
	mapK, err := ranking.MeanAveragePrecisionAtK(queryLabels, ranked, e.Options.TopK)
	if err != nil {
		return nil, err
	}
	cmc, err := ranking.CMC(queryLabels, ranked)
	if err != nil {
		return nil, err
	}

	report := metrics.NewReport(e.Model, e.Options.TopK)
	report.Queries = len(queryLabels)
	report.Scalars[metrics.KeyRank1] = rank1
	report.Scalars[metrics.KeyMAP] = mapK
	report.CMC = cmc.Curve
	report.FirstRanks = cmc.FirstRanks
	return report, nil
}

func (e *Evaluator) score(report *metrics.Report, pairs []sampler.Pair, probabilities []float64) error {
	for i, p := range probabilities {
		if !(p >= 0 && p <= 1) {
			return fmt.Errorf("%w: probability %d is %v", ErrProbabilityRange, i, p)
		}
	}
	if len(pairs) != len(probabilities) {
		return fmt.Errorf("%w: %d pairs, %d probabilities", ErrProbabilityCount, len(pairs), len(probabilities))
	}

	actual := make([]bool, len(pairs))
	for i, p := range pairs {
		actual[i] = p.Same
	}

	cm, err := metrics.Confusion(metrics.Threshold(probabilities, e.Options.Threshold), actual)
	if err != nil {
		return fmt.Errorf("confusion matrix: %w", err)
	}
	pr, err := metrics.PRCurve(probabilities, actual)
	if err != nil {
		return fmt.Errorf("precision-recall curve: %w", err)
	}
	roc, err := metrics.ROCCurve(probabilities, actual)
	if err != nil {
		return fmt.Errorf("ROC curve: %w", err)
	}

	report.Pairs = len(pairs)
	report.SetConfusion(cm)
	report.SetCurves(pr, roc)
	return nil
}

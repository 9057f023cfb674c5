package evaluate

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/kozaktomas/reid-eval/internal/metrics"
	"github.com/kozaktomas/reid-eval/internal/model"
	"github.com/kozaktomas/reid-eval/internal/ranking"
	"github.com/kozaktomas/reid-eval/internal/sampler"
)

// clusteredBatch returns p identities with k samples each, every identity
// tightly grouped around its own axis.
func clusteredBatch(rng *rand.Rand, p, k, dim int) ([][]float32, []int) {
	var embeddings [][]float32
	var labels []int
	for id := range p {
		for range k {
			e := make([]float32, dim)
			for d := range e {
				e[d] = float32(rng.NormFloat64() * 0.01)
			}
			e[id%dim] += 10
			embeddings = append(embeddings, e)
			labels = append(labels, id+100)
		}
	}
	return embeddings, labels
}

// oracle scores same pairs high and different pairs low.
type oracle struct {
	calls int
}

func (o *oracle) Classify(_ context.Context, pairs []sampler.Pair) ([]float64, error) {
	o.calls++
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		if p.Same {
			out[i] = 0.9
		} else {
			out[i] = 0.1
		}
	}
	return out, nil
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, []sampler.Pair) ([]float64, error) {
	return nil, errors.New("server down")
}

func TestEvaluator_Evaluate(t *testing.T) {
	embeddings, labels := clusteredBatch(rand.New(rand.NewPCG(42, 0)), 18, 5, 32)
	clf := &oracle{}
	e := &Evaluator{Classifier: clf, Options: DefaultOptions(), Model: "resnet+vae"}

	report, err := e.Evaluate(context.Background(), embeddings, labels)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if clf.calls != 1 {
		t.Errorf("classifier called %d times, want 1", clf.calls)
	}
	if report.Model != "resnet+vae" || report.TopK != 5 {
		t.Errorf("report model/topK = %q/%d", report.Model, report.TopK)
	}
	if report.Queries != 90 {
		t.Errorf("Queries = %d, want 90", report.Queries)
	}
	if report.Pairs != 360 {
		t.Errorf("Pairs = %d, want 360", report.Pairs)
	}

	for _, key := range []string{
		metrics.KeyRank1, metrics.KeyMAP, metrics.KeyAccuracy, metrics.KeyPrecision,
		metrics.KeyRecall, metrics.KeyF1, metrics.KeyF2, metrics.KeyAUCPR, metrics.KeyAUCROC,
	} {
		if v := report.Scalars[key]; math.Abs(v-1) > 1e-9 {
			t.Errorf("Scalars[%s] = %v, want 1", key, v)
		}
	}

	if len(report.CMC) != ranking.CMCHorizon {
		t.Fatalf("len(CMC) = %d, want %d", len(report.CMC), ranking.CMCHorizon)
	}
	// The query itself sits at position 0, so the first match is at rank 2.
	if report.CMC[0] != 0 || report.CMC[1] != 1 {
		t.Errorf("CMC[0:2] = %v, want [0 1]", report.CMC[:2])
	}
	if len(report.FirstRanks) != 90 || report.FirstRanks[0] != 2 {
		t.Errorf("FirstRanks = %v", report.FirstRanks)
	}
	if report.Confusion == nil || report.Confusion.TP != 180 || report.Confusion.TN != 180 {
		t.Errorf("Confusion = %+v, want TP=180 TN=180", report.Confusion)
	}
}

func TestEvaluator_Threshold(t *testing.T) {
	embeddings, labels := clusteredBatch(rand.New(rand.NewPCG(1, 2)), 4, 3, 8)
	opts := Options{P: 4, K: 3, TopK: 5, Threshold: 0.95}
	e := &Evaluator{Classifier: &oracle{}, Options: opts}

	report, err := e.Evaluate(context.Background(), embeddings, labels)
	if err != nil {
		t.Fatal(err)
	}
	// Nothing clears 0.95, so every pair is predicted different.
	if report.Confusion.TP != 0 || report.Confusion.FP != 0 {
		t.Errorf("Confusion = %+v, want no positives", report.Confusion)
	}
	if report.Scalars[metrics.KeyPrecision] != 0 || report.Scalars[metrics.KeyAccuracy] != 0.5 {
		t.Errorf("precision/accuracy = %v/%v, want 0/0.5",
			report.Scalars[metrics.KeyPrecision], report.Scalars[metrics.KeyAccuracy])
	}
	// Curves do not depend on the threshold.
	if report.Scalars[metrics.KeyAUCROC] != 1 {
		t.Errorf("ROC AUC = %v, want 1", report.Scalars[metrics.KeyAUCROC])
	}
}

func TestEvaluator_RankingOnly(t *testing.T) {
	embeddings, labels := clusteredBatch(rand.New(rand.NewPCG(3, 4)), 3, 2, 4)
	e := &Evaluator{Options: Options{P: 3, K: 2, TopK: 5}}

	report, err := e.Evaluate(context.Background(), embeddings, labels)
	if err != nil {
		t.Fatal(err)
	}
	if report.Confusion != nil || report.PR != nil {
		t.Error("ranking-only report should not carry verification metrics")
	}
	if _, ok := report.Scalars[metrics.KeyAccuracy]; ok {
		t.Error("ranking-only report should not have accuracy")
	}
	if report.Scalars[metrics.KeyRank1] != 1 {
		t.Errorf("rank1 = %v, want 1", report.Scalars[metrics.KeyRank1])
	}
	// Each query sees itself and its one partner in the top 5; the remaining
	// positions hold other identities.
	if report.Scalars[metrics.KeyMAP] != 1 {
		t.Errorf("mAP = %v, want 1", report.Scalars[metrics.KeyMAP])
	}
}

func TestEvaluator_EvaluateScored(t *testing.T) {
	embeddings, labels := clusteredBatch(rand.New(rand.NewPCG(5, 6)), 3, 3, 4)
	e := &Evaluator{Options: Options{P: 3, K: 3, TopK: 3, Threshold: 0.5}}

	pairs, err := e.Pairs(embeddings, labels)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 18 {
		t.Fatalf("len(pairs) = %d, want 18", len(pairs))
	}

	// Invert the scores: every prediction is wrong.
	probs := make([]float64, len(pairs))
	for i, p := range pairs {
		if !p.Same {
			probs[i] = 0.8
		}
	}
	report, err := e.EvaluateScored(embeddings, labels, pairs, probs)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scalars[metrics.KeyAccuracy] != 0 {
		t.Errorf("accuracy = %v, want 0", report.Scalars[metrics.KeyAccuracy])
	}
	if report.Scalars[metrics.KeyAUCROC] != 0 {
		t.Errorf("ROC AUC = %v, want 0", report.Scalars[metrics.KeyAUCROC])
	}

	if _, err := e.EvaluateScored(embeddings, labels, pairs, probs[:3]); !errors.Is(err, ErrProbabilityCount) {
		t.Errorf("EvaluateScored() error = %v, want ErrProbabilityCount", err)
	}

	for _, tt := range []struct {
		name  string
		value float64
	}{
		{"above one", 1.5},
		{"negative", -0.1},
		{"NaN", math.NaN()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			bad := slices.Clone(probs)
			bad[7] = tt.value
			if _, err := e.EvaluateScored(embeddings, labels, pairs, bad); !errors.Is(err, ErrProbabilityRange) {
				t.Errorf("EvaluateScored() error = %v, want ErrProbabilityRange", err)
			}
		})
	}
}

func TestEvaluator_Errors(t *testing.T) {
	e := &Evaluator{Options: DefaultOptions()}

	if _, err := e.Evaluate(context.Background(), nil, nil); !errors.Is(err, ranking.ErrEmptyQuerySet) {
		t.Errorf("empty batch error = %v, want ErrEmptyQuerySet", err)
	}
	if _, err := e.Evaluate(context.Background(), [][]float32{{1}}, []int{1, 2}); !errors.Is(err, ranking.ErrLengthMismatch) {
		t.Errorf("length mismatch error = %v, want ErrLengthMismatch", err)
	}

	singletons := [][]float32{{1, 0}, {0, 1}}
	e.Classifier = &oracle{}
	if _, err := e.Evaluate(context.Background(), singletons, []int{1, 2}); !errors.Is(err, sampler.ErrInsufficientBatch) {
		t.Errorf("singleton batch error = %v, want ErrInsufficientBatch", err)
	}

	embeddings, labels := clusteredBatch(rand.New(rand.NewPCG(7, 8)), 2, 2, 4)
	e.Classifier = failingClassifier{}
	if _, err := e.Evaluate(context.Background(), embeddings, labels); err == nil {
		t.Error("expected classifier error")
	}
}

// fakeSource serves identities 0..n-1 with m images each.
type fakeSource struct {
	n, m  int
	loads int
}

func (s *fakeSource) Identities() map[int][]int {
	out := make(map[int][]int, s.n)
	for id := range s.n {
		for j := range s.m {
			out[id] = append(out[id], id*s.m+j)
		}
	}
	return out
}

func (s *fakeSource) Labels(indices []int) []int {
	labels := make([]int, len(indices))
	for i, idx := range indices {
		labels[i] = idx / s.m
	}
	return labels
}

func (s *fakeSource) Load(i int, _ model.Spec) ([]byte, error) {
	s.loads++
	return []byte{byte(i / s.m)}, nil
}

// axisEmbedder maps the single identity byte of each image to a unit axis.
type axisEmbedder struct{}

func (axisEmbedder) Embed(_ context.Context, images [][]byte) ([][]float32, error) {
	out := make([][]float32, len(images))
	for i, img := range images {
		e := make([]float32, 64)
		e[int(img[0])%64] = 1
		out[i] = e
	}
	return out, nil
}

func TestPipeline_RunBatch(t *testing.T) {
	src := &fakeSource{n: 40, m: 6}
	p := &Pipeline{
		Source:    src,
		Embedder:  axisEmbedder{},
		Spec:      model.Spec{Backbone: model.ResNet, Autoencoder: model.AE},
		Evaluator: &Evaluator{Classifier: &oracle{}, Options: DefaultOptions()},
		Rand:      rand.New(rand.NewPCG(42, 0)),
	}

	report, batch, err := p.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if src.loads != 90 || len(batch.Indices) != 90 || len(batch.Embeddings) != 90 {
		t.Errorf("loads=%d indices=%d embeddings=%d, want 90", src.loads, len(batch.Indices), len(batch.Embeddings))
	}

	counts := make(map[int]int)
	for _, l := range batch.Labels {
		counts[l]++
	}
	if len(counts) != 18 {
		t.Errorf("batch has %d identities, want 18", len(counts))
	}
	for id, c := range counts {
		if c != 5 {
			t.Errorf("identity %d has %d samples, want 5", id, c)
		}
	}
	if report.Scalars[metrics.KeyMAP] != 1 {
		t.Errorf("mAP = %v, want 1", report.Scalars[metrics.KeyMAP])
	}
}

func TestPipeline_TooFewIdentities(t *testing.T) {
	p := &Pipeline{
		Source:    &fakeSource{n: 3, m: 5},
		Embedder:  axisEmbedder{},
		Evaluator: &Evaluator{Options: DefaultOptions()},
		Rand:      rand.New(rand.NewPCG(1, 1)),
	}
	if _, _, err := p.RunBatch(context.Background()); err == nil {
		t.Error("expected error when fewer than P identities exist")
	}
}

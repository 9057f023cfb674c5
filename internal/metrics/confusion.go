// Package metrics reduces pair predictions into confusion-matrix statistics,
// PR/ROC curves and the evaluation report.
package metrics

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a reduction receives no pairs.
	ErrEmptyInput = errors.New("empty input")

	// ErrLengthMismatch is returned when predictions and ground truth differ in length.
	ErrLengthMismatch = errors.New("predictions and labels differ in length")
)

// ConfusionMatrix holds binary classification counts. Positive means "same identity".
type ConfusionMatrix struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn"`
}

// Threshold turns scores into predictions: a score strictly above t is positive.
func Threshold(scores []float64, t float64) []bool {
	out := make([]bool, len(scores))
	for i, s := range scores {
		out[i] = s > t
	}
	return out
}

// Labels turns 0/1 pair labels into booleans.
func Labels(values []float64) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = v == 1
	}
	return out
}

// Confusion counts predicted against actual labels.
func Confusion(predicted, actual []bool) (ConfusionMatrix, error) {
	if len(predicted) != len(actual) {
		return ConfusionMatrix{}, fmt.Errorf("%w: %d predictions, %d labels", ErrLengthMismatch, len(predicted), len(actual))
	}
	if len(predicted) == 0 {
		return ConfusionMatrix{}, ErrEmptyInput
	}

	var cm ConfusionMatrix
	for i, p := range predicted {
		switch {
		case p && actual[i]:
			cm.TP++
		case p && !actual[i]:
			cm.FP++
		case !p && actual[i]:
			cm.FN++
		default:
			cm.TN++
		}
	}
	return cm, nil
}

// Total returns the number of counted pairs.
func (c ConfusionMatrix) Total() int {
	return c.TP + c.FP + c.FN + c.TN
}

// Accuracy is (TP+TN)/total, 0 when there is nothing counted.
func (c ConfusionMatrix) Accuracy() float64 {
	return ratio(float64(c.TP+c.TN), float64(c.Total()))
}

// Precision is TP/(TP+FP), 0 when nothing was predicted positive.
func (c ConfusionMatrix) Precision() float64 {
	return ratio(float64(c.TP), float64(c.TP+c.FP))
}

// Recall is TP/(TP+FN), 0 when there are no positives.
func (c ConfusionMatrix) Recall() float64 {
	return ratio(float64(c.TP), float64(c.TP+c.FN))
}

// F1 is the harmonic mean of precision and recall.
func (c ConfusionMatrix) F1() float64 {
	return c.FBeta(1)
}

// FBeta weighs recall beta times as much as precision.
func (c ConfusionMatrix) FBeta(beta float64) float64 {
	p, r := c.Precision(), c.Recall()
	b2 := beta * beta
	return ratio((1+b2)*p*r, b2*p+r)
}

// ratio returns 0 instead of NaN or Inf for a zero denominator.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

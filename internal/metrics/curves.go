package metrics

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// CurvePoint is one threshold of a PR or ROC sweep.
// For PR curves X is recall and Y precision; for ROC curves X is FPR and Y TPR.
type CurvePoint struct {
	Threshold float64 `json:"threshold"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type sweepCounts struct {
	threshold float64
	tp, fp    int
}

// sweep evaluates every distinct score as a threshold (score >= threshold is positive),
// in ascending order.
func sweep(scores []float64, actual []bool) ([]sweepCounts, int, int, error) {
	if len(scores) != len(actual) {
		return nil, 0, 0, fmt.Errorf("%w: %d scores, %d labels", ErrLengthMismatch, len(scores), len(actual))
	}
	if len(scores) == 0 {
		return nil, 0, 0, ErrEmptyInput
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(scores[a], scores[b]) })

	positives := 0
	for _, a := range actual {
		if a {
			positives++
		}
	}
	negatives := len(actual) - positives

	var out []sweepCounts
	posBelow, negBelow := 0, 0
	for i, idx := range order {
		if i == 0 || scores[idx] != scores[order[i-1]] {
			out = append(out, sweepCounts{
				threshold: scores[idx],
				tp:        positives - posBelow,
				fp:        negatives - negBelow,
			})
		}
		if actual[idx] {
			posBelow++
		} else {
			negBelow++
		}
	}
	return out, positives, negatives, nil
}

// PRCurve returns precision/recall points for ascending thresholds, ending with
// recall 0 and precision 1 just above the highest score.
func PRCurve(scores []float64, actual []bool) ([]CurvePoint, error) {
	counts, positives, _, err := sweep(scores, actual)
	if err != nil {
		return nil, err
	}

	points := make([]CurvePoint, 0, len(counts)+1)
	for _, c := range counts {
		points = append(points, CurvePoint{
			Threshold: c.threshold,
			X:         ratio(float64(c.tp), float64(positives)),
			Y:         ratio(float64(c.tp), float64(c.tp+c.fp)),
		})
	}
	points = append(points, CurvePoint{Threshold: aboveMax(scores), X: 0, Y: 1})
	return points, nil
}

// ROCCurve returns false/true positive rate points for ascending thresholds, ending
// at (0, 0) just above the highest score.
func ROCCurve(scores []float64, actual []bool) ([]CurvePoint, error) {
	if len(scores) != len(actual) {
		return nil, fmt.Errorf("%w: %d scores, %d labels", ErrLengthMismatch, len(scores), len(actual))
	}
	if len(scores) == 0 {
		return nil, ErrEmptyInput
	}

	y := slices.Clone(scores)
	classes := slices.Clone(actual)
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, thresh := stat.ROC(nil, y, classes, nil)

	// stat.ROC orders points by descending threshold, starting at +Inf.
	points := make([]CurvePoint, len(thresh))
	for i := range thresh {
		points[len(thresh)-1-i] = CurvePoint{Threshold: thresh[i], X: finiteRate(fpr[i]), Y: finiteRate(tpr[i])}
	}
	points[len(points)-1].Threshold = aboveMax(scores)
	return points, nil
}

// finiteRate maps the NaN rate of a class with no members to 0.
func finiteRate(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// AUC integrates the curve with the trapezoidal rule. A curve with decreasing x is
// integrated in reverse; a non-monotonic curve is sorted by x first.
func AUC(points []CurvePoint) float64 {
	if len(points) < 2 {
		return 0
	}

	pts := slices.Clone(points)
	switch {
	case slices.IsSortedFunc(pts, func(a, b CurvePoint) int { return cmp.Compare(a.X, b.X) }):
	case slices.IsSortedFunc(pts, func(a, b CurvePoint) int { return cmp.Compare(b.X, a.X) }):
		slices.Reverse(pts)
	default:
		slices.SortStableFunc(pts, func(a, b CurvePoint) int {
			return cmp.Or(cmp.Compare(a.X, b.X), cmp.Compare(a.Y, b.Y))
		})
	}

	x := make([]float64, len(pts))
	f := make([]float64, len(pts))
	for i, p := range pts {
		x[i], f[i] = p.X, p.Y
	}
	return integrate.Trapezoidal(x, f)
}

func aboveMax(scores []float64) float64 {
	return math.Nextafter(slices.Max(scores), math.Inf(1))
}

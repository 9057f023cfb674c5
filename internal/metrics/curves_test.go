package metrics

import (
	"errors"
	"math"
	"testing"
)

var (
	curveScores = []float64{0.1, 0.4, 0.35, 0.8}
	curveActual = []bool{false, false, true, true}
)

func assertPoints(t *testing.T, got []CurvePoint, wantX, wantY []float64) {
	t.Helper()
	if len(got) != len(wantX) {
		t.Fatalf("len = %d, want %d (%+v)", len(got), len(wantX), got)
	}
	for i := range got {
		if !approx(got[i].X, wantX[i]) || !approx(got[i].Y, wantY[i]) {
			t.Errorf("point %d = (%v, %v), want (%v, %v)", i, got[i].X, got[i].Y, wantX[i], wantY[i])
		}
	}
}

func TestPRCurve(t *testing.T) {
	got, err := PRCurve(curveScores, curveActual)
	if err != nil {
		t.Fatalf("PRCurve() error = %v", err)
	}

	assertPoints(t, got,
		[]float64{1, 1, 0.5, 0.5, 0},
		[]float64{0.5, 0.667, 0.5, 1, 1},
	)
	for i := 1; i < len(got); i++ {
		if got[i].Threshold <= got[i-1].Threshold {
			t.Errorf("thresholds not ascending at %d: %v <= %v", i, got[i].Threshold, got[i-1].Threshold)
		}
	}
	if got[len(got)-1].Threshold <= 0.8 || math.IsInf(got[len(got)-1].Threshold, 0) {
		t.Errorf("terminal threshold = %v, want finite and above 0.8", got[len(got)-1].Threshold)
	}
}

func TestROCCurve(t *testing.T) {
	got, err := ROCCurve(curveScores, curveActual)
	if err != nil {
		t.Fatalf("ROCCurve() error = %v", err)
	}

	assertPoints(t, got,
		[]float64{1, 0.5, 0.5, 0, 0},
		[]float64{1, 1, 0.5, 0.5, 0},
	)
	wantThresholds := []float64{0.1, 0.35, 0.4, 0.8}
	for i, w := range wantThresholds {
		if got[i].Threshold != w {
			t.Errorf("threshold %d = %v, want %v", i, got[i].Threshold, w)
		}
	}
	if last := got[len(got)-1].Threshold; last <= 0.8 || math.IsInf(last, 0) {
		t.Errorf("terminal threshold = %v, want finite and above 0.8", last)
	}
}

func TestROCCurve_SingleClass(t *testing.T) {
	tests := []struct {
		name   string
		actual []bool
		wantX  []float64
		wantY  []float64
	}{
		{"only positives", []bool{true, true, true}, []float64{0, 0, 0, 0}, []float64{1, 0.667, 0.333, 0}},
		{"only negatives", []bool{false, false, false}, []float64{1, 0.667, 0.333, 0}, []float64{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ROCCurve([]float64{0.9, 0.2, 0.5}, tt.actual)
			if err != nil {
				t.Fatal(err)
			}
			assertPoints(t, got, tt.wantX, tt.wantY)
		})
	}
}

func TestCurves_DuplicateScores(t *testing.T) {
	got, err := ROCCurve([]float64{0.5, 0.5, 0.5}, []bool{true, false, true})
	if err != nil {
		t.Fatalf("ROCCurve() error = %v", err)
	}
	// One distinct threshold plus the terminal point.
	assertPoints(t, got, []float64{1, 0}, []float64{1, 0})
}

func TestCurves_Errors(t *testing.T) {
	if _, err := PRCurve(nil, nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("PRCurve() error = %v, want ErrEmptyInput", err)
	}
	if _, err := ROCCurve([]float64{1}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("ROCCurve() error = %v, want ErrLengthMismatch", err)
	}
}

func TestAUC(t *testing.T) {
	roc, _ := ROCCurve(curveScores, curveActual)
	if got := AUC(roc); !approx(got, 0.75) {
		t.Errorf("ROC AUC = %v, want 0.75", got)
	}

	pr, _ := PRCurve(curveScores, curveActual)
	if got := AUC(pr); !approx(got, 0.7917) {
		t.Errorf("PR AUC = %v, want 0.7917", got)
	}

	tests := []struct {
		name     string
		points   []CurvePoint
		expected float64
	}{
		{"increasing diagonal", []CurvePoint{{X: 0, Y: 0}, {X: 1, Y: 1}}, 0.5},
		{"unsorted square", []CurvePoint{{X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0.5, Y: 1}}, 1},
		{"decreasing x", []CurvePoint{{X: 1, Y: 0.5}, {X: 0.5, Y: 1}, {X: 0, Y: 1}}, 0.875},
		{"single point", []CurvePoint{{X: 0.5, Y: 0.5}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AUC(tt.points); !approx(got, tt.expected) {
				t.Errorf("AUC() = %v, want %v", got, tt.expected)
			}
		})
	}
}

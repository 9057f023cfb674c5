package metrics

import (
	"strings"
	"testing"
)

func TestReport_WriteText(t *testing.T) {
	r := NewReport("resnet+vae", 5)
	r.SetConfusion(ConfusionMatrix{TP: 8, FP: 2, FN: 1, TN: 9})
	r.Scalars[KeyRank1] = 0.9
	r.Scalars[KeyMAP] = 0.75

	var b strings.Builder
	if err := r.WriteText(&b); err != nil {
		t.Fatalf("WriteText() error = %v", err)
	}

	out := b.String()
	for _, want := range []string{
		"Accuracy: 0.85\n",
		"Precision: 0.8\n",
		"Rank1: 0.9\n",
		"mAP5: 0.75\n",
		"F1 Score: ",
		"F2 Score: ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "AUC") {
		t.Errorf("report should not list curves that were not set:\n%s", out)
	}
	if strings.Index(out, "Accuracy") > strings.Index(out, "Rank1") {
		t.Errorf("Accuracy should come before Rank1:\n%s", out)
	}
}

func TestNewReport(t *testing.T) {
	a, b := NewReport("", 5), NewReport("", 5)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique non-empty IDs, got %q and %q", a.ID, b.ID)
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestReport_SetCurves(t *testing.T) {
	r := NewReport("", 5)
	pr, _ := PRCurve(curveScores, curveActual)
	roc, _ := ROCCurve(curveScores, curveActual)
	r.SetCurves(pr, roc)

	if !approx(r.Scalars[KeyAUCROC], 0.75) {
		t.Errorf("auc_roc = %v, want 0.75", r.Scalars[KeyAUCROC])
	}
	if len(r.PR) != len(pr) || len(r.ROC) != len(roc) {
		t.Error("curves not stored")
	}
}

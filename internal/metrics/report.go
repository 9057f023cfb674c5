package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Scalar keys of a Report.
const (
	KeyAccuracy  = "accuracy"
	KeyPrecision = "precision"
	KeyRecall    = "recall"
	KeyF1        = "f1"
	KeyF2        = "f2"
	KeyRank1     = "rank1"
	KeyMAP       = "map"
	KeyAUCPR     = "auc_pr"
	KeyAUCROC    = "auc_roc"
)

// Report is the result of one evaluation run.
type Report struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Model     string             `json:"model,omitempty"`
	TopK      int                `json:"top_k"`
	Queries   int                `json:"queries"`
	Pairs     int                `json:"pairs"`
	Scalars   map[string]float64 `json:"scalars"`
	Confusion *ConfusionMatrix   `json:"confusion,omitempty"`
	PR        []CurvePoint       `json:"pr,omitempty"`
	ROC       []CurvePoint       `json:"roc,omitempty"`
	CMC       []float64          `json:"cmc,omitempty"`
	// FirstRanks are the 1-indexed first correct ranks behind the CMC curve.
	FirstRanks []int `json:"first_ranks,omitempty"`
}

// NewReport creates an empty report with a fresh ID.
func NewReport(model string, topK int) *Report {
	return &Report{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Model:     model,
		TopK:      topK,
		Scalars:   make(map[string]float64),
	}
}

// SetConfusion stores the confusion matrix and its derived scalars.
func (r *Report) SetConfusion(cm ConfusionMatrix) {
	r.Confusion = &cm
	r.Scalars[KeyAccuracy] = cm.Accuracy()
	r.Scalars[KeyPrecision] = cm.Precision()
	r.Scalars[KeyRecall] = cm.Recall()
	r.Scalars[KeyF1] = cm.F1()
	r.Scalars[KeyF2] = cm.FBeta(2)
}

// SetCurves stores the PR and ROC curves with their areas.
func (r *Report) SetCurves(pr, roc []CurvePoint) {
	r.PR = pr
	r.ROC = roc
	r.Scalars[KeyAUCPR] = AUC(pr)
	r.Scalars[KeyAUCROC] = AUC(roc)
}

type textLine struct {
	key   string
	label string
}

// WriteText writes the plain-text metrics report, one "Name: value" line per metric
// present in the report.
func (r *Report) WriteText(w io.Writer) error {
	lines := []textLine{
		{KeyAccuracy, "Accuracy"},
		{KeyPrecision, "Precision"},
		{KeyRecall, "Recall"},
		{KeyF1, "F1 Score"},
		{KeyF2, "F2 Score"},
		{KeyRank1, "Rank1"},
		{KeyMAP, fmt.Sprintf("mAP%d", r.TopK)},
		{KeyAUCPR, "PR AUC"},
		{KeyAUCROC, "ROC AUC"},
	}
	for _, l := range lines {
		v, ok := r.Scalars[l.key]
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %v\n", l.label, v); err != nil {
			return fmt.Errorf("writing %s: %w", l.label, err)
		}
	}
	return nil
}

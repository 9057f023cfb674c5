package handlers

import (
	"github.com/kozaktomas/reid-eval/internal/database"
	"github.com/kozaktomas/reid-eval/internal/evaluate"
)

// Dependencies are the optional backends of the API. A nil field disables the
// endpoints that need it.
type Dependencies struct {
	Classifier evaluate.Classifier
	Reports    database.ReportWriter
	Gallery    *database.GalleryIndex
}

package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

// Envelope wraps a result with its run metadata for JSON delivery
type Envelope struct {
	Meta
	Result *domain.AnalysisResult `json:"result"`
}

func writeJSON(w io.Writer, meta Meta, result *domain.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Envelope{Meta: meta, Result: result}); err != nil {
		return fmt.Errorf("failed to encode json report: %w", err)
	}
	return nil
}

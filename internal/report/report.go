package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

// Format is an output encoding for analysis reports
type Format string

const (
	FormatExcel Format = "xlsx"
	FormatHTML  Format = "html"
	FormatJSON  Format = "json"
)

// ParseFormat maps user input such as "excel", "xlsx" or "HTML" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "excel", "xlsx":
		return FormatExcel, nil
	case "html", "htm":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported report format %q (excel, html, json)", s)
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// FileName builds analytics_report_YYYYMMDD_HHMMSS.<ext>
func FileName(f Format, at time.Time) string {
	return "analytics_report_" + at.Format("20060102_150405") + f.Extension()
}

// Meta identifies one report. It lives outside AnalysisResult so results stay reproducible.
type Meta struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Source      string                 `json:"source"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

// NewMeta stamps a fresh run id and the current UTC time
func NewMeta(source string, options map[string]interface{}) Meta {
	return Meta{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Source:      source,
		Options:     options,
	}
}

// Generator renders an AnalysisResult in any supported format
type Generator struct {
	locale Locale
}

// NewGenerator creates a generator formatting numbers for the given locale ("es" or "en")
func NewGenerator(locale string) *Generator {
	return &Generator{locale: ParseLocale(locale)}
}

// Write renders result to w
func (g *Generator) Write(w io.Writer, f Format, meta Meta, result *domain.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("nil analysis result")
	}
	switch f {
	case FormatExcel:
		return g.writeExcel(w, meta, result)
	case FormatHTML:
		return g.writeHTML(w, meta, result)
	case FormatJSON:
		return writeJSON(w, meta, result)
	}
	return fmt.Errorf("unsupported report format %q", f)
}

package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/pharmalytics/internal/report"
	"github.com/andresuchdata/pharmalytics/internal/service"
	"github.com/andresuchdata/pharmalytics/internal/storage"
)

// Analyzer is the part of the analysis service a batch run needs
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string, overrides map[string]interface{}) (*service.Outcome, error)
	Render(out *service.Outcome, source string, format report.Format) (*service.Rendered, error)
	Store(ctx context.Context, r *service.Rendered) (storage.Object, error)
}

// BatchConfig holds configuration for a batch run
type BatchConfig struct {
	WorkerCount int           // Number of concurrent workers
	Format      report.Format // Report format written per file
	Options     map[string]interface{}
	// FileTimeout bounds one file analysis; 0 means no limit
	FileTimeout time.Duration
}

// DefaultBatchConfig returns sensible defaults
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		WorkerCount: 4,
		Format:      report.FormatExcel,
	}
}

// RunStatus represents the current state of a batch run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusPartial    RunStatus = "partial"
	StatusFailed     RunStatus = "failed"
)

// FileJobStatus represents the state of a single file processing job
type FileJobStatus string

const (
	FileStatusQueued     FileJobStatus = "queued"
	FileStatusProcessing FileJobStatus = "processing"
	FileStatusCompleted  FileJobStatus = "completed"
	FileStatusFailed     FileJobStatus = "failed"
)

// BatchRun tracks one execution over a set of files
type BatchRun struct {
	ID             string          `json:"id"`
	Status         RunStatus       `json:"status"`
	TotalFiles     int             `json:"total_files"`
	ProcessedFiles int             `json:"processed_files"`
	FailedFiles    int             `json:"failed_files"`
	TotalRows      int             `json:"total_rows"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Jobs           []*FileJob      `json:"jobs"`
	Metrics        PipelineMetrics `json:"metrics"`
}

// FileJob tracks the processing of a single file. Each file is analyzed independently.
type FileJob struct {
	FilePath       string        `json:"file_path"`
	Status         FileJobStatus `json:"status"`
	ErrorMessage   string        `json:"error,omitempty"`
	Rows           int           `json:"rows"`
	Warnings       int           `json:"warnings"`
	Cached         bool          `json:"cached"`
	ReportLocation string        `json:"report_location,omitempty"`
	RunID          string        `json:"run_id,omitempty"`
	ProcessedAt    *time.Time    `json:"processed_at,omitempty"`
}

// PipelineMetrics holds metrics for monitoring
type PipelineMetrics struct {
	FilesProcessed int64         `json:"files_processed"`
	RowsProcessed  int64         `json:"rows_processed"`
	BytesWritten   int64         `json:"bytes_written"`
	ErrorCount     int64         `json:"error_count"`
	AverageLatency time.Duration `json:"average_latency"`
}

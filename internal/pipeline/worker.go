package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Runner analyzes a batch of files with a fixed worker pool. Each file gets
// its own analysis and report; one failing file never affects the others.
type Runner struct {
	analyzer Analyzer
	config   BatchConfig
	mu       sync.Mutex
}

// NewRunner creates a new batch runner
func NewRunner(analyzer Analyzer, config BatchConfig) *Runner {
	if config.Format == "" {
		config.Format = DefaultBatchConfig().Format
	}
	return &Runner{
		analyzer: analyzer,
		config:   config,
	}
}

// Run processes files concurrently and returns the run record. The error is
// non-nil only when ctx ends before every file was handled.
func (r *Runner) Run(ctx context.Context, files []string) (*BatchRun, error) {
	run := &BatchRun{
		ID:         uuid.NewString(),
		Status:     StatusPending,
		TotalFiles: len(files),
		StartedAt:  time.Now().UTC(),
		Jobs:       make([]*FileJob, len(files)),
	}
	for i, file := range files {
		run.Jobs[i] = &FileJob{FilePath: file, Status: FileStatusQueued}
	}

	log.Info().Str("run_id", run.ID).Int("files", len(files)).Int("workers", r.workerCount()).Msg("pipeline: batch started")

	run.Status = StatusProcessing
	err := r.processFilesParallel(ctx, run)

	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = finalStatus(run)
	if n := run.Metrics.FilesProcessed + run.Metrics.ErrorCount; n > 0 {
		run.Metrics.AverageLatency /= time.Duration(n)
	}

	log.Info().
		Str("run_id", run.ID).
		Str("status", string(run.Status)).
		Int("processed", run.ProcessedFiles).
		Int("failed", run.FailedFiles).
		Int("rows", run.TotalRows).
		Dur("elapsed", now.Sub(run.StartedAt)).
		Msg("pipeline: batch finished")

	return run, err
}

func (r *Runner) workerCount() int {
	if r.config.WorkerCount < 1 {
		return 1
	}
	return r.config.WorkerCount
}

func finalStatus(run *BatchRun) RunStatus {
	switch {
	case run.TotalFiles == 0:
		return StatusCompleted
	case run.ProcessedFiles == run.TotalFiles:
		return StatusCompleted
	case run.ProcessedFiles == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// processFilesParallel processes files using a worker pool
func (r *Runner) processFilesParallel(ctx context.Context, run *BatchRun) error {
	workerCount := r.workerCount()

	jobChan := make(chan *FileJob, len(run.Jobs))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobChan {
				if err := r.processFile(ctx, run, job); err != nil {
					log.Warn().Err(err).Int("worker", workerID).Str("file", job.FilePath).Msg("pipeline: file failed")
				}
			}
		}(i)
	}

	// Enqueue jobs
	var cancelled error
	for _, job := range run.Jobs {
		if cancelled != nil {
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
		case jobChan <- job:
		}
	}
	close(jobChan)

	// Wait for all workers
	wg.Wait()

	if cancelled == nil {
		cancelled = ctx.Err()
	}
	if cancelled != nil {
		r.mu.Lock()
		for _, job := range run.Jobs {
			if job.Status == FileStatusQueued {
				job.Status = FileStatusFailed
				job.ErrorMessage = cancelled.Error()
				run.FailedFiles++
			}
		}
		r.mu.Unlock()
		return fmt.Errorf("batch %s interrupted: %w", run.ID, cancelled)
	}
	return nil
}

// processFile analyzes a single file and writes its report
func (r *Runner) processFile(ctx context.Context, run *BatchRun, job *FileJob) error {
	startTime := time.Now()
	r.setStatus(job, FileStatusProcessing)

	if r.config.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.FileTimeout)
		defer cancel()
	}

	out, err := r.analyzer.AnalyzeFile(ctx, job.FilePath, r.config.Options)
	if err != nil {
		return r.markJobFailed(run, job, startTime, fmt.Errorf("analysis failed: %w", err))
	}

	rendered, err := r.analyzer.Render(out, job.FilePath, r.config.Format)
	if err != nil {
		return r.markJobFailed(run, job, startTime, fmt.Errorf("report failed: %w", err))
	}

	obj, err := r.analyzer.Store(ctx, rendered)
	if err != nil {
		return r.markJobFailed(run, job, startTime, fmt.Errorf("storing report failed: %w", err))
	}

	now := time.Now().UTC()
	rows := out.Result.Summary.TotalRows

	r.mu.Lock()
	job.Status = FileStatusCompleted
	job.Rows = rows
	job.Warnings = len(out.Result.Warnings)
	job.Cached = out.Cached
	job.ReportLocation = obj.Location
	job.RunID = rendered.Meta.RunID
	job.ProcessedAt = &now
	run.ProcessedFiles++
	run.TotalRows += rows
	run.Metrics.FilesProcessed++
	run.Metrics.RowsProcessed += int64(rows)
	run.Metrics.BytesWritten += obj.Size
	run.Metrics.AverageLatency += time.Since(startTime)
	r.mu.Unlock()

	log.Info().
		Str("file", job.FilePath).
		Int("rows", rows).
		Str("report", obj.Location).
		Dur("elapsed", time.Since(startTime)).
		Msg("pipeline: file completed")

	return nil
}

func (r *Runner) setStatus(job *FileJob, status FileJobStatus) {
	r.mu.Lock()
	job.Status = status
	r.mu.Unlock()
}

func (r *Runner) markJobFailed(run *BatchRun, job *FileJob, startTime time.Time, err error) error {
	now := time.Now().UTC()
	r.mu.Lock()
	job.Status = FileStatusFailed
	job.ErrorMessage = err.Error()
	job.ProcessedAt = &now
	run.FailedFiles++
	run.Metrics.ErrorCount++
	run.Metrics.AverageLatency += time.Since(startTime)
	r.mu.Unlock()
	return err
}

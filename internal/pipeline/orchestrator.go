package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andresuchdata/pharmalytics/internal/loader"
)

// Orchestrator coordinates running a batch over the supported files of a directory.
type Orchestrator struct {
	runner *Runner
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(analyzer Analyzer, cfg BatchConfig) *Orchestrator {
	return &Orchestrator{runner: NewRunner(analyzer, cfg)}
}

// RunDir analyzes every CSV/XLSX file directly under dir, in name order.
func (o *Orchestrator) RunDir(ctx context.Context, dir string) (*BatchRun, error) {
	files, err := DiscoverFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", strings.Join(loader.SupportedFormats, "/"), dir)
	}
	return o.runner.Run(ctx, files)
}

// RunFiles analyzes the given files.
func (o *Orchestrator) RunFiles(ctx context.Context, files []string) (*BatchRun, error) {
	return o.runner.Run(ctx, files)
}

// DiscoverFiles lists supported files under dir. Hidden files and Excel lock
// files (~$name.xlsx) are skipped.
func DiscoverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		for _, supported := range loader.SupportedFormats {
			if ext == supported {
				files = append(files, filepath.Join(dir, name))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

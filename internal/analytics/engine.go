package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

const zeroSalesHighlightShare = 0.30

// Engine runs the full analysis over one immutable Dataset
type Engine struct {
	opts        Options
	statistics  *StatisticsCalculator
	trend       *TrendAnalyzer
	inventory   *InventoryAnalyzer
	anomalies   *AnomalyDetector
	abc         *ABCClassifier
	recommender *RecommendationEngine
}

// NewEngine validates opts and wires every analysis stage.
// A *ConfigurationError is returned before any computation when opts are invalid.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		opts:        opts,
		statistics:  NewStatisticsCalculator(opts.TrendBucket),
		trend:       NewTrendAnalyzer(opts.TrendBucket, opts.MovingAverageWindow),
		inventory:   NewInventoryAnalyzer(opts.LowStockDaysThreshold, opts.OverstockDaysThreshold),
		anomalies:   NewAnomalyDetector(opts),
		abc:         NewABCClassifier(opts.ABCThresholds),
		recommender: NewRecommendationEngine(opts),
	}, nil
}

// Options returns the effective options of the engine
func (e *Engine) Options() Options {
	return e.opts
}

// Analyze normalizes a raw table and runs the analysis on it. Normalizer
// warnings lead the result's warning list.
func (e *Engine) Analyze(ctx context.Context, table RawTable, schema Schema, nopts NormalizeOptions) (*domain.AnalysisResult, error) {
	ds, warnings, err := Normalize(table, schema, nopts)
	if err != nil {
		return nil, err
	}
	result, err := e.Run(ctx, ds)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(append([]domain.Warning{}, warnings...), result.Warnings...)
	return result, nil
}

// statisticsSets returns product, lab and category followed by the configured
// dimension sets, without duplicates.
func (e *Engine) statisticsSets() [][]Dimension {
	sets := [][]Dimension{{DimProduct}, {DimLab}, {DimCategory}}
	seen := map[string]bool{"product": true, "lab": true, "category": true}
	for _, set := range e.opts.StatisticsDimensions {
		key := joinDimensions(set, "+")
		if seen[key] {
			continue
		}
		seen[key] = true
		sets = append(sets, set)
	}
	return sets
}

// Run computes every result section. Statistics, trend and inventory run
// concurrently; anomalies and ABC wait for statistics; recommendations wait
// for everything else. The dataset is only read.
func (e *Engine) Run(ctx context.Context, ds *domain.Dataset) (*domain.AnalysisResult, error) {
	start := time.Now()
	result := emptyResult()

	if ds.Len() == 0 {
		result.Summary = summarize(ds, nil, nil)
		result.Warnings = append(result.Warnings, newWarning(SectionStatistics, domain.WarnEmptyDataset, "dataset has no records"))
		return result, nil
	}

	sets := e.statisticsSets()
	statsBySet := make([][]domain.GroupStatistics, len(sets))

	var (
		trendWarnings []domain.Warning
		demand        []domain.ProductDemand
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i, set := range sets {
			if err := gctx.Err(); err != nil {
				return err
			}
			statsBySet[i] = e.statistics.Compute(ds, set)
		}
		return nil
	})
	g.Go(func() error {
		result.Trend, trendWarnings = e.trend.Series(ds)
		return nil
	})
	g.Go(func() error {
		demand = e.trend.ProductDemand(ds)
		result.Inventory, result.InventoryAlerts = e.inventory.Analyze(ds, demand)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis stage 1: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Demand = demand
	log.Debug().Dur("elapsed", time.Since(start)).Int("records", ds.Len()).Msg("analytics: statistics, trend, inventory done")

	productStats := statsBySet[0]
	groupStats := statsBySet[indexOfSet(sets, e.opts.AnomalyGroupBy)]

	var anomalyWarnings []domain.Warning
	g, _ = errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Anomalies, anomalyWarnings = e.anomalies.Detect(ds, groupStats)
		return nil
	})
	g.Go(func() error {
		result.ABCRanking, result.ABCTiers = e.abc.Classify(productStats)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis stage 2: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Recommendations = e.recommender.Recommend(result.Inventory, result.InventoryAlerts, demand, result.ABCTiers)

	for _, rows := range statsBySet {
		result.Statistics = append(result.Statistics, rows...)
	}
	result.TopProducts = topN(productStats, e.opts.TopNProducts)
	result.Summary = summarize(ds, result.Inventory, result.Recommendations)
	result.Warnings = append(result.Warnings, trendWarnings...)
	result.Warnings = append(result.Warnings, anomalyWarnings...)

	log.Debug().
		Dur("elapsed", time.Since(start)).
		Int("alerts", len(result.InventoryAlerts)).
		Int("anomalies", len(result.Anomalies)).
		Int("recommendations", len(result.Recommendations)).
		Msg("analytics: run complete")

	return result, nil
}

func indexOfSet(sets [][]Dimension, d Dimension) int {
	for i, set := range sets {
		if len(set) == 1 && set[0] == d {
			return i
		}
	}
	return 0
}

func emptyResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Statistics:      []domain.GroupStatistics{},
		TopProducts:     []domain.GroupStatistics{},
		Trend:           []domain.TrendBucket{},
		Demand:          []domain.ProductDemand{},
		Inventory:       []domain.InventoryStatus{},
		InventoryAlerts: []domain.Alert{},
		Anomalies:       []domain.Alert{},
		ABCTiers:        map[string]domain.Tier{},
		ABCRanking:      []domain.ABCEntry{},
		Recommendations: []domain.Recommendation{},
		Warnings:        []domain.Warning{},
	}
}

func topN(rows []domain.GroupStatistics, n int) []domain.GroupStatistics {
	if n <= 0 || n >= len(rows) {
		return append([]domain.GroupStatistics{}, rows...)
	}
	return append([]domain.GroupStatistics{}, rows[:n]...)
}

func summarize(ds *domain.Dataset, inventory []domain.InventoryStatus, recs []domain.Recommendation) domain.Summary {
	meta := ds.Meta()
	s := domain.Summary{
		TotalRows:    meta.RowCount,
		DroppedRows:  meta.DroppedRows,
		Products:     len(meta.Products),
		Labs:         len(meta.Labs),
		Categories:   len(meta.Categories),
		TotalRevenue: decimal.Zero,
		Highlights:   []string{},
	}
	if ds.Len() == 0 {
		return s
	}

	minDate, maxDate := meta.MinDate, meta.MaxDate
	s.StartDate, s.EndDate = &minDate, &maxDate
	for _, r := range ds.Records() {
		s.TotalQuantity += r.QuantitySold
		s.TotalRevenue = s.TotalRevenue.Add(r.Revenue())
	}
	for _, inv := range inventory {
		s.TotalStock += inv.StockOnHand
		if inv.TotalQuantitySold == 0 {
			s.ZeroSalesProducts++
		}
	}

	urgent := 0
	for _, r := range recs {
		if r.Action == domain.ActionReorder && r.Priority == domain.SeverityHigh {
			urgent++
		}
	}
	if urgent > 0 {
		s.Highlights = append(s.Highlights, fmt.Sprintf("%d product(s) need an urgent reorder", urgent))
	}
	if s.Products > 0 {
		share := float64(s.ZeroSalesProducts) / float64(s.Products)
		if share > zeroSalesHighlightShare {
			s.Highlights = append(s.Highlights,
				fmt.Sprintf("%.1f%% of products had no sales in the period; review the assortment", share*100))
		}
	}
	return s
}

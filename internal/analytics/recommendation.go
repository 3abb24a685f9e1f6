package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

// RecommendationEngine turns inventory alerts into reorder suggestions
type RecommendationEngine struct {
	leadTimeDays     int
	safetyFactor     float64
	minOrderQuantity int
}

// NewRecommendationEngine creates an engine with the lead time, safety and minimum order settings of opts
func NewRecommendationEngine(opts Options) *RecommendationEngine {
	return &RecommendationEngine{
		leadTimeDays:     opts.LeadTimeDays,
		safetyFactor:     opts.SafetyFactor,
		minOrderQuantity: opts.MinOrderQuantity,
	}
}

// SuggestedQuantity = ceil(daily * lead time * safety) - stock, floored at 0.
// Positive quantities below the minimum order are raised to the minimum and
// targets beyond int64 saturate at math.MaxInt64.
func (re *RecommendationEngine) SuggestedQuantity(movingAvgDaily float64, stock int64) int64 {
	need := math.Ceil(movingAvgDaily*float64(re.leadTimeDays)*re.safetyFactor) - float64(stock)

	var qty int64
	switch {
	case math.IsNaN(need) || need <= 0:
		return 0
	case need >= math.MaxInt64:
		qty = math.MaxInt64
	default:
		qty = int64(need)
	}

	if qty > 0 && qty < int64(re.minOrderQuantity) {
		qty = int64(re.minOrderQuantity)
	}
	return qty
}

type productTriggers struct {
	types    []domain.AlertType
	severity map[domain.AlertType]domain.Severity
}

// Recommend produces at most one recommendation per product carrying a
// low-stock, no-movement or overstock alert. Products without alerts get none.
func (re *RecommendationEngine) Recommend(
	inventory []domain.InventoryStatus,
	alerts    []domain.Alert,
	demand    []domain.ProductDemand,
	tiers     map[string]domain.Tier,
) []domain.Recommendation {
	triggers := make(map[string]*productTriggers)
	for _, a := range alerts {
		switch a.Type {
		case domain.AlertLowStock, domain.AlertNoMovement, domain.AlertOverstock:
		default:
			continue
		}
		t, ok := triggers[a.ProductID]
		if !ok {
			t = &productTriggers{severity: make(map[domain.AlertType]domain.Severity)}
			triggers[a.ProductID] = t
		}
		if _, seen := t.severity[a.Type]; !seen {
			t.types = append(t.types, a.Type)
		}
		t.severity[a.Type] = domain.MaxSeverity(t.severity[a.Type], a.Severity)
	}

	movingAvg := make(map[string]float64, len(demand))
	for _, d := range demand {
		movingAvg[d.ProductID] = d.MovingAverageDailySales
	}

	out := []domain.Recommendation{}
	for _, status := range inventory {
		t, ok := triggers[status.ProductID]
		if !ok {
			continue
		}
		sort.Slice(t.types, func(i, j int) bool { return alertTypeOrder[t.types[i]] < alertTypeOrder[t.types[j]] })

		tier, ok := tiers[status.ProductID]
		if !ok {
			tier = domain.TierC
		}
		out = append(out, re.recommend(status, tier, t, movingAvg[status.ProductID]))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

func (re *RecommendationEngine) recommend(status domain.InventoryStatus, tier domain.Tier, t *productTriggers, movingAvg float64) domain.Recommendation {
	rec := domain.Recommendation{
		ProductID:               status.ProductID,
		Tier:                    tier,
		Triggers:                append([]domain.AlertType(nil), t.types...),
		StockOnHand:             status.StockOnHand,
		MovingAverageDailySales: movingAvg,
	}

	if sev, ok := t.severity[domain.AlertNoMovement]; ok {
		rec.Priority = sev
		if tier == domain.TierC {
			rec.Action = domain.ActionDelist
			rec.Rationale = fmt.Sprintf("consider delisting: tier C product with no sales in the observed window and %d units on hand",
				status.StockOnHand)
		} else {
			rec.Action = domain.ActionReview
			rec.Rationale = fmt.Sprintf("no sales in the observed window for a tier %s product with %d units on hand; review assortment and pricing",
				tier, status.StockOnHand)
		}
		return rec
	}

	if sev, ok := t.severity[domain.AlertLowStock]; ok {
		rec.Priority = sev
		rec.SuggestedQuantity = re.SuggestedQuantity(movingAvg, status.StockOnHand)
		cover := fmt.Sprintf("%.2f units/day over %d lead-time days with safety factor %.2f",
			movingAvg, re.leadTimeDays, re.safetyFactor)

		switch {
		case rec.SuggestedQuantity == 0:
			rec.Action = domain.ActionMonitor
			rec.Rationale = fmt.Sprintf("stock of %d units already covers %s; monitor", status.StockOnHand, cover)
		case tier == domain.TierA:
			rec.Action = domain.ActionReorder
			rec.Rationale = fmt.Sprintf("HIGH PRIORITY: tier A product running low (%s days of stock); reorder %d units to cover %s",
				formatDays(status), rec.SuggestedQuantity, cover)
		default:
			rec.Action = domain.ActionReorder
			rec.Rationale = fmt.Sprintf("reorder %d units to cover %s (%s days of stock left)",
				rec.SuggestedQuantity, cover, formatDays(status))
		}
		if tier == domain.TierA {
			rec.Priority = domain.SeverityHigh
		}
		return rec
	}

	sev := t.severity[domain.AlertOverstock]
	rec.Priority = sev
	rec.Action = domain.ActionHold
	rec.Rationale = fmt.Sprintf("hold orders: %s days of stock on hand, above the overstock threshold", formatDays(status))
	return rec
}

func formatDays(s domain.InventoryStatus) string {
	if s.DaysOfStockInf || s.DaysOfStock == nil {
		return "unbounded"
	}
	return fmt.Sprintf("%.1f", *s.DaysOfStock)
}

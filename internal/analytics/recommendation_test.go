package analytics

import (
	"math"
	"strings"
	"testing"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

func TestSuggestedQuantity(t *testing.T) {
	cases := []struct {
		name     string
		minOrder int
		daily    float64
		stock    int64
		want     int64
	}{
		{"covers lead time", 0, 2, 3, 18},
		{"rounds demand up", 0, 0.1, 0, 2},
		{"stock above target", 0, 2, 100, 0},
		{"raised to minimum order", 50, 2, 3, 50},
		{"zero stays zero with minimum", 50, 2, 100, 0},
		{"no demand", 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.MinOrderQuantity = tc.minOrder
			got := NewRecommendationEngine(opts).SuggestedQuantity(tc.daily, tc.stock)
			if got != tc.want {
				t.Fatalf("SuggestedQuantity(%v, %d) = %d, want %d", tc.daily, tc.stock, got, tc.want)
			}
			if got < 0 {
				t.Fatalf("negative suggestion %d", got)
			}
		})
	}
}

func TestSuggestedQuantityNonFiniteTargets(t *testing.T) {
	cases := []struct {
		name   string
		safety float64
		daily  float64
		want   int64
	}{
		{"huge safety saturates", 1e300, 2, math.MaxInt64},
		{"infinite safety saturates", math.Inf(1), 2, math.MaxInt64},
		{"nan safety is zero", math.NaN(), 2, 0},
		{"nan demand is zero", 1.5, math.NaN(), 0},
		{"infinite safety without demand", math.Inf(1), 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			re := &RecommendationEngine{leadTimeDays: 7, safetyFactor: tc.safety}
			if got := re.SuggestedQuantity(tc.daily, 3); got != tc.want {
				t.Fatalf("SuggestedQuantity = %d, want %d", got, tc.want)
			}
		})
	}
}

func days(v float64) *float64 { return &v }

func TestRecommendActions(t *testing.T) {
	inventory := []domain.InventoryStatus{
		{ProductID: "A-LOW", StockOnHand: 2, DaysOfStock: days(1), AverageDailySales: 2},
		{ProductID: "B-LOW", StockOnHand: 5, DaysOfStock: days(5), AverageDailySales: 1},
		{ProductID: "C-IDLE", StockOnHand: 40, DaysOfStockInf: true},
		{ProductID: "B-IDLE", StockOnHand: 10, DaysOfStockInf: true},
		{ProductID: "OVER", StockOnHand: 900, DaysOfStock: days(300), AverageDailySales: 3},
		{ProductID: "HEALTHY", StockOnHand: 50, DaysOfStock: days(25), AverageDailySales: 2},
		{ProductID: "COVERED", StockOnHand: 30, DaysOfStock: days(6), AverageDailySales: 5},
	}
	alerts := []domain.Alert{
		{Type: domain.AlertLowStock, ProductID: "A-LOW", Severity: domain.SeverityHigh},
		{Type: domain.AlertLowStock, ProductID: "B-LOW", Severity: domain.SeverityMedium},
		{Type: domain.AlertNoMovement, ProductID: "C-IDLE", Severity: domain.SeverityHigh},
		{Type: domain.AlertNoMovement, ProductID: "B-IDLE", Severity: domain.SeverityMedium},
		{Type: domain.AlertOverstock, ProductID: "OVER", Severity: domain.SeverityMedium},
		{Type: domain.AlertLowStock, ProductID: "COVERED", Severity: domain.SeverityMedium},
		{Type: domain.AlertOutlier, ProductID: "HEALTHY", Severity: domain.SeverityHigh},
	}
	demand := []domain.ProductDemand{
		{ProductID: "A-LOW", MovingAverageDailySales: 2},
		{ProductID: "B-LOW", MovingAverageDailySales: 1},
		{ProductID: "OVER", MovingAverageDailySales: 3},
		{ProductID: "HEALTHY", MovingAverageDailySales: 2},
		{ProductID: "COVERED", MovingAverageDailySales: 1},
	}
	tiers := map[string]domain.Tier{
		"A-LOW": domain.TierA, "B-LOW": domain.TierB, "C-IDLE": domain.TierC,
		"B-IDLE": domain.TierB, "OVER": domain.TierA, "HEALTHY": domain.TierA, "COVERED": domain.TierC,
	}

	recs := NewRecommendationEngine(DefaultOptions()).Recommend(inventory, alerts, demand, tiers)
	byID := make(map[string]domain.Recommendation)
	for _, r := range recs {
		byID[r.ProductID] = r
		if r.SuggestedQuantity < 0 {
			t.Fatalf("negative suggestion: %+v", r)
		}
	}

	if _, ok := byID["HEALTHY"]; ok {
		t.Fatalf("product without an inventory alert must not be recommended")
	}
	if len(recs) != 6 {
		t.Fatalf("expected 6 recommendations, got %d", len(recs))
	}

	a := byID["A-LOW"]
	if a.Action != domain.ActionReorder || a.Priority != domain.SeverityHigh || a.SuggestedQuantity != 19 {
		t.Fatalf("A-LOW = %+v", a)
	}
	if !strings.HasPrefix(a.Rationale, "HIGH PRIORITY") {
		t.Fatalf("tier A low stock rationale = %q", a.Rationale)
	}

	b := byID["B-LOW"]
	if b.Action != domain.ActionReorder || b.Priority != domain.SeverityMedium || b.SuggestedQuantity != 6 {
		t.Fatalf("B-LOW = %+v", b)
	}

	c := byID["C-IDLE"]
	if c.Action != domain.ActionDelist || c.SuggestedQuantity != 0 || !strings.Contains(c.Rationale, "consider delisting") {
		t.Fatalf("C-IDLE = %+v", c)
	}
	if byID["B-IDLE"].Action != domain.ActionReview {
		t.Fatalf("B-IDLE = %+v", byID["B-IDLE"])
	}
	if o := byID["OVER"]; o.Action != domain.ActionHold || o.SuggestedQuantity != 0 {
		t.Fatalf("OVER = %+v", o)
	}
	if cv := byID["COVERED"]; cv.Action != domain.ActionMonitor || cv.SuggestedQuantity != 0 {
		t.Fatalf("COVERED = %+v", cv)
	}

	for i := 1; i < len(recs); i++ {
		if recs[i-1].Priority.Rank() < recs[i].Priority.Rank() {
			t.Fatalf("recommendations not sorted by priority")
		}
	}
	if recs[0].ProductID != "A-LOW" || recs[1].ProductID != "C-IDLE" {
		t.Fatalf("high priority first, by product id: %s, %s", recs[0].ProductID, recs[1].ProductID)
	}
}

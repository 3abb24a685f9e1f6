package analytics

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

func productRows(revenues map[string]int64) []domain.GroupStatistics {
	rows := make([]domain.GroupStatistics, 0, len(revenues))
	for id, rev := range revenues {
		rows = append(rows, domain.GroupStatistics{
			Dimensions: []string{"product"},
			Values:     []string{id},
			Key:        id,
			RevenueSum: decimal.NewFromInt(rev),
		})
	}
	return rows
}

func TestABCScenario(t *testing.T) {
	ranking, tiers := NewABCClassifier([2]float64{80, 95}).Classify(productRows(map[string]int64{
		"P1": 1000, "P2": 150, "P3": 50,
	}))

	wantCum := []float64{83.3333, 95.8333, 100}
	wantTier := []domain.Tier{domain.TierA, domain.TierB, domain.TierC}
	for i, e := range ranking {
		if e.CumulativePct != wantCum[i] || e.Tier != wantTier[i] || e.Rank != i+1 {
			t.Fatalf("entry %d = %+v", i, e)
		}
		if tiers[e.ProductID] != e.Tier {
			t.Fatalf("tier map disagrees for %s", e.ProductID)
		}
	}
}

func TestABCIsPartitionWithMonotonicCumulative(t *testing.T) {
	revenues := map[string]int64{"A": 500, "B": 500, "C": 300, "D": 120, "E": 60, "F": 15, "G": 5, "Z": 0}
	ranking, tiers := NewABCClassifier([2]float64{80, 95}).Classify(productRows(revenues))

	if len(ranking) != len(revenues) || len(tiers) != len(revenues) {
		t.Fatalf("every product must be tiered once: %d ranked, %d tiers", len(ranking), len(tiers))
	}
	seen := make(map[string]bool)
	for i, e := range ranking {
		if seen[e.ProductID] {
			t.Fatalf("%s ranked twice", e.ProductID)
		}
		seen[e.ProductID] = true
		if i > 0 && e.CumulativePct < ranking[i-1].CumulativePct {
			t.Fatalf("cumulative percentage decreased at %d", i)
		}
	}
	if ranking[0].ProductID != "A" || ranking[1].ProductID != "B" {
		t.Fatalf("equal revenue must break ties by product id: %s, %s", ranking[0].ProductID, ranking[1].ProductID)
	}
	if tiers["Z"] != domain.TierC {
		t.Fatalf("zero revenue must be tier C, got %s", tiers["Z"])
	}
}

func TestABCAllZeroRevenue(t *testing.T) {
	ranking, _ := NewABCClassifier([2]float64{80, 95}).Classify(productRows(map[string]int64{"A": 0, "B": 0}))
	for _, e := range ranking {
		if e.Tier != domain.TierC || e.CumulativePct != 0 {
			t.Fatalf("entry = %+v", e)
		}
	}
}

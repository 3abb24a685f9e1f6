package analytics

import (
	"testing"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

func inventoryFixture() *domain.Dataset {
	return domain.NewDataset([]domain.Record{
		// selling fast with little stock left
		rec("FAST", "L", "C", "2024-01-01", 10, "1", 5),
		rec("FAST", "L", "C", "2024-01-10", 10, "1", 3),
		// never stocked, never sold
		rec("EXHAUSTED", "L", "C", "2024-01-01", 0, "1", 0),
		rec("EXHAUSTED", "L", "C", "2024-01-10", 0, "1", 0),
		// held stock earlier, sold nothing, now empty
		rec("EMPTIED", "L", "C", "2024-01-01", 0, "1", 4),
		rec("EMPTIED", "L", "C", "2024-01-10", 0, "1", 0),
		// idle shelf
		rec("IDLE", "L", "C", "2024-01-05", 0, "1", 50),
		// barely moving
		rec("SLOW", "L", "C", "2024-01-01", 1, "1", 100),
		rec("SLOW", "L", "C", "2024-01-10", 0, "1", 100),
	}, 0)
}

func analyzeInventory(t *testing.T, ds *domain.Dataset) (map[string]domain.InventoryStatus, map[string][]domain.Alert) {
	t.Helper()
	demand := NewTrendAnalyzer(BucketWeek, 3).ProductDemand(ds)
	statuses, alerts := NewInventoryAnalyzer(7, 90).Analyze(ds, demand)

	byID := make(map[string]domain.InventoryStatus, len(statuses))
	for _, s := range statuses {
		byID[s.ProductID] = s
	}
	alertsByID := make(map[string][]domain.Alert)
	for _, a := range alerts {
		alertsByID[a.ProductID] = append(alertsByID[a.ProductID], a)
	}
	return byID, alertsByID
}

func TestInventoryMetrics(t *testing.T) {
	statuses, _ := analyzeInventory(t, inventoryFixture())

	fast := statuses["FAST"]
	if fast.StockOnHand != 3 || fast.AverageStock != 4 || fast.AverageDailySales != 2 {
		t.Fatalf("FAST = %+v", fast)
	}
	if fast.DaysOfStock == nil || *fast.DaysOfStock != 1.5 {
		t.Fatalf("FAST days of stock = %v", fast.DaysOfStock)
	}
	if fast.TurnoverRatio != 5 || fast.RotationClass != domain.RotationVeryHigh {
		t.Fatalf("FAST turnover %v rotation %s", fast.TurnoverRatio, fast.RotationClass)
	}

	exhausted := statuses["EXHAUSTED"]
	if exhausted.DaysOfStock == nil || *exhausted.DaysOfStock != 0 || exhausted.DaysOfStockInf {
		t.Fatalf("zero stock must have zero days of stock: %+v", exhausted)
	}
	if exhausted.TurnoverRatio != 0 {
		t.Fatalf("zero average stock turnover = %v", exhausted.TurnoverRatio)
	}

	idle := statuses["IDLE"]
	if idle.DaysOfStock != nil || !idle.DaysOfStockInf {
		t.Fatalf("stock without sales should be unbounded: %+v", idle)
	}
	if idle.RotationClass != domain.RotationNone {
		t.Fatalf("IDLE rotation = %s", idle.RotationClass)
	}
}

func TestInventoryAlerts(t *testing.T) {
	_, alerts := analyzeInventory(t, inventoryFixture())

	cases := []struct {
		product  string
		types    []domain.AlertType
		severity domain.Severity
	}{
		{"FAST", []domain.AlertType{domain.AlertLowStock}, domain.SeverityHigh},
		{"EXHAUSTED", nil, ""},
		{"EMPTIED", []domain.AlertType{domain.AlertNoMovement}, domain.SeverityMedium},
		{"IDLE", []domain.AlertType{domain.AlertNoMovement}, domain.SeverityHigh},
		{"SLOW", []domain.AlertType{domain.AlertOverstock}, domain.SeverityMedium},
	}
	for _, tc := range cases {
		t.Run(tc.product, func(t *testing.T) {
			got := alerts[tc.product]
			if len(got) != len(tc.types) {
				t.Fatalf("alerts = %+v, want types %v", got, tc.types)
			}
			for i, a := range got {
				if a.Type != tc.types[i] || a.Severity != tc.severity {
					t.Fatalf("alert %d = %s/%s, want %s/%s", i, a.Type, a.Severity, tc.types[i], tc.severity)
				}
				if a.Rationale == "" {
					t.Fatalf("alert without rationale: %+v", a)
				}
			}
		})
	}
}

func TestInventoryAlertOrdering(t *testing.T) {
	demand := NewTrendAnalyzer(BucketWeek, 3).ProductDemand(inventoryFixture())
	_, alerts := NewInventoryAnalyzer(7, 90).Analyze(inventoryFixture(), demand)
	for i := 1; i < len(alerts); i++ {
		if alerts[i-1].Severity.Rank() < alerts[i].Severity.Rank() {
			t.Fatalf("alerts not sorted by severity: %+v", alerts)
		}
	}
}

func TestLowStockSeverityBand(t *testing.T) {
	ds := domain.NewDataset([]domain.Record{
		rec("MID", "L", "C", "2024-01-01", 10, "1", 10),
		rec("MID", "L", "C", "2024-01-05", 10, "1", 20),
	}, 0)
	// 4 units/day, 20 units left: 5 days, between threshold/2 and threshold
	_, alerts := analyzeInventory(t, ds)
	got := alerts["MID"]
	if len(got) != 1 || got[0].Severity != domain.SeverityMedium || got[0].Metric != 5 {
		t.Fatalf("alerts = %+v", got)
	}
}

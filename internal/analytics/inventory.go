package analytics

import (
	"fmt"
	"sort"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

// InventoryAnalyzer computes stock health metrics and flags per product
type InventoryAnalyzer struct {
	lowStockDays  int
	overstockDays int
}

// NewInventoryAnalyzer creates an analyzer with the given day thresholds
func NewInventoryAnalyzer(lowStockDays, overstockDays int) *InventoryAnalyzer {
	return &InventoryAnalyzer{
		lowStockDays:  lowStockDays,
		overstockDays: overstockDays,
	}
}

type productStock struct {
	lab         string
	category    string
	latestDate  int64
	latestStock int64
	maxStock    int64
	stockSum    int64
	records     int
	sold        int64
}

// Analyze returns one InventoryStatus per product (sorted by product id) and the
// low-stock, no-movement and overstock alerts derived from them.
func (ia *InventoryAnalyzer) Analyze(ds *domain.Dataset, demand []domain.ProductDemand) ([]domain.InventoryStatus, []domain.Alert) {
	if ds.Len() == 0 {
		return []domain.InventoryStatus{}, []domain.Alert{}
	}

	products := make(map[string]*productStock)
	for _, r := range ds.Records() {
		p, ok := products[r.ProductID]
		if !ok {
			p = &productStock{}
			products[r.ProductID] = p
		}
		// ties on date resolve to the later record in dataset order
		if ts := r.Date.Unix(); p.records == 0 || ts >= p.latestDate {
			p.latestDate = ts
			p.latestStock = r.StockOnHand
			p.lab = r.Lab
			p.category = r.Category
		}
		if r.StockOnHand > p.maxStock {
			p.maxStock = r.StockOnHand
		}
		p.stockSum += r.StockOnHand
		p.sold += r.QuantitySold
		p.records++
	}

	dailySales := make(map[string]float64, len(demand))
	for _, d := range demand {
		dailySales[d.ProductID] = d.AverageDailySales
	}

	latest := make([]float64, 0, len(products))
	for _, p := range products {
		latest = append(latest, float64(p.latestStock))
	}
	medianStock := median(latest)

	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	statuses := make([]domain.InventoryStatus, 0, len(ids))
	alerts := []domain.Alert{}
	for _, id := range ids {
		p := products[id]
		status := ia.status(id, p, dailySales[id])

		if status.LowStock {
			alerts = append(alerts, ia.lowStockAlert(status))
		}
		if status.NoMovement {
			alerts = append(alerts, noMovementAlert(status, medianStock))
		}
		if status.Overstock {
			alerts = append(alerts, ia.overstockAlert(status))
		}
		statuses = append(statuses, status)
	}

	sortAlerts(alerts)
	return statuses, alerts
}

func (ia *InventoryAnalyzer) status(id string, p *productStock, avgDaily float64) domain.InventoryStatus {
	s := domain.InventoryStatus{
		ProductID:         id,
		Lab:               p.lab,
		Category:          p.category,
		StockOnHand:       p.latestStock,
		AverageStock:      roundFloat(float64(p.stockSum)/float64(p.records), 4),
		TotalQuantitySold: p.sold,
		AverageDailySales: avgDaily,
	}

	switch {
	case p.latestStock == 0:
		zero := 0.0
		s.DaysOfStock = &zero
	case avgDaily == 0:
		s.DaysOfStockInf = true
	default:
		days := roundFloat(float64(p.latestStock)/avgDaily, 2)
		s.DaysOfStock = &days
	}

	if s.AverageStock > 0 {
		s.TurnoverRatio = roundFloat(float64(p.sold)/s.AverageStock, 4)
	}

	denominator := p.latestStock
	if denominator < 1 {
		denominator = 1
	}
	s.Rotation = roundFloat(float64(p.sold)/float64(denominator), 4)
	s.RotationClass = rotationClass(s.Rotation)

	// exhausted stock is never "low"
	s.LowStock = p.latestStock > 0 && s.DaysOfStock != nil && *s.DaysOfStock < float64(ia.lowStockDays)
	// a product that never held stock gives no signal
	s.NoMovement = p.sold == 0 && p.maxStock > 0
	s.Overstock = s.DaysOfStock != nil && *s.DaysOfStock > float64(ia.overstockDays)

	return s
}

func rotationClass(rotation float64) domain.RotationClass {
	switch {
	case rotation <= 0.1:
		return domain.RotationNone
	case rotation <= 0.5:
		return domain.RotationLow
	case rotation <= 1:
		return domain.RotationMedium
	case rotation <= 5:
		return domain.RotationHigh
	default:
		return domain.RotationVeryHigh
	}
}

func (ia *InventoryAnalyzer) lowStockAlert(s domain.InventoryStatus) domain.Alert {
	days := *s.DaysOfStock
	threshold := float64(ia.lowStockDays)
	severity := domain.SeverityMedium
	if days < threshold/2 {
		severity = domain.SeverityHigh
	}
	return domain.Alert{
		Type:      domain.AlertLowStock,
		ProductID: s.ProductID,
		Severity:  severity,
		Rationale: fmt.Sprintf("%d units on hand cover %.1f days at %.2f units/day, below the %d-day threshold",
			s.StockOnHand, days, s.AverageDailySales, ia.lowStockDays),
		Metric:    days,
		Threshold: threshold,
	}
}

func noMovementAlert(s domain.InventoryStatus, medianStock float64) domain.Alert {
	severity := domain.SeverityMedium
	if medianStock > 0 && float64(s.StockOnHand) >= 2*medianStock {
		severity = domain.SeverityHigh
	}
	return domain.Alert{
		Type:      domain.AlertNoMovement,
		ProductID: s.ProductID,
		Severity:  severity,
		Rationale: fmt.Sprintf("no units sold in the observed window while holding stock (%d units on hand)", s.StockOnHand),
		Metric:    float64(s.StockOnHand),
		Threshold: 0,
	}
}

func (ia *InventoryAnalyzer) overstockAlert(s domain.InventoryStatus) domain.Alert {
	days := *s.DaysOfStock
	threshold := float64(ia.overstockDays)
	severity := domain.SeverityLow
	if days > 2*threshold {
		severity = domain.SeverityMedium
	}
	return domain.Alert{
		Type:      domain.AlertOverstock,
		ProductID: s.ProductID,
		Severity:  severity,
		Rationale: fmt.Sprintf("%d units on hand cover %.1f days, above the %d-day overstock threshold",
			s.StockOnHand, days, ia.overstockDays),
		Metric:    days,
		Threshold: threshold,
	}
}

var alertTypeOrder = map[domain.AlertType]int{
	domain.AlertLowStock:   0,
	domain.AlertNoMovement: 1,
	domain.AlertOverstock:  2,
	domain.AlertOutlier:    3,
}

// sortAlerts orders by severity (high first), then product id, then alert type.
func sortAlerts(alerts []domain.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return alertTypeOrder[a.Type] < alertTypeOrder[b.Type]
	})
}

package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ABCClassifier tiers products by cumulative revenue contribution
type ABCClassifier struct {
	thresholdA float64
	thresholdB float64
}

// NewABCClassifier creates a classifier with cumulative percentage cut-offs for A and B
func NewABCClassifier(thresholds [2]float64) *ABCClassifier {
	return &ABCClassifier{thresholdA: thresholds[0], thresholdB: thresholds[1]}
}

// Classify ranks the product statistics rows by revenue (ties by product id).
// A product takes the tier whose band contains the cumulative share reached
// before it, so the product crossing a cut-off still belongs to the lower band.
// Zero-revenue products are always C. Every input product appears exactly once.
func (c *ABCClassifier) Classify(productStats []domain.GroupStatistics) ([]domain.ABCEntry, map[string]domain.Tier) {
	type item struct {
		id      string
		revenue decimal.Decimal
	}

	items := make([]item, 0, len(productStats))
	total := decimal.Zero
	for _, s := range productStats {
		id := s.Key
		if len(s.Values) > 0 {
			id = s.Values[0]
		}
		items = append(items, item{id: id, revenue: s.RevenueSum})
		total = total.Add(s.RevenueSum)
	}

	sort.Slice(items, func(i, j int) bool {
		if cmp := items[i].revenue.Cmp(items[j].revenue); cmp != 0 {
			return cmp > 0
		}
		return items[i].id < items[j].id
	})

	ranking := make([]domain.ABCEntry, 0, len(items))
	tiers := make(map[string]domain.Tier, len(items))
	cumulative := decimal.Zero
	prevPct := 0.0
	for i, it := range items {
		entry := domain.ABCEntry{
			Rank:      i + 1,
			ProductID: it.id,
			Revenue:   it.revenue,
			Tier:      domain.TierC,
		}

		if total.IsPositive() {
			cumulative = cumulative.Add(it.revenue)
			entry.SharePct = roundFloat(it.revenue.Div(total).Mul(hundred).InexactFloat64(), 4)
			entry.CumulativePct = roundFloat(cumulative.Div(total).Mul(hundred).InexactFloat64(), 4)
		}

		if it.revenue.IsPositive() {
			switch {
			case prevPct < c.thresholdA:
				entry.Tier = domain.TierA
			case prevPct < c.thresholdB:
				entry.Tier = domain.TierB
			}
		}
		prevPct = entry.CumulativePct

		ranking = append(ranking, entry)
		tiers[it.id] = entry.Tier
	}

	return ranking, tiers
}

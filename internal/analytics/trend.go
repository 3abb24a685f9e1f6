package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

// bucketer assigns dates to trend periods. Day and week periods are anchored
// at the first observed date; month periods are calendar months.
type bucketer struct {
	bucket Bucket
}

func newBucketer(b Bucket) *bucketer {
	return &bucketer{bucket: b}
}

func (b *bucketer) sizeDays() int {
	switch b.bucket {
	case BucketDay:
		return 1
	case BucketWeek:
		return 7
	}
	return 0
}

func (b *bucketer) startOf(date, origin time.Time) time.Time {
	if b.bucket == BucketMonth {
		return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	size := b.sizeDays()
	offset := daysBetween(origin, date)
	return origin.AddDate(0, 0, (offset/size)*size)
}

// end returns the last day (inclusive) of the period starting at start
func (b *bucketer) end(start time.Time) time.Time {
	if b.bucket == BucketMonth {
		return start.AddDate(0, 1, -1)
	}
	return start.AddDate(0, 0, b.sizeDays()-1)
}

func (b *bucketer) next(start time.Time) time.Time {
	if b.bucket == BucketMonth {
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, b.sizeDays())
}

func (b *bucketer) label(start time.Time) string {
	if b.bucket == BucketMonth {
		return start.Format("2006-01")
	}
	return start.Format(DefaultDateFormat)
}

// starts lists every period start covering [minDate, maxDate] without gaps.
// Day and week series have ceil(span/size)+1 periods.
func (b *bucketer) starts(minDate, maxDate time.Time) []time.Time {
	if b.bucket == BucketMonth {
		var out []time.Time
		last := b.startOf(maxDate, minDate)
		for s := b.startOf(minDate, minDate); !s.After(last); s = b.next(s) {
			out = append(out, s)
		}
		return out
	}

	size := b.sizeDays()
	span := daysBetween(minDate, maxDate)
	count := int(math.Ceil(float64(span)/float64(size))) + 1
	out := make([]time.Time, count)
	for i := range out {
		out[i] = minDate.AddDate(0, 0, i*size)
	}
	return out
}

// daysInWindow counts the days of the period starting at start that fall inside [minDate, maxDate]
func (b *bucketer) daysInWindow(start, minDate, maxDate time.Time) int {
	from, to := start, b.end(start)
	if from.Before(minDate) {
		from = minDate
	}
	if to.After(maxDate) {
		to = maxDate
	}
	if to.Before(from) {
		return 0
	}
	return daysBetween(from, to) + 1
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// TrendAnalyzer buckets sales by period and derives growth and moving averages
type TrendAnalyzer struct {
	bucketer *bucketer
	window   int
}

// NewTrendAnalyzer creates an analyzer for the given bucket size and moving-average window
func NewTrendAnalyzer(bucket Bucket, window int) *TrendAnalyzer {
	if window < 1 {
		window = 1
	}
	return &TrendAnalyzer{bucketer: newBucketer(bucket), window: window}
}

// Series returns the gap-free bucket series. Growth is nil for the first bucket
// and whenever the previous bucket is zero; the latter also yields a zero_baseline warning.
func (ta *TrendAnalyzer) Series(ds *domain.Dataset) ([]domain.TrendBucket, []domain.Warning) {
	if ds.Len() == 0 {
		return []domain.TrendBucket{}, nil
	}

	meta := ds.Meta()
	starts := ta.bucketer.starts(meta.MinDate, meta.MaxDate)
	buckets := make([]domain.TrendBucket, len(starts))
	position := make(map[time.Time]int, len(starts))
	for i, s := range starts {
		buckets[i] = domain.TrendBucket{
			Label:   ta.bucketer.label(s),
			Start:   s,
			End:     ta.bucketer.end(s),
			Revenue: decimal.Zero,
		}
		position[s] = i
	}

	for _, r := range ds.Records() {
		i := position[ta.bucketer.startOf(r.Date, meta.MinDate)]
		buckets[i].Records++
		buckets[i].Quantity += r.QuantitySold
		buckets[i].Revenue = buckets[i].Revenue.Add(r.Revenue())
	}

	var warnings []domain.Warning
	quantities := make([]float64, len(buckets))
	revenues := make([]float64, len(buckets))
	for i := range buckets {
		quantities[i] = float64(buckets[i].Quantity)
		revenues[i] = buckets[i].Revenue.InexactFloat64()
		buckets[i].QuantityMovingAvg = roundFloat(movingAverageAt(quantities, i, ta.window), 4)
		buckets[i].RevenueMovingAvg = roundFloat(movingAverageAt(revenues, i, ta.window), 4)

		if i == 0 {
			continue
		}
		prev := buckets[i-1]
		buckets[i].QuantityGrowth = growth(float64(buckets[i].Quantity), float64(prev.Quantity))
		buckets[i].RevenueGrowth = growthDecimal(buckets[i].Revenue, prev.Revenue)
		if prev.Quantity == 0 || prev.Revenue.IsZero() {
			w := newWarning(SectionTrend, domain.WarnZeroBaseline,
				"growth unavailable for %s: previous period %s has zero baseline", buckets[i].Label, prev.Label)
			w.Group = buckets[i].Label
			warnings = append(warnings, w)
		}
	}

	return buckets, warnings
}

// ProductDemand returns per-product sales rates, sorted by product id.
// Average daily sales spreads total quantity over the observed window; the
// moving-average rate is the trailing window mean of per-period daily rates.
func (ta *TrendAnalyzer) ProductDemand(ds *domain.Dataset) []domain.ProductDemand {
	if ds.Len() == 0 {
		return []domain.ProductDemand{}
	}

	meta := ds.Meta()
	starts := ta.bucketer.starts(meta.MinDate, meta.MaxDate)
	position := make(map[time.Time]int, len(starts))
	for i, s := range starts {
		position[s] = i
	}

	perProduct := make(map[string][]int64, len(meta.Products))
	totals := make(map[string]int64, len(meta.Products))
	for _, p := range meta.Products {
		perProduct[p] = make([]int64, len(starts))
	}
	for _, r := range ds.Records() {
		i := position[ta.bucketer.startOf(r.Date, meta.MinDate)]
		perProduct[r.ProductID][i] += r.QuantitySold
		totals[r.ProductID] += r.QuantitySold
	}

	windowDays := float64(ds.WindowDays())
	out := make([]domain.ProductDemand, 0, len(meta.Products))
	for _, p := range meta.Products {
		var rates []float64
		for i, s := range starts {
			days := ta.bucketer.daysInWindow(s, meta.MinDate, meta.MaxDate)
			if days == 0 {
				continue
			}
			rates = append(rates, float64(perProduct[p][i])/float64(days))
		}
		ma := 0.0
		if len(rates) > 0 {
			ma = movingAverageAt(rates, len(rates)-1, ta.window)
		}
		out = append(out, domain.ProductDemand{
			ProductID:               p,
			TotalQuantity:           totals[p],
			AverageDailySales:       roundFloat(float64(totals[p])/windowDays, 4),
			MovingAverageDailySales: roundFloat(ma, 4),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// movingAverageAt averages values[i-window+1 .. i], using fewer values near the start.
func movingAverageAt(values []float64, i, window int) float64 {
	from := i - window + 1
	if from < 0 {
		from = 0
	}
	return mean(values[from : i+1])
}

func growth(current, previous float64) *float64 {
	if previous == 0 {
		return nil
	}
	g := roundFloat((current-previous)/previous, 4)
	return &g
}

func growthDecimal(current, previous decimal.Decimal) *float64 {
	if previous.IsZero() {
		return nil
	}
	g := roundFloat(current.Sub(previous).Div(previous).InexactFloat64(), 4)
	return &g
}

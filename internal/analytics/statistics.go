package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

// AllGroupKey is the key of the single group produced for an empty dimension list
const AllGroupKey = "(all)"

const keySeparator = " / "

type groupAccumulator struct {
	values      []string
	count       int
	quantitySum int64
	quantityMin int64
	quantityMax int64
	revenueSum  decimal.Decimal
	revenueMin  decimal.Decimal
	revenueMax  decimal.Decimal
	revenues    []float64
}

func (g *groupAccumulator) add(r domain.Record) {
	rev := r.Revenue()
	if g.count == 0 {
		g.quantityMin, g.quantityMax = r.QuantitySold, r.QuantitySold
		g.revenueMin, g.revenueMax = rev, rev
	} else {
		if r.QuantitySold < g.quantityMin {
			g.quantityMin = r.QuantitySold
		}
		if r.QuantitySold > g.quantityMax {
			g.quantityMax = r.QuantitySold
		}
		if rev.LessThan(g.revenueMin) {
			g.revenueMin = rev
		}
		if rev.GreaterThan(g.revenueMax) {
			g.revenueMax = rev
		}
	}
	g.count++
	g.quantitySum += r.QuantitySold
	g.revenueSum = g.revenueSum.Add(rev)
	g.revenues = append(g.revenues, rev.InexactFloat64())
}

// StatisticsCalculator aggregates records by a list of dimensions.
// Period values are labelled with the configured trend bucket.
type StatisticsCalculator struct {
	bucketer *bucketer
}

// NewStatisticsCalculator creates a calculator whose period dimension follows the given bucket
func NewStatisticsCalculator(bucket Bucket) *StatisticsCalculator {
	return &StatisticsCalculator{bucketer: newBucketer(bucket)}
}

// Compute returns one row per group, sorted by revenue sum descending then key ascending.
// An empty dimension list yields a single whole-dataset group; an empty dataset yields no rows.
func (sc *StatisticsCalculator) Compute(ds *domain.Dataset, dims []Dimension) []domain.GroupStatistics {
	if ds.Len() == 0 {
		return []domain.GroupStatistics{}
	}

	origin := ds.Meta().MinDate
	groups := make(map[string]*groupAccumulator)
	for _, r := range ds.Records() {
		values := sc.dimensionValues(r, dims, origin)
		key := groupKey(values)
		acc, ok := groups[key]
		if !ok {
			acc = &groupAccumulator{values: values}
			groups[key] = acc
		}
		acc.add(r)
	}

	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = string(d)
	}

	rows := make([]domain.GroupStatistics, 0, len(groups))
	for key, acc := range groups {
		rows = append(rows, domain.GroupStatistics{
			Dimensions:    append([]string(nil), names...),
			Values:        acc.values,
			Key:           key,
			Count:         acc.count,
			QuantitySum:   acc.quantitySum,
			QuantityMean:  roundFloat(float64(acc.quantitySum)/float64(acc.count), 4),
			QuantityMin:   acc.quantityMin,
			QuantityMax:   acc.quantityMax,
			RevenueSum:    acc.revenueSum,
			RevenueMean:   roundFloat(acc.revenueSum.Div(decimal.NewFromInt(int64(acc.count))).InexactFloat64(), 4),
			RevenueStdDev: roundFloat(sampleStdDev(acc.revenues), 4),
			RevenueMin:    acc.revenueMin,
			RevenueMax:    acc.revenueMax,
		})
	}

	sortStatistics(rows)
	return rows
}

func sortStatistics(rows []domain.GroupStatistics) {
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].RevenueSum.Cmp(rows[j].RevenueSum); c != 0 {
			return c > 0
		}
		return rows[i].Key < rows[j].Key
	})
}

func (sc *StatisticsCalculator) dimensionValues(r domain.Record, dims []Dimension, origin time.Time) []string {
	values := make([]string, len(dims))
	for i, d := range dims {
		values[i] = dimensionValue(r, d, sc.bucketer, origin)
	}
	return values
}

func dimensionValue(r domain.Record, d Dimension, b *bucketer, origin time.Time) string {
	switch d {
	case DimProduct:
		return r.ProductID
	case DimLab:
		return r.Lab
	case DimCategory:
		return r.Category
	case DimPeriod:
		return b.label(b.startOf(r.Date, origin))
	}
	return ""
}

func groupKey(values []string) string {
	if len(values) == 0 {
		return AllGroupKey
	}
	return strings.Join(values, keySeparator)
}

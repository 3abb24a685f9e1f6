package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

const (
	// madScale makes the median absolute deviation consistent with a normal std
	madScale    = 1.4826
	// meanADScale is the equivalent constant for the mean absolute deviation
	meanADScale = 1.253314
	iqrFence    = 1.5
)

// AnomalyDetector flags per-record revenue outliers inside each group
type AnomalyDetector struct {
	method     AnomalyMethod
	zThreshold float64
	minSamples int
	groupBy    Dimension
	bucketer   *bucketer
}

// NewAnomalyDetector creates a detector configured from opts
func NewAnomalyDetector(opts Options) *AnomalyDetector {
	return &AnomalyDetector{
		method:     opts.AnomalyMethod,
		zThreshold: opts.AnomalyZScoreThreshold,
		minSamples: opts.AnomalyMinSamples,
		groupBy:    opts.AnomalyGroupBy,
		bucketer:   newBucketer(opts.TrendBucket),
	}
}

type groupSample struct {
	records  []domain.Record
	revenues []float64
}

// Detect scans every group of the configured dimension. stats must be the
// statistics rows for that dimension; they supply the group mean and spread
// quoted in each rationale. Undersized groups are skipped with an
// insufficient_data warning.
func (ad *AnomalyDetector) Detect(ds *domain.Dataset, stats []domain.GroupStatistics) ([]domain.Alert, []domain.Warning) {
	alerts := []domain.Alert{}
	if ds.Len() == 0 {
		return alerts, nil
	}

	byKey := make(map[string]domain.GroupStatistics, len(stats))
	for _, s := range stats {
		byKey[s.Key] = s
	}

	origin := ds.Meta().MinDate
	groups := make(map[string]*groupSample)
	for _, r := range ds.Records() {
		key := groupKey([]string{dimensionValue(r, ad.groupBy, ad.bucketer, origin)})
		g, ok := groups[key]
		if !ok {
			g = &groupSample{}
			groups[key] = g
		}
		g.records = append(g.records, r)
		g.revenues = append(g.revenues, r.Revenue().InexactFloat64())
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var warnings []domain.Warning
	for _, key := range keys {
		g := groups[key]
		if len(g.revenues) < ad.minSamples {
			w := newWarning(SectionAnomalies, domain.WarnInsufficientData,
				"%s %q skipped: %d records, at least %d required", ad.groupBy, key, len(g.revenues), ad.minSamples)
			w.Group = key
			warnings = append(warnings, w)
			continue
		}

		st, ok := byKey[key]
		if !ok {
			st = domain.GroupStatistics{
				RevenueMean:   roundFloat(mean(g.revenues), 4),
				RevenueStdDev: roundFloat(sampleStdDev(g.revenues), 4),
			}
		}

		switch ad.method {
		case MethodIQR:
			alerts = append(alerts, ad.detectIQR(key, g, st)...)
		default:
			alerts = append(alerts, ad.detectZScore(key, g, st)...)
		}
	}

	sortOutliers(alerts)
	return alerts, warnings
}

// detectZScore uses a robust z-score: distance from the median scaled by the
// MAD, or by the mean absolute deviation when more than half the values tie.
func (ad *AnomalyDetector) detectZScore(key string, g *groupSample, st domain.GroupStatistics) []domain.Alert {
	center := median(g.revenues)
	scale := madScale * medianAbsDev(g.revenues, center)
	if scale == 0 {
		scale = meanADScale * meanAbsDev(g.revenues, center)
	}
	if scale == 0 {
		return nil
	}

	var out []domain.Alert
	for i, v := range g.revenues {
		z := (v - center) / scale
		if math.Abs(z) <= ad.zThreshold {
			continue
		}
		severity := domain.SeverityMedium
		if math.Abs(z) >= 2*ad.zThreshold {
			severity = domain.SeverityHigh
		}
		r := g.records[i]
		out = append(out, outlierAlert(r, key, string(MethodZScore), severity, v, ad.zThreshold, z,
			fmt.Sprintf("revenue %.2f on %s deviates from %s (mean %.2f, std %.2f, median %.2f): robust z %.2f exceeds %.2f",
				v, r.Date.Format(DefaultDateFormat), key, st.RevenueMean, st.RevenueStdDev, center, z, ad.zThreshold)))
	}
	return out
}

// detectIQR flags values outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. The score is the
// signed distance beyond the crossed fence.
func (ad *AnomalyDetector) detectIQR(key string, g *groupSample, st domain.GroupStatistics) []domain.Alert {
	sorted := sortedCopy(g.revenues)
	q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
	iqr := q3 - q1
	lower, upper := q1-iqrFence*iqr, q3+iqrFence*iqr

	var out []domain.Alert
	for i, v := range g.revenues {
		var distance, fence float64
		switch {
		case v > upper:
			distance, fence = v-upper, upper
		case v < lower:
			distance, fence = v-lower, lower
		default:
			continue
		}
		severity := domain.SeverityMedium
		if math.Abs(distance) >= iqrFence*iqr {
			severity = domain.SeverityHigh
		}
		r := g.records[i]
		out = append(out, outlierAlert(r, key, string(MethodIQR), severity, v, fence, distance,
			fmt.Sprintf("revenue %.2f on %s is outside the %s fences [%.2f, %.2f] (Q1 %.2f, Q3 %.2f, mean %.2f)",
				v, r.Date.Format(DefaultDateFormat), key, lower, upper, q1, q3, st.RevenueMean)))
	}
	return out
}

func outlierAlert(r domain.Record, group, method string, severity domain.Severity, value, threshold, score float64, rationale string) domain.Alert {
	date := r.Date
	return domain.Alert{
		Type:      domain.AlertOutlier,
		ProductID: r.ProductID,
		Severity:  severity,
		Rationale: rationale,
		Metric:    roundFloat(value, 4),
		Threshold: roundFloat(threshold, 4),
		Method:    method,
		Score:     roundFloat(score, 4),
		Group:     group,
		Date:      &date,
	}
}

// sortOutliers orders by group, then |score| descending, then product and date.
func sortOutliers(alerts []domain.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if sa, sb := math.Abs(a.Score), math.Abs(b.Score); sa != sb {
			return sa > sb
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return dateOf(a).Before(dateOf(b))
	})
}

func dateOf(a domain.Alert) time.Time {
	if a.Date == nil {
		return time.Time{}
	}
	return *a.Date
}

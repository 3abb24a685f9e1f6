package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// AnomalyMethod selects the outlier test
type AnomalyMethod string

const (
	MethodZScore AnomalyMethod = "zscore"
	MethodIQR    AnomalyMethod = "iqr"
)

// Bucket is the trend period size
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
)

// Dimension names a Record field records can be grouped by
type Dimension string

const (
	DimProduct  Dimension = "product"
	DimLab      Dimension = "lab"
	DimCategory Dimension = "category"
	DimPeriod   Dimension = "period"
)

// Options holds every tunable of an analysis run. It is passed explicitly to each stage.
type Options struct {
	LowStockDaysThreshold  int           `json:"low_stock_days_threshold"`
	OverstockDaysThreshold int           `json:"overstock_days_threshold"`
	AnomalyMethod          AnomalyMethod `json:"anomaly_method"`
	AnomalyZScoreThreshold float64       `json:"anomaly_zscore_threshold"`
	AnomalyMinSamples      int           `json:"anomaly_min_samples"`
	AnomalyGroupBy         Dimension     `json:"anomaly_group_by"`
	ABCThresholds          [2]float64    `json:"abc_thresholds"` // cumulative percentages for A and B
	TrendBucket            Bucket        `json:"trend_bucket"`
	MovingAverageWindow    int           `json:"moving_average_window"`
	LeadTimeDays           int           `json:"lead_time_days"`
	SafetyFactor           float64       `json:"safety_factor"`
	MinOrderQuantity       int           `json:"min_order_quantity"`
	StatisticsDimensions   [][]Dimension `json:"statistics_dimensions"`
	TopNProducts           int           `json:"top_n_products"`
}

// DefaultOptions returns the defaults applied to every option the caller leaves out.
func DefaultOptions() Options {
	return Options{
		LowStockDaysThreshold:  7,
		OverstockDaysThreshold: 90,
		AnomalyMethod:          MethodZScore,
		AnomalyZScoreThreshold: 3,
		AnomalyMinSamples:      5,
		AnomalyGroupBy:         DimCategory,
		ABCThresholds:          [2]float64{80, 95},
		TrendBucket:            BucketWeek,
		MovingAverageWindow:    3,
		LeadTimeDays:           7,
		SafetyFactor:           1.5,
		MinOrderQuantity:       0,
		StatisticsDimensions:   [][]Dimension{{DimLab}, {DimCategory}},
		TopNProducts:           20,
	}
}

// MaxSafetyFactor bounds safety_factor so reorder targets stay within int64
const MaxSafetyFactor = 100.0

// Option keys accepted by ParseOptions
const (
	KeyLowStockDaysThreshold  = "low_stock_days_threshold"
	KeyOverstockDaysThreshold = "overstock_days_threshold"
	KeyAnomalyMethod          = "anomaly_method"
	KeyAnomalyZScoreThreshold = "anomaly_zscore_threshold"
	KeyAnomalyMinSamples      = "anomaly_min_samples"
	KeyAnomalyGroupBy         = "anomaly_group_by"
	KeyABCThresholds          = "abc_thresholds"
	KeyTrendBucket            = "trend_bucket"
	KeyMovingAverageWindow    = "moving_average_window"
	KeyLeadTimeDays           = "lead_time_days"
	KeySafetyFactor           = "safety_factor"
	KeyMinOrderQuantity       = "min_order_quantity"
	KeyStatisticsDimensions   = "statistics_dimensions"
	KeyTopNProducts           = "top_n_products"
)

// OptionKeys lists every recognized option key in a stable order.
func OptionKeys() []string {
	return []string{
		KeyLowStockDaysThreshold, KeyOverstockDaysThreshold,
		KeyAnomalyMethod, KeyAnomalyZScoreThreshold, KeyAnomalyMinSamples, KeyAnomalyGroupBy,
		KeyABCThresholds, KeyTrendBucket, KeyMovingAverageWindow,
		KeyLeadTimeDays, KeySafetyFactor, KeyMinOrderQuantity,
		KeyStatisticsDimensions, KeyTopNProducts,
	}
}

// ParseOptions builds Options from a loosely typed map (config file, CLI flags, form values).
// Unknown keys are ignored and missing keys keep their default. Values that cannot be
// coerced, or that fall outside their valid range, yield a *ConfigurationError.
func ParseOptions(raw map[string]interface{}) (Options, error) {
	opts := DefaultOptions()
	cfgErr := &ConfigurationError{}

	get := func(key string) (interface{}, bool) {
		v, ok := raw[key]
		if !ok || v == nil {
			return nil, false
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return nil, false
		}
		return v, true
	}
	intOpt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := cast.ToIntE(v)
			if err != nil {
				cfgErr.add(key, fmt.Sprintf("expected integer, got %v", v))
				return
			}
			*dst = n
		}
	}
	floatOpt := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				cfgErr.add(key, fmt.Sprintf("expected number, got %v", v))
				return
			}
			*dst = f
		}
	}
	stringOpt := func(key string) (string, bool) {
		v, ok := get(key)
		if !ok {
			return "", false
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			cfgErr.add(key, fmt.Sprintf("expected string, got %v", v))
			return "", false
		}
		return strings.ToLower(strings.TrimSpace(s)), true
	}

	intOpt(KeyLowStockDaysThreshold, &opts.LowStockDaysThreshold)
	intOpt(KeyOverstockDaysThreshold, &opts.OverstockDaysThreshold)
	floatOpt(KeyAnomalyZScoreThreshold, &opts.AnomalyZScoreThreshold)
	intOpt(KeyAnomalyMinSamples, &opts.AnomalyMinSamples)
	intOpt(KeyMovingAverageWindow, &opts.MovingAverageWindow)
	intOpt(KeyLeadTimeDays, &opts.LeadTimeDays)
	floatOpt(KeySafetyFactor, &opts.SafetyFactor)
	intOpt(KeyMinOrderQuantity, &opts.MinOrderQuantity)
	intOpt(KeyTopNProducts, &opts.TopNProducts)

	// an unset overstock threshold follows a raised low-stock threshold
	if _, set := get(KeyOverstockDaysThreshold); !set && opts.OverstockDaysThreshold <= opts.LowStockDaysThreshold {
		opts.OverstockDaysThreshold = opts.LowStockDaysThreshold + 1
	}

	if s, ok := stringOpt(KeyAnomalyMethod); ok {
		opts.AnomalyMethod = AnomalyMethod(s)
	}
	if s, ok := stringOpt(KeyAnomalyGroupBy); ok {
		opts.AnomalyGroupBy = Dimension(s)
	}
	if s, ok := stringOpt(KeyTrendBucket); ok {
		opts.TrendBucket = Bucket(s)
	}

	if v, ok := get(KeyABCThresholds); ok {
		pair, err := parseThresholdPair(v)
		if err != nil {
			cfgErr.add(KeyABCThresholds, err.Error())
		} else {
			opts.ABCThresholds = pair
		}
	}

	if v, ok := get(KeyStatisticsDimensions); ok {
		dims, err := parseDimensionSets(v)
		if err != nil {
			cfgErr.add(KeyStatisticsDimensions, err.Error())
		} else {
			opts.StatisticsDimensions = dims
		}
	}

	if len(cfgErr.Fields) > 0 {
		return opts, cfgErr
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate checks every option against its valid range.
func (o Options) Validate() error {
	cfgErr := &ConfigurationError{}

	if o.LowStockDaysThreshold < 1 {
		cfgErr.add(KeyLowStockDaysThreshold, "must be >= 1")
	}
	if o.OverstockDaysThreshold <= o.LowStockDaysThreshold {
		cfgErr.add(KeyOverstockDaysThreshold, "must be greater than low_stock_days_threshold")
	}
	switch o.AnomalyMethod {
	case MethodZScore, MethodIQR:
	default:
		cfgErr.add(KeyAnomalyMethod, fmt.Sprintf("unsupported method %q (zscore, iqr)", o.AnomalyMethod))
	}
	if !finite(o.AnomalyZScoreThreshold) || o.AnomalyZScoreThreshold <= 0 {
		cfgErr.add(KeyAnomalyZScoreThreshold, "must be a finite number > 0")
	}
	if o.AnomalyMinSamples < 2 {
		cfgErr.add(KeyAnomalyMinSamples, "must be >= 2")
	}
	switch o.AnomalyGroupBy {
	case DimProduct, DimLab, DimCategory:
	default:
		cfgErr.add(KeyAnomalyGroupBy, fmt.Sprintf("unsupported dimension %q (product, lab, category)", o.AnomalyGroupBy))
	}
	a, b := o.ABCThresholds[0], o.ABCThresholds[1]
	if !finite(a) || !finite(b) || !(a > 0 && a < b && b <= 100) {
		cfgErr.add(KeyABCThresholds, fmt.Sprintf("need 0 < A < B <= 100, got (%v, %v)", a, b))
	}
	switch o.TrendBucket {
	case BucketDay, BucketWeek, BucketMonth:
	default:
		cfgErr.add(KeyTrendBucket, fmt.Sprintf("unsupported bucket %q (day, week, month)", o.TrendBucket))
	}
	if o.MovingAverageWindow < 1 {
		cfgErr.add(KeyMovingAverageWindow, "must be >= 1")
	}
	if o.LeadTimeDays < 1 {
		cfgErr.add(KeyLeadTimeDays, "must be >= 1")
	}
	if !finite(o.SafetyFactor) || o.SafetyFactor < 1.0 || o.SafetyFactor > MaxSafetyFactor {
		cfgErr.add(KeySafetyFactor, fmt.Sprintf("must be between 1.0 and %v", MaxSafetyFactor))
	}
	if o.MinOrderQuantity < 0 {
		cfgErr.add(KeyMinOrderQuantity, "must be >= 0")
	}
	for _, set := range o.StatisticsDimensions {
		for _, d := range set {
			if !validDimension(d) {
				cfgErr.add(KeyStatisticsDimensions, fmt.Sprintf("unsupported dimension %q", d))
			}
		}
	}
	if o.TopNProducts < 0 {
		cfgErr.add(KeyTopNProducts, "must be >= 0")
	}

	if len(cfgErr.Fields) > 0 {
		return cfgErr
	}
	return nil
}

// AsMap renders the options with ParseOptions keys, used to echo effective settings.
func (o Options) AsMap() map[string]interface{} {
	sets := make([]string, 0, len(o.StatisticsDimensions))
	for _, set := range o.StatisticsDimensions {
		sets = append(sets, joinDimensions(set, "+"))
	}
	return map[string]interface{}{
		KeyLowStockDaysThreshold:  o.LowStockDaysThreshold,
		KeyOverstockDaysThreshold: o.OverstockDaysThreshold,
		KeyAnomalyMethod:          string(o.AnomalyMethod),
		KeyAnomalyZScoreThreshold: o.AnomalyZScoreThreshold,
		KeyAnomalyMinSamples:      o.AnomalyMinSamples,
		KeyAnomalyGroupBy:         string(o.AnomalyGroupBy),
		KeyABCThresholds:          []float64{o.ABCThresholds[0], o.ABCThresholds[1]},
		KeyTrendBucket:            string(o.TrendBucket),
		KeyMovingAverageWindow:    o.MovingAverageWindow,
		KeyLeadTimeDays:           o.LeadTimeDays,
		KeySafetyFactor:           o.SafetyFactor,
		KeyMinOrderQuantity:       o.MinOrderQuantity,
		KeyStatisticsDimensions:   strings.Join(sets, ";"),
		KeyTopNProducts:           o.TopNProducts,
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func validDimension(d Dimension) bool {
	switch d {
	case DimProduct, DimLab, DimCategory, DimPeriod:
		return true
	}
	return false
}

// parseThresholdPair accepts "80,95", [80 95] or fractions like "0.8,0.95".
func parseThresholdPair(v interface{}) ([2]float64, error) {
	var parts []interface{}
	switch t := v.(type) {
	case string:
		for _, p := range strings.FieldsFunc(t, func(r rune) bool { return r == ',' || r == ';' || r == ' ' }) {
			parts = append(parts, p)
		}
	case []float64:
		for _, f := range t {
			parts = append(parts, f)
		}
	case [2]float64:
		parts = []interface{}{t[0], t[1]}
	case []int:
		for _, n := range t {
			parts = append(parts, n)
		}
	case []string:
		for _, s := range t {
			parts = append(parts, s)
		}
	case []interface{}:
		parts = t
	default:
		return [2]float64{}, fmt.Errorf("expected a pair of percentages, got %v", v)
	}
	if len(parts) != 2 {
		return [2]float64{}, fmt.Errorf("expected exactly two thresholds, got %d", len(parts))
	}

	var out [2]float64
	for i, p := range parts {
		f, err := cast.ToFloat64E(strings.TrimSpace(cast.ToString(p)))
		if err != nil {
			return [2]float64{}, fmt.Errorf("threshold %v is not a number", p)
		}
		out[i] = f
	}
	// fractions are accepted and scaled to percentages
	if out[0] > 0 && out[1] <= 1 {
		out[0] = roundFloat(out[0]*100, 6)
		out[1] = roundFloat(out[1]*100, 6)
	}
	return out, nil
}

// parseDimensionSets accepts "lab;category;lab+category" or a list of such entries.
func parseDimensionSets(v interface{}) ([][]Dimension, error) {
	var entries []string
	switch t := v.(type) {
	case string:
		entries = strings.Split(t, ";")
	case []string:
		entries = t
	case []interface{}:
		for _, e := range t {
			entries = append(entries, cast.ToString(e))
		}
	case [][]Dimension:
		return t, nil
	default:
		return nil, fmt.Errorf("expected dimension list, got %v", v)
	}

	sets := make([][]Dimension, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		var set []Dimension
		for _, name := range strings.FieldsFunc(entry, func(r rune) bool { return r == '+' || r == ',' }) {
			d := Dimension(strings.ToLower(strings.TrimSpace(name)))
			if !validDimension(d) {
				return nil, fmt.Errorf("unsupported dimension %q", name)
			}
			set = append(set, d)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func joinDimensions(set []Dimension, sep string) string {
	names := make([]string, len(set))
	for i, d := range set {
		names[i] = string(d)
	}
	return strings.Join(names, sep)
}

// unknownKeys reports keys ParseOptions ignored, sorted.
func unknownKeys(raw map[string]interface{}) []string {
	known := make(map[string]struct{})
	for _, k := range OptionKeys() {
		known[k] = struct{}{}
	}
	var out []string
	for k := range raw {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// UnknownOptionKeys returns the keys of raw that are not recognized options.
func UnknownOptionKeys(raw map[string]interface{}) []string {
	return unknownKeys(raw)
}

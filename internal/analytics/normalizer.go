package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

// RawTable is a loosely typed table as produced by a loader. Cells may be
// strings, numbers, time.Time, decimal.Decimal or nil.
type RawTable struct {
	Columns []string
	Rows    [][]interface{}
}

// ColumnType declares how a raw cell is coerced
type ColumnType string

const (
	TypeText    ColumnType = "text"
	TypeInteger ColumnType = "integer"
	TypeDecimal ColumnType = "decimal"
	TypeDate    ColumnType = "date"
)

// Canonical Record fields
const (
	FieldProductID    = "product_id"
	FieldLab          = "lab"
	FieldCategory     = "category"
	FieldDate         = "date"
	FieldQuantitySold = "quantity_sold"
	FieldUnitPrice    = "unit_price"
	FieldStockOnHand  = "stock_on_hand"
)

// ColumnSpec maps one canonical field to a raw column name
type ColumnSpec struct {
	Field    string     `json:"field" mapstructure:"field"`
	Column   string     `json:"column" mapstructure:"column"`
	Type     ColumnType `json:"type" mapstructure:"type"`
	Required bool       `json:"required" mapstructure:"required"`
}

// Schema declares the expected columns and the parse conventions of a raw table
type Schema struct {
	Columns      []ColumnSpec `json:"columns"`
	DateFormat   string       `json:"date_format"`
	DecimalComma bool         `json:"decimal_comma"`
}

// DefaultDateFormat is the layout used when a schema leaves DateFormat empty
const DefaultDateFormat = "2006-01-02"

// DefaultSchema expects the canonical field names as column names.
func DefaultSchema() Schema {
	return Schema{
		Columns: []ColumnSpec{
			{Field: FieldProductID, Column: FieldProductID, Type: TypeText, Required: true},
			{Field: FieldLab, Column: FieldLab, Type: TypeText, Required: true},
			{Field: FieldCategory, Column: FieldCategory, Type: TypeText, Required: true},
			{Field: FieldDate, Column: FieldDate, Type: TypeDate, Required: true},
			{Field: FieldQuantitySold, Column: FieldQuantitySold, Type: TypeInteger, Required: true},
			{Field: FieldUnitPrice, Column: FieldUnitPrice, Type: TypeDecimal, Required: true},
			{Field: FieldStockOnHand, Column: FieldStockOnHand, Type: TypeInteger, Required: true},
		},
		DateFormat: DefaultDateFormat,
	}
}

// Mode selects how row violations are handled
type Mode string

const (
	ModeStrict  Mode = "strict"
	ModeLenient Mode = "lenient"
)

// ParseMode maps a config value to a Mode, defaulting to strict.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeLenient)) {
		return ModeLenient
	}
	return ModeStrict
}

// NormalizeOptions controls one normalization call
type NormalizeOptions struct {
	Mode        Mode
	WindowStart *time.Time
	WindowEnd   *time.Time
}

// Normalize validates and coerces a raw table into a canonical Dataset.
//
// Missing required columns always fail. In strict mode every row violation is
// collected into a single *ValidationError; in lenient mode violating rows are
// dropped and reported as row_dropped warnings.
func Normalize(table RawTable, schema Schema, opts NormalizeOptions) (*domain.Dataset, []domain.Warning, error) {
	if schema.DateFormat == "" {
		schema.DateFormat = DefaultDateFormat
	}

	index, err := resolveColumns(table.Columns, schema)
	if err != nil {
		return nil, nil, err
	}

	var (
		records  []domain.Record
		warnings []domain.Warning
		dropped  int
	)
	verr := &ValidationError{}

	for i, row := range table.Rows {
		rowNum := i + 1
		if blankRow(row) {
			continue
		}

		rec, violations := normalizeRow(row, rowNum, index, schema, opts)
		if len(violations) == 0 {
			records = append(records, rec)
			continue
		}

		if opts.Mode == ModeLenient {
			dropped++
			reasons := make([]string, len(violations))
			for j, v := range violations {
				reasons[j] = v.Column + ": " + v.Reason
			}
			w := newWarning(SectionNormalizer, domain.WarnRowDropped, "row %d dropped (%s)", rowNum, strings.Join(reasons, "; "))
			w.Row = rowNum
			warnings = append(warnings, w)
			continue
		}
		verr.Violations = append(verr.Violations, violations...)
	}

	if len(verr.Violations) > 0 {
		return nil, nil, verr
	}

	return domain.NewDataset(records, dropped), warnings, nil
}

// resolveColumns maps each schema field to its position in the header; -1 when absent.
func resolveColumns(header []string, schema Schema) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	index := make(map[string]int, len(schema.Columns))
	verr := &ValidationError{cause: ErrMissingColumn}
	for _, spec := range schema.Columns {
		pos, ok := positions[strings.ToLower(strings.TrimSpace(spec.Column))]
		if !ok {
			pos = -1
			if spec.Required {
				verr.add(0, spec.Column, ErrMissingColumn.Error())
			}
		}
		index[spec.Field] = pos
	}
	if len(verr.Violations) > 0 {
		return nil, verr
	}
	return index, nil
}

func normalizeRow(row []interface{}, rowNum int, index map[string]int, schema Schema, opts NormalizeOptions) (domain.Record, []RowViolation) {
	var (
		rec        domain.Record
		violations []RowViolation
	)
	fail := func(field, reason string) {
		violations = append(violations, RowViolation{Row: rowNum, Column: columnName(schema, field), Reason: reason})
	}
	cell := func(field string) interface{} {
		pos, ok := index[field]
		if !ok || pos < 0 || pos >= len(row) {
			return nil
		}
		return row[pos]
	}

	rec.ProductID = cellText(cell(FieldProductID))
	if rec.ProductID == "" {
		fail(FieldProductID, "product_id is blank")
	}

	rec.Lab = cellText(cell(FieldLab))
	if rec.Lab == "" {
		rec.Lab = domain.EmptyValue
	}
	rec.Category = cellText(cell(FieldCategory))
	if rec.Category == "" {
		rec.Category = domain.EmptyValue
	}

	date, err := parseDate(cell(FieldDate), schema.DateFormat)
	switch {
	case err != nil:
		fail(FieldDate, err.Error())
	case opts.WindowStart != nil && date.Before(truncateDay(*opts.WindowStart)):
		fail(FieldDate, fmt.Sprintf("date %s is before the analysis window", date.Format(DefaultDateFormat)))
	case opts.WindowEnd != nil && date.After(truncateDay(*opts.WindowEnd)):
		fail(FieldDate, fmt.Sprintf("date %s is after the analysis window", date.Format(DefaultDateFormat)))
	default:
		rec.Date = date
	}

	qty, err := parseCount(cell(FieldQuantitySold), schema.DecimalComma)
	if err != nil {
		fail(FieldQuantitySold, err.Error())
	}
	rec.QuantitySold = qty

	stock, err := parseCount(cell(FieldStockOnHand), schema.DecimalComma)
	if err != nil {
		fail(FieldStockOnHand, err.Error())
	}
	rec.StockOnHand = stock

	price, err := parsePrice(cell(FieldUnitPrice), schema.DecimalComma)
	if err != nil {
		fail(FieldUnitPrice, err.Error())
	}
	rec.UnitPrice = price

	return rec, violations
}

func columnName(schema Schema, field string) string {
	for _, spec := range schema.Columns {
		if spec.Field == field {
			return spec.Column
		}
	}
	return field
}

func blankRow(row []interface{}) bool {
	for _, c := range row {
		if cellText(c) != "" {
			return false
		}
	}
	return true
}

func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Format(DefaultDateFormat)
	case decimal.Decimal:
		return t.String()
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return strings.TrimSpace(s)
	}
}

// numericText normalizes locale separators: with decimalComma "1.234,5" becomes "1234.5".
func numericText(s string, decimalComma bool) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "$")
	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

// parseCount coerces quantity and stock cells: blank is 0, values must be whole and non-negative.
func parseCount(v interface{}, decimalComma bool) (int64, error) {
	var d decimal.Decimal
	switch t := v.(type) {
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	case float64:
		if !finite(t) {
			return 0, fmt.Errorf("%v is not a number", t)
		}
		d = decimal.NewFromFloat(t)
	case decimal.Decimal:
		d = t
	default:
		s := cellText(v)
		if s == "" {
			return 0, nil
		}
		parsed, err := decimal.NewFromString(numericText(s, decimalComma))
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", s)
		}
		d = parsed
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not a whole number", d.String())
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%s is negative", d.String())
	}
	return d.IntPart(), nil
}

// parsePrice coerces unit prices: blank rejects the row, negatives are invalid.
func parsePrice(v interface{}, decimalComma bool) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch t := v.(type) {
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	case float64:
		if !finite(t) {
			return decimal.Zero, fmt.Errorf("%v is not a price", t)
		}
		d = decimal.NewFromFloat(t)
	case decimal.Decimal:
		d = t
	default:
		s := cellText(v)
		if s == "" {
			return decimal.Zero, fmt.Errorf("unit_price is blank")
		}
		parsed, err := decimal.NewFromString(numericText(s, decimalComma))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%q is not a price", s)
		}
		d = parsed
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s is negative", d.String())
	}
	return d, nil
}

func parseDate(v interface{}, layout string) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return truncateDay(t), nil
	}
	s := cellText(v)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is blank")
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q does not match date format %s", s, layout)
	}
	return truncateDay(t), nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

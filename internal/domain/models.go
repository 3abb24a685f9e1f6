package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// EmptyValue replaces blank lab and category values so groups stay addressable.
const EmptyValue = "(empty)"

// Record represents a single sales/stock line of the canonical dataset
type Record struct {
	ProductID    string          `json:"product_id"`
	Lab          string          `json:"lab"`
	Category     string          `json:"category"`
	Date         time.Time       `json:"date"`
	QuantitySold int64           `json:"quantity_sold"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	StockOnHand  int64           `json:"stock_on_hand"`
}

// Revenue returns quantity_sold * unit_price
func (r Record) Revenue() decimal.Decimal {
	return r.UnitPrice.Mul(decimal.NewFromInt(r.QuantitySold))
}

// DatasetMeta describes the shape of a normalized dataset
type DatasetMeta struct {
	RowCount    int       `json:"row_count"`
	DroppedRows int       `json:"dropped_rows"`
	MinDate     time.Time `json:"min_date"`
	MaxDate     time.Time `json:"max_date"`
	Products    []string  `json:"products"`
	Labs        []string  `json:"labs"`
	Categories  []string  `json:"categories"`
}

// Dataset is the immutable, canonical input of an analysis run.
// Records are only reachable through copies so downstream stages cannot mutate them.
type Dataset struct {
	records []Record
	meta    DatasetMeta
}

// NewDataset copies records into a new Dataset and derives its metadata.
func NewDataset(records []Record, droppedRows int) *Dataset {
	owned := make([]Record, len(records))
	copy(owned, records)

	meta := DatasetMeta{
		RowCount:    len(owned),
		DroppedRows: droppedRows,
		Products:    []string{},
		Labs:        []string{},
		Categories:  []string{},
	}

	products := make(map[string]struct{})
	labs := make(map[string]struct{})
	categories := make(map[string]struct{})
	for i, r := range owned {
		if i == 0 || r.Date.Before(meta.MinDate) {
			meta.MinDate = r.Date
		}
		if i == 0 || r.Date.After(meta.MaxDate) {
			meta.MaxDate = r.Date
		}
		products[r.ProductID] = struct{}{}
		labs[r.Lab] = struct{}{}
		categories[r.Category] = struct{}{}
	}
	meta.Products = sortedKeys(products)
	meta.Labs = sortedKeys(labs)
	meta.Categories = sortedKeys(categories)

	return &Dataset{records: owned, meta: meta}
}

// Len returns the number of records
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// At returns a copy of the i-th record
func (d *Dataset) At(i int) Record {
	return d.records[i]
}

// Records returns a copy of all records in dataset order
func (d *Dataset) Records() []Record {
	if d == nil {
		return nil
	}
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Meta returns the dataset metadata
func (d *Dataset) Meta() DatasetMeta {
	if d == nil {
		return DatasetMeta{}
	}
	m := d.meta
	m.Products = append([]string(nil), d.meta.Products...)
	m.Labs = append([]string(nil), d.meta.Labs...)
	m.Categories = append([]string(nil), d.meta.Categories...)
	return m
}

// WindowDays returns the number of calendar days covered by [MinDate, MaxDate]
func (d *Dataset) WindowDays() int {
	if d.Len() == 0 {
		return 0
	}
	return int(d.meta.MaxDate.Sub(d.meta.MinDate).Hours()/24) + 1
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
)

// ErrUnsupportedFormat is returned for file extensions the loader cannot read
var ErrUnsupportedFormat = errors.New("unsupported file format")

// SupportedFormats lists the accepted file extensions
var SupportedFormats = []string{".csv", ".xlsx"}

// Options controls how source files are read
type Options struct {
	Delimiter     rune
	Sheet         string
	MaxFileSizeMB int
	Aliases       map[string][]string
}

// DefaultOptions reads comma separated files up to 100MB with the default header aliases
func DefaultOptions() Options {
	return Options{
		Delimiter:     ',',
		MaxFileSizeMB: 100,
		Aliases:       DefaultAliases(),
	}
}

// LoadFile reads a CSV or XLSX file into a RawTable with canonical column names.
func LoadFile(path string, opts Options) (analytics.RawTable, error) {
	info, err := os.Stat(path)
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if opts.MaxFileSizeMB > 0 && info.Size() > int64(opts.MaxFileSizeMB)*1024*1024 {
		return analytics.RawTable{}, fmt.Errorf("file %s is %.2fMB, limit is %dMB",
			path, float64(info.Size())/(1024*1024), opts.MaxFileSizeMB)
	}

	f, err := os.Open(path)
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Load(filepath.Base(path), f, opts)
}

// Load reads r according to the extension of name.
func Load(name string, r io.Reader, opts Options) (analytics.RawTable, error) {
	var (
		table analytics.RawTable
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		table, err = ReadCSV(r, opts.Delimiter)
	case ".xlsx":
		table, err = ReadXLSX(r, opts.Sheet)
	default:
		return analytics.RawTable{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(SupportedFormats, ", "))
	}
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("failed to read %s: %w", name, err)
	}

	aliases := opts.Aliases
	if aliases == nil {
		aliases = DefaultAliases()
	}
	table.Columns = ResolveHeader(table.Columns, aliases)

	log.Info().
		Str("file", name).
		Int("rows", len(table.Rows)).
		Strs("columns", table.Columns).
		Msg("loader: dataset loaded")

	return table, nil
}

// ReadCSV reads a delimited file. The first record is the header; blank lines are dropped.
func ReadCSV(r io.Reader, delimiter rune) (analytics.RawTable, error) {
	if delimiter == 0 {
		delimiter = ','
	}
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("parse csv: %w", err)
	}
	return tableFromRows(records)
}

// ReadXLSX reads the named sheet, or the first sheet when sheet is empty.
func ReadXLSX(r io.Reader, sheet string) (analytics.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return analytics.RawTable{}, fmt.Errorf("workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return analytics.RawTable{}, fmt.Errorf("sheet %q not found, available sheets: %s", sheet, strings.Join(sheets, ", "))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("read rows from sheet %s: %w", sheet, err)
	}
	return tableFromRows(rows)
}

func tableFromRows(rows [][]string) (analytics.RawTable, error) {
	if len(rows) == 0 {
		return analytics.RawTable{}, fmt.Errorf("file has no header row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := analytics.RawTable{Columns: header}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		cells := make([]interface{}, len(row))
		for i, c := range row {
			cells[i] = c
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadXLSXFile opens path and reads it with ReadXLSX
func ReadXLSXFile(path, sheet string) (analytics.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return analytics.RawTable{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadXLSX(f, sheet)
}

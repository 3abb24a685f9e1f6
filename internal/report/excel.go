package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

type sheet struct {
	name   string
	header []string
	rows   [][]interface{}
}

func (g *Generator) writeExcel(w io.Writer, meta Meta, result *domain.AnalysisResult) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F4E78"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := []sheet{
		summarySheet(meta, result),
		statisticsSheet(result),
		trendSheet(result),
		inventorySheet(result),
		alertSheet("Inventory Alerts", result.InventoryAlerts),
		alertSheet("Anomalies", result.Anomalies),
		abcSheet(result),
		recommendationSheet(result),
		warningSheet(result),
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, headerStyle); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(s.header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(s.name, "A", last, 16); err != nil {
		return err
	}
	return f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func summarySheet(meta Meta, r *domain.AnalysisResult) sheet {
	s := r.Summary
	rows := [][]interface{}{
		{"Run ID", meta.RunID},
		{"Generated at", meta.GeneratedAt.Format(time.RFC3339)},
		{"Source", meta.Source},
		{"Total rows", s.TotalRows},
		{"Dropped rows", s.DroppedRows},
		{"Products", s.Products},
		{"Labs", s.Labs},
		{"Categories", s.Categories},
		{"Total quantity", s.TotalQuantity},
		{"Total revenue", s.TotalRevenue.InexactFloat64()},
		{"Total stock", s.TotalStock},
		{"Products without sales", s.ZeroSalesProducts},
		{"Start date", formatDate(s.StartDate)},
		{"End date", formatDate(s.EndDate)},
	}
	for _, h := range s.Highlights {
		rows = append(rows, []interface{}{"Highlight", h})
	}
	return sheet{name: "Summary", header: []string{"Metric", "Value"}, rows: rows}
}

func statisticsSheet(r *domain.AnalysisResult) sheet {
	rows := make([][]interface{}, 0, len(r.Statistics))
	for _, st := range r.Statistics {
		rows = append(rows, []interface{}{
			strings.Join(st.Dimensions, "+"), st.Key, st.Count,
			st.QuantitySum, st.QuantityMean, st.QuantityMin, st.QuantityMax,
			st.RevenueSum.InexactFloat64(), st.RevenueMean, st.RevenueStdDev,
			st.RevenueMin.InexactFloat64(), st.RevenueMax.InexactFloat64(),
		})
	}
	return sheet{
		name: "Statistics",
		header: []string{"Dimensions", "Group", "Records", "Quantity", "Quantity mean", "Quantity min", "Quantity max",
			"Revenue", "Revenue mean", "Revenue std dev", "Revenue min", "Revenue max"},
		rows: rows,
	}
}

func trendSheet(r *domain.AnalysisResult) sheet {
	rows := make([][]interface{}, 0, len(r.Trend))
	for _, b := range r.Trend {
		rows = append(rows, []interface{}{
			b.Label, b.Start.Format("2006-01-02"), b.End.Format("2006-01-02"), b.Records,
			b.Quantity, b.Revenue.InexactFloat64(), optional(b.QuantityGrowth), optional(b.RevenueGrowth),
			b.QuantityMovingAvg, b.RevenueMovingAvg,
		})
	}
	return sheet{
		name: "Trend",
		header: []string{"Period", "Start", "End", "Records", "Quantity", "Revenue", "Quantity growth", "Revenue growth",
			"Quantity moving avg", "Revenue moving avg"},
		rows: rows,
	}
}

func inventorySheet(r *domain.AnalysisResult) sheet {
	rows := make([][]interface{}, 0, len(r.Inventory))
	for _, s := range r.Inventory {
		var days interface{} = "∞"
		if s.DaysOfStock != nil {
			days = *s.DaysOfStock
		}
		rows = append(rows, []interface{}{
			s.ProductID, s.Lab, s.Category, s.StockOnHand, s.AverageStock, s.TotalQuantitySold,
			s.AverageDailySales, days, s.TurnoverRatio, s.Rotation, string(s.RotationClass),
			s.LowStock, s.NoMovement, s.Overstock,
		})
	}
	return sheet{
		name: "Inventory",
		header: []string{"Product", "Lab", "Category", "Stock", "Average stock", "Sold", "Avg daily sales",
			"Days of stock", "Turnover", "Rotation", "Rotation class", "Low stock", "No movement", "Overstock"},
		rows: rows,
	}
}

func alertSheet(name string, alerts []domain.Alert) sheet {
	rows := make([][]interface{}, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []interface{}{
			string(a.Type), a.ProductID, string(a.Severity), a.Metric, a.Threshold,
			a.Method, a.Score, a.Group, formatDate(a.Date), a.Rationale,
		})
	}
	return sheet{
		name:   name,
		header: []string{"Type", "Product", "Severity", "Metric", "Threshold", "Method", "Score", "Group", "Date", "Rationale"},
		rows:   rows,
	}
}

func abcSheet(r *domain.AnalysisResult) sheet {
	rows := make([][]interface{}, 0, len(r.ABCRanking))
	for _, e := range r.ABCRanking {
		rows = append(rows, []interface{}{e.Rank, e.ProductID, e.Revenue.InexactFloat64(), e.SharePct, e.CumulativePct, string(e.Tier)})
	}
	return sheet{
		name:   "ABC",
		header: []string{"Rank", "Product", "Revenue", "Share %", "Cumulative %", "Tier"},
		rows:   rows,
	}
}

func recommendationSheet(r *domain.AnalysisResult) sheet {
	rows := make([][]interface{}, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		triggers := make([]string, len(rec.Triggers))
		for i, t := range rec.Triggers {
			triggers[i] = string(t)
		}
		rows = append(rows, []interface{}{
			rec.ProductID, string(rec.Tier), string(rec.Action), string(rec.Priority), strings.Join(triggers, ", "),
			rec.StockOnHand, rec.MovingAverageDailySales, rec.SuggestedQuantity, rec.Rationale,
		})
	}
	return sheet{
		name: "Recommendations",
		header: []string{"Product", "Tier", "Action", "Priority", "Triggers", "Stock", "Moving avg daily sales",
			"Suggested quantity", "Rationale"},
		rows: rows,
	}
}

func warningSheet(r *domain.AnalysisResult) sheet {
	rows := make([][]interface{}, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		rows = append(rows, []interface{}{w.Section, string(w.Code), w.Group, w.Row, w.Message})
	}
	return sheet{
		name:   "Warnings",
		header: []string{"Section", "Code", "Group", "Row", "Message"},
		rows:   rows,
	}
}

func optional(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

package report

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

const htmlLayout = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>Pharmacy analytics report {{.Meta.GeneratedAt | date}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
h1 { color: #1F4E78; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #1F4E78; color: #fff; }
.high { color: #b00020; font-weight: bold; }
.medium { color: #c77700; }
.low { color: #555; }
</style>
</head>
<body>
<h1>Pharmacy analytics report</h1>
<p>Run {{.Meta.RunID}} generated {{.Meta.GeneratedAt | datetime}}{{if .Meta.Source}} from {{.Meta.Source}}{{end}}</p>

<h2>Summary</h2>
{{with .Result.Summary}}
<table>
<tr><th>Rows</th><td>{{.TotalRows}}</td></tr>
<tr><th>Dropped rows</th><td>{{.DroppedRows}}</td></tr>
<tr><th>Products</th><td>{{.Products}}</td></tr>
<tr><th>Labs</th><td>{{.Labs}}</td></tr>
<tr><th>Categories</th><td>{{.Categories}}</td></tr>
<tr><th>Units sold</th><td>{{.TotalQuantity}}</td></tr>
<tr><th>Revenue</th><td>{{money .TotalRevenue}}</td></tr>
<tr><th>Stock on hand</th><td>{{.TotalStock}}</td></tr>
<tr><th>Products without sales</th><td>{{.ZeroSalesProducts}}</td></tr>
<tr><th>Period</th><td>{{ptrdate .StartDate}} to {{ptrdate .EndDate}}</td></tr>
</table>
{{if .Highlights}}<ul>{{range .Highlights}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{end}}

<h2>Top products</h2>
<table>
<tr><th>Product</th><th>Records</th><th>Units</th><th>Revenue</th></tr>
{{range .Result.TopProducts}}<tr><td>{{.Key}}</td><td>{{.Count}}</td><td>{{.QuantitySum}}</td><td>{{money .RevenueSum}}</td></tr>
{{end}}</table>

<h2>Trend</h2>
<table>
<tr><th>Period</th><th>Units</th><th>Revenue</th><th>Units growth</th><th>Revenue growth</th><th>Revenue moving avg</th></tr>
{{range .Result.Trend}}<tr><td>{{.Label}}</td><td>{{.Quantity}}</td><td>{{money .Revenue}}</td><td>{{growth .QuantityGrowth}}</td><td>{{growth .RevenueGrowth}}</td><td>{{number .RevenueMovingAvg}}</td></tr>
{{end}}</table>

<h2>Inventory</h2>
<table>
<tr><th>Product</th><th>Lab</th><th>Category</th><th>Stock</th><th>Avg daily sales</th><th>Days of stock</th><th>Rotation</th></tr>
{{range .Result.Inventory}}<tr><td>{{.ProductID}}</td><td>{{.Lab}}</td><td>{{.Category}}</td><td>{{.StockOnHand}}</td><td>{{number .AverageDailySales}}</td><td>{{days .DaysOfStock}}</td><td>{{.RotationClass}}</td></tr>
{{end}}</table>

<h2>Alerts</h2>
<table>
<tr><th>Type</th><th>Product</th><th>Severity</th><th>Rationale</th></tr>
{{range .Alerts}}<tr><td>{{.Type}}</td><td>{{.ProductID}}</td><td class="{{.Severity}}">{{.Severity}}</td><td>{{.Rationale}}</td></tr>
{{end}}</table>

<h2>ABC classification</h2>
<table>
<tr><th>Rank</th><th>Product</th><th>Revenue</th><th>Share</th><th>Cumulative</th><th>Tier</th></tr>
{{range .Result.ABCRanking}}<tr><td>{{.Rank}}</td><td>{{.ProductID}}</td><td>{{money .Revenue}}</td><td>{{percent .SharePct}}</td><td>{{percent .CumulativePct}}</td><td>{{.Tier}}</td></tr>
{{end}}</table>

<h2>Recommendations</h2>
<table>
<tr><th>Product</th><th>Tier</th><th>Action</th><th>Priority</th><th>Suggested quantity</th><th>Rationale</th></tr>
{{range .Result.Recommendations}}<tr><td>{{.ProductID}}</td><td>{{.Tier}}</td><td>{{.Action}}</td><td class="{{.Priority}}">{{.Priority}}</td><td>{{.SuggestedQuantity}}</td><td>{{.Rationale}}</td></tr>
{{end}}</table>

{{if .Result.Warnings}}
<h2>Warnings</h2>
<ul>{{range .Result.Warnings}}<li>[{{.Section}}/{{.Code}}] {{.Message}}</li>{{end}}</ul>
{{end}}
</body>
</html>
`

type htmlView struct {
	Meta   Meta
	Result *domain.AnalysisResult
	Alerts []domain.Alert
}

func (g *Generator) template() (*template.Template, error) {
	return template.New("report").Funcs(template.FuncMap{
		"money":    g.money,
		"number":   g.number,
		"percent":  g.percent,
		"growth":   g.growth,
		"days":     g.days,
		"ptrdate":  formatDate,
		"date":     func(t time.Time) string { return t.Format("2006-01-02") },
		"datetime": func(t time.Time) string { return t.Format("2006-01-02 15:04:05 MST") },
	}).Parse(htmlLayout)
}

func (g *Generator) writeHTML(w io.Writer, meta Meta, result *domain.AnalysisResult) error {
	tmpl, err := g.template()
	if err != nil {
		return fmt.Errorf("failed to parse html template: %w", err)
	}

	alerts := make([]domain.Alert, 0, len(result.InventoryAlerts)+len(result.Anomalies))
	alerts = append(alerts, result.InventoryAlerts...)
	alerts = append(alerts, result.Anomalies...)

	if err := tmpl.Execute(w, htmlView{Meta: meta, Result: result, Alerts: alerts}); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}
	return nil
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnalysisResult is the terminal aggregate of one analysis run.
// Field names are the contract consumed by the report and dashboard layers.
type AnalysisResult struct {
	Summary         Summary           `json:"summary"`
	Statistics      []GroupStatistics `json:"statistics"`
	TopProducts     []GroupStatistics `json:"top_products"`
	Trend           []TrendBucket     `json:"trend"`
	Demand          []ProductDemand   `json:"demand"`
	Inventory       []InventoryStatus `json:"inventory"`
	InventoryAlerts []Alert           `json:"inventory_alerts"`
	Anomalies       []Alert           `json:"anomalies"`
	ABCTiers        map[string]Tier   `json:"abc_tiers"`
	ABCRanking      []ABCEntry        `json:"abc_ranking"`
	Recommendations []Recommendation  `json:"recommendations"`
	Warnings        []Warning         `json:"warnings"`
}

// Summary holds dataset-wide headline figures
type Summary struct {
	TotalRows         int             `json:"total_rows"`
	DroppedRows       int             `json:"dropped_rows"`
	Products          int             `json:"products"`
	Labs              int             `json:"labs"`
	Categories        int             `json:"categories"`
	TotalQuantity     int64           `json:"total_quantity"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalStock        int64           `json:"total_stock"`
	ZeroSalesProducts int             `json:"zero_sales_products"`
	StartDate         *time.Time      `json:"start_date"`
	EndDate           *time.Time      `json:"end_date"`
	Highlights        []string        `json:"highlights"`
}

// GroupStatistics is one aggregate row of the statistics section
type GroupStatistics struct {
	Dimensions    []string        `json:"dimensions"`
	Values        []string        `json:"values"`
	Key           string          `json:"key"`
	Count         int             `json:"count"`
	QuantitySum   int64           `json:"quantity_sum"`
	QuantityMean  float64         `json:"quantity_mean"`
	QuantityMin   int64           `json:"quantity_min"`
	QuantityMax   int64           `json:"quantity_max"`
	RevenueSum    decimal.Decimal `json:"revenue_sum"`
	RevenueMean   float64         `json:"revenue_mean"`
	RevenueStdDev float64         `json:"revenue_std_dev"`
	RevenueMin    decimal.Decimal `json:"revenue_min"`
	RevenueMax    decimal.Decimal `json:"revenue_max"`
}

// TrendBucket is one period of the sales trend series
type TrendBucket struct {
	Label             string          `json:"label"`
	Start             time.Time       `json:"start"`
	End               time.Time       `json:"end"`
	Records           int             `json:"records"`
	Quantity          int64           `json:"quantity"`
	Revenue           decimal.Decimal `json:"revenue"`
	QuantityGrowth    *float64        `json:"quantity_growth"`
	RevenueGrowth     *float64        `json:"revenue_growth"`
	QuantityMovingAvg float64         `json:"quantity_moving_avg"`
	RevenueMovingAvg  float64         `json:"revenue_moving_avg"`
}

// ProductDemand carries the per-product sales rates derived from the trend series
type ProductDemand struct {
	ProductID               string  `json:"product_id"`
	TotalQuantity           int64   `json:"total_quantity"`
	AverageDailySales       float64 `json:"average_daily_sales"`
	MovingAverageDailySales float64 `json:"moving_average_daily_sales"`
}

// RotationClass buckets products by sold units relative to stock held
type RotationClass string

const (
	RotationNone     RotationClass = "sin_ventas"
	RotationLow      RotationClass = "baja"
	RotationMedium   RotationClass = "media"
	RotationHigh     RotationClass = "alta"
	RotationVeryHigh RotationClass = "muy_alta"
)

// InventoryStatus holds the stock health metrics of one product
type InventoryStatus struct {
	ProductID         string        `json:"product_id"`
	Lab               string        `json:"lab"`
	Category          string        `json:"category"`
	StockOnHand       int64         `json:"stock_on_hand"`
	AverageStock      float64       `json:"average_stock"`
	TotalQuantitySold int64         `json:"total_quantity_sold"`
	AverageDailySales float64       `json:"average_daily_sales"`
	DaysOfStock       *float64      `json:"days_of_stock"`
	DaysOfStockInf    bool          `json:"days_of_stock_infinite"`
	TurnoverRatio     float64       `json:"turnover_ratio"`
	Rotation          float64       `json:"rotation"`
	RotationClass     RotationClass `json:"rotation_class"`
	LowStock          bool          `json:"low_stock"`
	NoMovement        bool          `json:"no_movement"`
	Overstock         bool          `json:"overstock"`
}

// AlertType names the derived fact an Alert reports
type AlertType string

const (
	AlertLowStock   AlertType = "low_stock"
	AlertNoMovement AlertType = "no_movement"
	AlertOverstock  AlertType = "overstock"
	AlertOutlier    AlertType = "outlier"
)

// Alert is a derived fact about a product. It references the product by id only.
type Alert struct {
	Type      AlertType  `json:"type"`
	ProductID string     `json:"product_id"`
	Severity  Severity   `json:"severity"`
	Rationale string     `json:"rationale"`
	Metric    float64    `json:"metric"`
	Threshold float64    `json:"threshold"`
	Method    string     `json:"method,omitempty"`
	Score     float64    `json:"score,omitempty"`
	Group     string     `json:"group,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
}

// Tier is an ABC revenue class
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// ABCEntry is one product of the ABC ranking
type ABCEntry struct {
	Rank          int             `json:"rank"`
	ProductID     string          `json:"product_id"`
	Revenue       decimal.Decimal `json:"revenue"`
	SharePct      float64         `json:"share_pct"`
	CumulativePct float64         `json:"cumulative_pct"`
	Tier          Tier            `json:"tier"`
}

// RecommendationAction tells the buyer what to do with a product
type RecommendationAction string

const (
	ActionReorder RecommendationAction = "reorder"
	ActionMonitor RecommendationAction = "monitor"
	ActionDelist  RecommendationAction = "consider_delisting"
	ActionReview  RecommendationAction = "review_assortment"
	ActionHold    RecommendationAction = "hold_orders"
)

// Recommendation is a reorder suggestion with its rationale
type Recommendation struct {
	ProductID               string               `json:"product_id"`
	Tier                    Tier                 `json:"tier"`
	Action                  RecommendationAction `json:"action"`
	Priority                Severity             `json:"priority"`
	Triggers                []AlertType          `json:"triggers"`
	StockOnHand             int64                `json:"stock_on_hand"`
	MovingAverageDailySales float64              `json:"moving_average_daily_sales"`
	SuggestedQuantity       int64                `json:"suggested_quantity"`
	Rationale               string               `json:"rationale"`
}

// WarningCode classifies non-fatal analysis issues
type WarningCode string

const (
	WarnInsufficientData WarningCode = "insufficient_data"
	WarnZeroBaseline     WarningCode = "zero_baseline"
	WarnRowDropped       WarningCode = "row_dropped"
	WarnEmptyDataset     WarningCode = "empty_dataset"
)

// Warning is a non-fatal issue attached to the result section it affects
type Warning struct {
	Section string      `json:"section"`
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Group   string      `json:"group,omitempty"`
	Row     int         `json:"row,omitempty"`
}

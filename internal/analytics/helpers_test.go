package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/pharmalytics/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(DefaultDateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(product, lab, category, date string, qty int64, price string, stock int64) domain.Record {
	return domain.Record{
		ProductID:    product,
		Lab:          lab,
		Category:     category,
		Date:         day(date),
		QuantitySold: qty,
		UnitPrice:    decimal.RequireFromString(price),
		StockOnHand:  stock,
	}
}

// pharmacyDataset is a small mixed fixture used across engine tests
func pharmacyDataset() *domain.Dataset {
	return domain.NewDataset([]domain.Record{
		rec("AMOX500", "Bago", "Antibioticos", "2024-03-01", 10, "100", 20),
		rec("AMOX500", "Bago", "Antibioticos", "2024-03-08", 0, "100", 15),
		rec("IBU400", "Roemmers", "Analgesicos", "2024-03-01", 10, "10", 40),
		rec("IBU400", "Roemmers", "Analgesicos", "2024-03-05", 5, "10", 35),
		rec("PARA1G", "Roemmers", "Analgesicos", "2024-03-02", 5, "10", 2),
		rec("VITC", "Bayer", "Vitaminas", "2024-03-01", 0, "25.50", 30),
		rec("VITC", "Bayer", "Vitaminas", "2024-03-10", 0, "25.50", 30),
		rec("GAUZE", "3M", "Insumos", "2024-03-03", 0, "3", 0),
	}, 0)
}

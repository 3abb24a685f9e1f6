package loader

import (
	"strings"

	"github.com/andresuchdata/pharmalytics/internal/analytics"
)

// aliasOrder fixes the order fields claim columns in, so "cajas stock total"
// is taken by stock before any looser match.
var aliasOrder = []string{
	analytics.FieldProductID,
	analytics.FieldLab,
	analytics.FieldCategory,
	analytics.FieldDate,
	analytics.FieldStockOnHand,
	analytics.FieldQuantitySold,
	analytics.FieldUnitPrice,
}

// DefaultAliases maps canonical fields to the Spanish and English header
// names found in pharmacy exports.
func DefaultAliases() map[string][]string {
	return map[string][]string{
		analytics.FieldProductID:    {"producto", "product", "produto", "item", "sku", "codigo"},
		analytics.FieldLab:          {"laboratorio", "lab", "fabricante"},
		analytics.FieldCategory:     {"categoria", "category", "rubro", "departamento"},
		analytics.FieldDate:         {"fecha", "date", "periodo"},
		analytics.FieldStockOnHand:  {"cajas stock", "stock", "inventario", "inventory"},
		analytics.FieldQuantitySold: {"cajas vend", "unidades vendidas", "ventas", "cantidad", "sales", "vendas", "quantity"},
		analytics.FieldUnitPrice:    {"precio", "price", "pvp", "costo"},
	}
}

// ResolveHeader renames columns to canonical field names. A column that already
// equals a field name keeps it; otherwise exact alias matches win over
// substring matches. Each field claims at most one column and unmatched
// columns keep their original name.
func ResolveHeader(columns []string, aliases map[string][]string) []string {
	out := make([]string, len(columns))
	copy(out, columns)

	lower := make([]string, len(columns))
	for i, c := range columns {
		lower[i] = strings.ToLower(strings.TrimSpace(c))
	}

	claimed := make(map[int]bool)
	assigned := make(map[string]bool)
	// canonical names first
	for i, c := range lower {
		for _, field := range aliasOrder {
			if c == field && !assigned[field] {
				out[i] = field
				claimed[i] = true
				assigned[field] = true
			}
		}
	}

	match := func(exact bool) {
		for _, field := range aliasOrder {
			if assigned[field] {
				continue
			}
			for _, alias := range aliases[field] {
				idx := -1
				for i, c := range lower {
					if claimed[i] {
						continue
					}
					if (exact && c == alias) || (!exact && strings.Contains(c, alias)) {
						idx = i
						break
					}
				}
				if idx >= 0 {
					out[idx] = field
					claimed[idx] = true
					assigned[field] = true
					break
				}
			}
		}
	}
	match(true)
	match(false)

	return out
}

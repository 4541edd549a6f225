package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleEvent records one point-of-sale line for a menu item. Immutable once
// ingested.
type SaleEvent struct {
	MenuItemID string
	Timestamp  time.Time
	Quantity   float64
	UnitPrice  decimal.Decimal
	Total      decimal.Decimal
	// Seq is the zero-based occurrence ordinal among identical lines in one
	// export, so repeated identical rows count as separate sales while
	// re-ingesting the same file stays a no-op.
	Seq int
}

// InventorySnapshot records the observed stock level of an ingredient at one
// point in time. Later snapshots supersede earlier ones for current-stock
// queries; history is retained.
type InventorySnapshot struct {
	IngredientID   string
	Timestamp      time.Time
	QuantityOnHand float64
	Unit           string
	ExpiryDate     *time.Time
	BatchID        string
}

// SupplierInvoiceLine records one purchased line on a supplier invoice.
// Immutable once ingested.
type SupplierInvoiceLine struct {
	SupplierID   string
	IngredientID string
	Timestamp    time.Time
	UnitCost     decimal.Decimal
	Quantity     float64
}

// FactorKind represents the kind of an external factor reading
type FactorKind string

const (
	// External factor kinds
	FactorWeather FactorKind = "weather"
	FactorEvent   FactorKind = "event"
	FactorHoliday FactorKind = "holiday"
)

// Valid reports whether the kind is one of the known factor kinds.
func (k FactorKind) Valid() bool {
	switch k {
	case FactorWeather, FactorEvent, FactorHoliday:
		return true
	}
	return false
}

// FactorPayload carries the kind-specific detail of an external factor
// reading. Severity is a normalized 0..1 magnitude (storm severity, event
// draw, holiday weight); Name describes the factor; DistanceKm is the
// distance to a local event where that applies.
type FactorPayload struct {
	Severity   float64
	Name       string
	DistanceKm float64
}

// ExternalFactorReading is a non-sales signal used as a forecast covariate,
// keyed by (date, kind). Immutable.
type ExternalFactorReading struct {
	Date    time.Time
	Kind    FactorKind
	Payload FactorPayload
}

// Recipe maps a menu item to the ingredient quantities consumed per unit
// sold. Required for inventory depletion modeling; an item without one is a
// declared gap, not a silent zero.
type Recipe struct {
	MenuItemID  string
	Ingredients map[string]float64
}

// Clone returns a deep copy of the recipe.
func (r Recipe) Clone() Recipe {
	c := Recipe{MenuItemID: r.MenuItemID, Ingredients: make(map[string]float64, len(r.Ingredients))}
	for k, v := range r.Ingredients {
		c.Ingredients[k] = v
	}
	return c
}

// FactorKey builds the (date, kind) key under which a reading is stored.
func FactorKey(date time.Time, kind FactorKind) string {
	return date.Format("2006-01-02") + "|" + string(kind)
}

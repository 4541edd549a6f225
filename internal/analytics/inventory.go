package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"brigade/internal/config"
	"brigade/internal/warehouse"
)

// IngredientAssessment is the operational picture for one stocked ingredient.
type IngredientAssessment struct {
	IngredientID string
	DisplayName  string

	Velocity     float64
	CurrentStock float64
	Unit         string
	ExpiryDate   *time.Time

	// DaysOfSupply is +Inf when velocity is zero.
	DaysOfSupply      float64
	NoDepletionSignal bool

	SupplierID   string
	LeadTimeDays float64
	// UnitCost is the most recent invoiced cost, zero when no invoice
	// history exists.
	UnitCost decimal.Decimal

	StockoutRisk      bool
	Overstock         bool
	OverstockSeverity float64

	ReorderQuantity float64
}

// InventoryReport is the outcome of one inventory assessment pass.
type InventoryReport struct {
	Window      Window
	AsOf        time.Time
	Ingredients []IngredientAssessment
	Gaps        []DataGap
}

// AssessInventory computes velocity, days of supply, stockout and overstock
// risk, and a reorder recommendation for every stocked ingredient.
// Consumption is derived from sales through recipes, not from snapshot
// deltas. Menu items sold without a recipe on file are reported as gaps.
func AssessInventory(snap *warehouse.Snapshot, window Window, cfg config.InventoryConfig) *InventoryReport {
	report := &InventoryReport{Window: window, AsOf: window.To}

	consumption := consumptionByIngredient(snap, window, report)

	for _, ingredientID := range snap.StockedIngredients() {
		stock, ok := snap.CurrentStock(ingredientID)
		if !ok {
			continue
		}

		a := IngredientAssessment{
			IngredientID: ingredientID,
			DisplayName:  snap.DisplayName(ingredientID),
			CurrentStock: stock.QuantityOnHand,
			Unit:         stock.Unit,
			ExpiryDate:   stock.ExpiryDate,
		}
		if window.Days() > 0 {
			a.Velocity = consumption[ingredientID] / window.Days()
		}

		supplierCfg := supplierFor(snap, ingredientID, cfg, &a)
		a.LeadTimeDays = supplierCfg.leadTimeDays

		if a.Velocity == 0 {
			a.DaysOfSupply = math.Inf(1)
			a.NoDepletionSignal = true
		} else {
			a.DaysOfSupply = a.CurrentStock / a.Velocity
		}

		a.StockoutRisk = a.DaysOfSupply < a.LeadTimeDays
		if a.DaysOfSupply > cfg.OverstockThresholdDays && a.ExpiryDate != nil {
			a.Overstock = true
			a.OverstockSeverity = overstockSeverity(report.AsOf, *a.ExpiryDate, cfg.OverstockThresholdDays)
		}

		a.ReorderQuantity = reorderQuantity(a.Velocity, cfg.TargetCoverageDays, a.CurrentStock, supplierCfg.minOrderUnit)

		report.Ingredients = append(report.Ingredients, a)
	}
	return report
}

// consumptionByIngredient sums recipe-weighted sales over the window.
func consumptionByIngredient(snap *warehouse.Snapshot, window Window, report *InventoryReport) map[string]float64 {
	unitsSold := make(map[string]float64)
	for _, ev := range snap.SalesBetween("", window.From, window.To) {
		unitsSold[ev.MenuItemID] += ev.Quantity
	}

	itemIDs := make([]string, 0, len(unitsSold))
	for id := range unitsSold {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	consumption := make(map[string]float64)
	for _, itemID := range itemIDs {
		recipe, ok := snap.RecipeFor(itemID)
		if !ok {
			report.Gaps = append(report.Gaps, DataGap{
				EntityID:    itemID,
				DisplayName: snap.DisplayName(itemID),
				Reason:      "menu item sold in window has no recipe; its consumption is not counted",
			})
			continue
		}
		for ingredientID, qtyPerUnit := range recipe.Ingredients {
			consumption[ingredientID] += qtyPerUnit * unitsSold[itemID]
		}
	}
	return consumption
}

type supplierTerms struct {
	leadTimeDays float64
	minOrderUnit float64
}

// supplierFor resolves the ingredient's most recent supplier and that
// supplier's configured terms, falling back to defaults.
func supplierFor(snap *warehouse.Snapshot, ingredientID string, cfg config.InventoryConfig, a *IngredientAssessment) supplierTerms {
	terms := supplierTerms{leadTimeDays: cfg.DefaultLeadTimeDays}

	cost, supplierID, ok := snap.LatestUnitCost(ingredientID)
	if !ok {
		return terms
	}
	a.SupplierID = supplierID
	a.UnitCost = cost

	sc, ok := cfg.Suppliers[snap.DisplayName(supplierID)]
	if !ok {
		return terms
	}
	if sc.LeadTimeDays > 0 {
		terms.leadTimeDays = sc.LeadTimeDays
	}
	terms.minOrderUnit = sc.MinOrderUnit
	return terms
}

// overstockSeverity weights an overstock flag by expiry proximity. Stock
// expiring beyond the overstock threshold scores the 0.5 floor; stock at or
// past expiry scores 1.
func overstockSeverity(asOf, expiry time.Time, thresholdDays float64) float64 {
	daysToExpiry := expiry.Sub(asOf).Hours() / 24
	if daysToExpiry <= 0 {
		return 1
	}
	proximity := 1 - daysToExpiry/thresholdDays
	if proximity < 0 {
		proximity = 0
	}
	return 0.5 + 0.5*proximity
}

// reorderQuantity recommends how much to order to reach the coverage target,
// floored at zero and rounded up to the supplier's minimum order unit.
func reorderQuantity(velocity, targetCoverageDays, currentStock, minOrderUnit float64) float64 {
	need := velocity*targetCoverageDays - currentStock
	if need <= 0 {
		return 0
	}
	if minOrderUnit > 0 {
		return math.Ceil(need/minOrderUnit) * minOrderUnit
	}
	return need
}

// StockoutRisks filters the report to flagged ingredients.
func (r *InventoryReport) StockoutRisks() []IngredientAssessment {
	var out []IngredientAssessment
	for _, a := range r.Ingredients {
		if a.StockoutRisk {
			out = append(out, a)
		}
	}
	return out
}

// Overstocked filters the report to flagged ingredients.
func (r *InventoryReport) Overstocked() []IngredientAssessment {
	var out []IngredientAssessment
	for _, a := range r.Ingredients {
		if a.Overstock {
			out = append(out, a)
		}
	}
	return out
}

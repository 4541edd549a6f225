package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brigade/internal/config"
	"brigade/internal/models"
	"brigade/internal/reconcile"
	"brigade/internal/warehouse"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testWindow() Window {
	return Window{From: day("2025-07-01"), To: day("2025-07-08")}
}

// mint creates a canonical entity directly, bypassing fuzzy matching.
func mint(t *testing.T, store *warehouse.Store, kind models.EntityKind, name string) string {
	t.Helper()
	norm := reconcile.Normalize(name)
	id := models.EntityID(kind, norm)
	_, err := store.CreateEntity(kind, id, name, name, norm)
	require.NoError(t, err)
	return id
}

func sellOn(t *testing.T, store *warehouse.Store, itemID string, ts time.Time, qty, price float64) {
	t.Helper()
	unit := decimal.NewFromFloat(price)
	_, err := store.AppendSale(models.SaleEvent{
		MenuItemID: itemID,
		Timestamp:  ts,
		Quantity:   qty,
		UnitPrice:  unit,
		Total:      unit.Mul(decimal.NewFromFloat(qty)),
	})
	require.NoError(t, err)
}

func invoice(t *testing.T, store *warehouse.Store, supplierID, ingredientID string, ts time.Time, cost float64) {
	t.Helper()
	_, err := store.AppendInvoiceLine(models.SupplierInvoiceLine{
		SupplierID:   supplierID,
		IngredientID: ingredientID,
		Timestamp:    ts,
		UnitCost:     decimal.NewFromFloat(cost),
		Quantity:     1,
	})
	require.NoError(t, err)
}

// seedMenu builds three priced menu items. scale multiplies every price and
// cost uniformly, as a currency unit change would.
func seedMenu(t *testing.T, scale float64) (*warehouse.Store, map[string]string) {
	t.Helper()
	store := warehouse.NewStore()
	supplier := mint(t, store, models.KindSupplier, "Fresh Farms")

	ids := make(map[string]string)
	seed := []struct {
		item  string
		ing   string
		price float64
		cost  float64
		units float64
	}{
		{"Margherita Pizza", "Mozzarella", 10, 4, 10},
		{"Caesar Salad", "Romaine", 9, 5, 5},
		{"Garlic Bread", "Baguette", 5, 3, 1},
	}
	for _, s := range seed {
		itemID := mint(t, store, models.KindMenuItem, s.item)
		ingID := mint(t, store, models.KindIngredient, s.ing)
		ids[s.item] = itemID

		invoice(t, store, supplier, ingID, day("2025-06-20"), s.cost*scale)
		require.NoError(t, store.PutRecipe(models.Recipe{
			MenuItemID:  itemID,
			Ingredients: map[string]float64{ingID: 1},
		}))
		sellOn(t, store, itemID, day("2025-07-02"), s.units, s.price*scale)
	}
	return store, ids
}

func resultFor(t *testing.T, report *MenuReport, id string) MenuItemResult {
	t.Helper()
	for _, it := range report.Items {
		if it.MenuItemID == id {
			return it
		}
	}
	t.Fatalf("item %s not classified", id)
	return MenuItemResult{}
}

func TestClassifyMenuQuadrants(t *testing.T) {
	store, ids := seedMenu(t, 1)
	report := ClassifyMenu(store.Snapshot(), testWindow(), config.Default().Menu)

	require.Len(t, report.Items, 3)
	require.Empty(t, report.Gaps)

	// Margins are 6, 4, 2; median is 4.
	assert.True(t, report.MedianMargin.Equal(decimal.NewFromInt(4)))

	pizza := resultFor(t, report, ids["Margherita Pizza"])
	assert.Equal(t, QuadrantStar, pizza.Quadrant)

	bread := resultFor(t, report, ids["Garlic Bread"])
	assert.Equal(t, QuadrantDog, bread.Quadrant)
}

func TestMedianMarginBoundaryIsHighProfit(t *testing.T) {
	store, ids := seedMenu(t, 1)
	report := ClassifyMenu(store.Snapshot(), testWindow(), config.Default().Menu)

	salad := resultFor(t, report, ids["Caesar Salad"])
	require.True(t, salad.Margin.Equal(report.MedianMargin))
	assert.True(t, salad.HighProfit, "margin equal to the median must count as high profit")
	assert.Equal(t, QuadrantStar, salad.Quadrant)
}

func TestQuadrantsScaleInvariantUnderCurrencyChange(t *testing.T) {
	base, _ := seedMenu(t, 1)
	scaled, _ := seedMenu(t, 100)

	cfg := config.Default().Menu
	baseReport := ClassifyMenu(base.Snapshot(), testWindow(), cfg)
	scaledReport := ClassifyMenu(scaled.Snapshot(), testWindow(), cfg)

	require.Len(t, scaledReport.Items, len(baseReport.Items))
	for i := range baseReport.Items {
		assert.Equal(t, baseReport.Items[i].Quadrant, scaledReport.Items[i].Quadrant,
			"quadrant changed for %s", baseReport.Items[i].DisplayName)
	}
}

func TestUnknownCostExcludedAsGap(t *testing.T) {
	store, _ := seedMenu(t, 1)

	// Sold in the window, but no recipe on file.
	mystery := mint(t, store, models.KindMenuItem, "Daily Special")
	sellOn(t, store, mystery, day("2025-07-03"), 8, 12)

	report := ClassifyMenu(store.Snapshot(), testWindow(), config.Default().Menu)

	require.Len(t, report.Items, 3)
	require.Len(t, report.Gaps, 1)
	assert.Equal(t, mystery, report.Gaps[0].EntityID)
	assert.Contains(t, report.Gaps[0].Reason, "recipe")
}

func TestSalesOutsideWindowIgnored(t *testing.T) {
	store, ids := seedMenu(t, 1)
	sellOn(t, store, ids["Garlic Bread"], day("2025-07-08"), 500, 5)

	report := ClassifyMenu(store.Snapshot(), testWindow(), config.Default().Menu)
	bread := resultFor(t, report, ids["Garlic Bread"])
	assert.Equal(t, float64(1), bread.UnitsSold)
}

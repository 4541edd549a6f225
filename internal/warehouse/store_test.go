package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brigade/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func mint(t *testing.T, store *Store, kind models.EntityKind, name, norm string) string {
	t.Helper()
	id := models.EntityID(kind, norm)
	_, err := store.CreateEntity(kind, id, name, name, norm)
	require.NoError(t, err)
	return id
}

func sale(itemID string, ts time.Time, qty, price float64) models.SaleEvent {
	unit := decimal.NewFromFloat(price)
	return models.SaleEvent{
		MenuItemID: itemID,
		Timestamp:  ts,
		Quantity:   qty,
		UnitPrice:  unit,
		Total:      unit.Mul(decimal.NewFromFloat(qty)),
	}
}

func TestAppendSaleRejectsUnmintedID(t *testing.T) {
	store := NewStore()

	_, err := store.AppendSale(sale("itm-deadbeef", day("2025-07-01"), 2, 10))

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "itm-deadbeef", integrity.ID)
}

func TestAppendSaleDeduplicatesIdenticalFacts(t *testing.T) {
	store := NewStore()
	itemID := mint(t, store, models.KindMenuItem, "Margherita Pizza", "margherita pizza")

	ev := sale(itemID, day("2025-07-01"), 2, 10)

	added, err := store.AppendSale(ev)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AppendSale(ev)
	require.NoError(t, err)
	assert.False(t, added, "identical fact must deduplicate")

	assert.Equal(t, 1, store.Stats().Sales)
}

func TestAppendSaleKeepsRepeatedLinesDistinct(t *testing.T) {
	store := NewStore()
	itemID := mint(t, store, models.KindMenuItem, "Margherita Pizza", "margherita pizza")

	first := sale(itemID, day("2025-07-01"), 2, 10)
	second := first
	second.Seq = 1

	added, err := store.AppendSale(first)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AppendSale(second)
	require.NoError(t, err)
	assert.True(t, added, "a later occurrence of the same line is a new fact")

	assert.Equal(t, 2, store.Stats().Sales)
}

func TestCurrentStockLatestSnapshotWins(t *testing.T) {
	store := NewStore()
	ingID := mint(t, store, models.KindIngredient, "Mozzarella", "mozzarella")

	for _, s := range []struct {
		ts  time.Time
		qty float64
	}{
		{day("2025-07-01"), 10},
		{day("2025-07-03"), 4},
		{day("2025-07-02"), 7},
	} {
		_, err := store.AppendSnapshot(models.InventorySnapshot{
			IngredientID:   ingID,
			Timestamp:      s.ts,
			QuantityOnHand: s.qty,
			BatchID:        "b",
		})
		require.NoError(t, err)
	}

	current, ok := store.Snapshot().CurrentStock(ingID)
	require.True(t, ok)
	assert.Equal(t, float64(4), current.QuantityOnHand)
}

func TestAliasDisjointnessAcrossEntities(t *testing.T) {
	store := NewStore()
	a := mint(t, store, models.KindIngredient, "Tomato", "tomato")
	mint(t, store, models.KindIngredient, "Basil", "basil")

	_, err := store.AddAlias(a, "Basil", "basil")

	var conflict *AliasConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "basil", conflict.Alias)
}

func TestPutFactorImmutablePerDateAndKind(t *testing.T) {
	store := NewStore()
	first := models.ExternalFactorReading{
		Date:    day("2025-07-04"),
		Kind:    models.FactorWeather,
		Payload: models.FactorPayload{Severity: 0.9, Name: "heatwave"},
	}

	assert.True(t, store.PutFactor(first))
	second := first
	second.Payload.Name = "mild"
	assert.False(t, store.PutFactor(second), "a recorded reading must not be overwritten")

	got := store.Snapshot().FactorsOn(day("2025-07-04"))
	require.Len(t, got, 1)
	assert.Equal(t, "heatwave", got[0].Payload.Name)
}

func TestSnapshotIsolatedFromLaterWrites(t *testing.T) {
	store := NewStore()
	itemID := mint(t, store, models.KindMenuItem, "Margherita Pizza", "margherita pizza")

	_, err := store.AppendSale(sale(itemID, day("2025-07-01"), 1, 10))
	require.NoError(t, err)
	snap := store.Snapshot()

	_, err = store.AppendSale(sale(itemID, day("2025-07-02"), 1, 10))
	require.NoError(t, err)

	assert.Len(t, snap.SalesBetween("", day("2025-01-01"), day("2026-01-01")), 1)
}

func TestMergeUnionsAliasesAndReassignsFacts(t *testing.T) {
	store := NewStore()
	keep := mint(t, store, models.KindIngredient, "Tomato", "tomato")
	dup := mint(t, store, models.KindIngredient, "Roma Tomato", "roma tomato")
	supplier := mint(t, store, models.KindSupplier, "Fresh Farms", "fresh farms")

	_, err := store.AppendSnapshot(models.InventorySnapshot{
		IngredientID: dup, Timestamp: day("2025-07-01"), QuantityOnHand: 12, BatchID: "b",
	})
	require.NoError(t, err)
	_, err = store.AppendInvoiceLine(models.SupplierInvoiceLine{
		SupplierID: supplier, IngredientID: dup, Timestamp: day("2025-07-01"),
		UnitCost: decimal.NewFromInt(3), Quantity: 5,
	})
	require.NoError(t, err)

	require.NoError(t, store.Merge(context.Background(), dup, keep))

	merged, ok := store.Entity(keep)
	require.True(t, ok)
	assert.True(t, merged.HasAlias("Tomato"))
	assert.True(t, merged.HasAlias("Roma Tomato"))

	snap := store.Snapshot()
	current, ok := snap.CurrentStock(keep)
	require.True(t, ok)
	assert.Equal(t, float64(12), current.QuantityOnHand)
	assert.Len(t, snap.InvoiceLinesFor(keep), 1)

	// The tombstoned id keeps resolving to the survivor.
	viaOld, ok := snap.Entity(dup)
	require.True(t, ok)
	assert.Equal(t, keep, viaOld.ID)
}

func TestMergeRejectsCrossKindAndSelf(t *testing.T) {
	store := NewStore()
	ing := mint(t, store, models.KindIngredient, "Tomato", "tomato")
	item := mint(t, store, models.KindMenuItem, "Tomato Soup", "tomato soup")

	assert.Error(t, store.Merge(context.Background(), ing, item))
	assert.Error(t, store.Merge(context.Background(), ing, ing))
	assert.Error(t, store.Merge(context.Background(), "ing-missing", ing))
}

func TestPutRecipeValidatesReferences(t *testing.T) {
	store := NewStore()
	itemID := mint(t, store, models.KindMenuItem, "Margherita Pizza", "margherita pizza")
	ingID := mint(t, store, models.KindIngredient, "Mozzarella", "mozzarella")

	require.NoError(t, store.PutRecipe(models.Recipe{
		MenuItemID:  itemID,
		Ingredients: map[string]float64{ingID: 0.2},
	}))

	err := store.PutRecipe(models.Recipe{
		MenuItemID:  itemID,
		Ingredients: map[string]float64{"ing-unknown": 1},
	})
	var integrity *IntegrityError
	assert.ErrorAs(t, err, &integrity)
}

func TestLatestUnitCostTracksNewestInvoice(t *testing.T) {
	store := NewStore()
	ingID := mint(t, store, models.KindIngredient, "Mozzarella", "mozzarella")
	s1 := mint(t, store, models.KindSupplier, "Fresh Farms", "fresh farms")
	s2 := mint(t, store, models.KindSupplier, "Valley Produce", "valley produce")

	for _, l := range []struct {
		supplier string
		ts       time.Time
		cost     int64
	}{
		{s1, day("2025-06-01"), 4},
		{s2, day("2025-06-20"), 3},
		{s1, day("2025-06-10"), 5},
	} {
		_, err := store.AppendInvoiceLine(models.SupplierInvoiceLine{
			SupplierID: l.supplier, IngredientID: ingID, Timestamp: l.ts,
			UnitCost: decimal.NewFromInt(l.cost), Quantity: 1,
		})
		require.NoError(t, err)
	}

	cost, supplier, ok := store.LatestUnitCost(ingID)
	require.True(t, ok)
	assert.True(t, cost.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, s2, supplier)
}

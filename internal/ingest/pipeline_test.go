package ingest

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brigade/internal/config"
	"brigade/internal/models"
	"brigade/internal/monitoring"
	"brigade/internal/warehouse"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestPipeline() (*Pipeline, *warehouse.Store) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	store := warehouse.NewStore()
	return NewPipeline(config.Default(), store, monitoring.NewCollector(), log), store
}

const salesCSV = `Date,Item,Quantity,Price
2025-07-01,Margherita Pizza,12,10.00
2025-07-01,Caesar Salad,7,9.00
2025-07-02,Margherita Pizzas,9,10.00
`

func TestIngestSalesFile(t *testing.T) {
	p, store := newTestPipeline()

	report, err := p.IngestFile(context.Background(), "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	assert.True(t, report.Accepted)
	assert.Equal(t, models.FileKindSales, report.Kind)
	assert.Equal(t, 3, report.FactsAppended)
	assert.Empty(t, report.Gaps)
	assert.NotEmpty(t, report.BatchID)

	// "Margherita Pizzas" folds onto the existing item instead of minting a
	// second entity.
	assert.Equal(t, 2, report.EntitiesCreated)
	assert.Equal(t, 2, store.Stats().Entities[models.KindMenuItem])
}

func TestIngestIsIdempotent(t *testing.T) {
	p, store := newTestPipeline()

	first, err := p.IngestFile(context.Background(), "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)
	statsAfterFirst := store.Stats()

	second, err := p.IngestFile(context.Background(), "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	assert.Equal(t, first.FactsAppended, second.FactsDuplicated)
	assert.Zero(t, second.FactsAppended)
	assert.Zero(t, second.EntitiesCreated)
	assert.Equal(t, statsAfterFirst.Sales, store.Stats().Sales)
	assert.Equal(t, statsAfterFirst.Entities, store.Stats().Entities)
}

func TestIngestRecordsRowGaps(t *testing.T) {
	p, _ := newTestPipeline()
	csv := `Date,Item,Quantity,Price
2025-07-01,Margherita Pizza,12,10.00
2025-07-01,Caesar Salad,lots,9.00
2025-07-01,,3,5.00
`

	report, err := p.IngestFile(context.Background(), "sales.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.True(t, report.Accepted)
	assert.Equal(t, 1, report.FactsAppended)
	require.Len(t, report.Gaps, 2)
	assert.Equal(t, 1, report.Gaps[0].Row)
	assert.Equal(t, 2, report.Gaps[1].Row)
}

func TestIngestCountsRepeatedIdenticalRows(t *testing.T) {
	p, store := newTestPipeline()
	csv := `Date,Item,Quantity,Price
2025-07-01,Margherita Pizza,2,10.00
2025-07-01,Margherita Pizza,2,10.00
`

	first, err := p.IngestFile(context.Background(), "sales.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, first.FactsAppended, "identical lines in one export are separate sales")
	assert.Zero(t, first.FactsDuplicated)

	second, err := p.IngestFile(context.Background(), "sales.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Zero(t, second.FactsAppended)
	assert.Equal(t, 2, second.FactsDuplicated)

	snap := store.Snapshot()
	assert.Len(t, snap.SalesBetween("", day("2025-07-01"), day("2025-07-02")), 2)
}

func TestIngestDerivesTotalFromPrice(t *testing.T) {
	p, store := newTestPipeline()

	_, err := p.IngestFile(context.Background(), "sales.csv", strings.NewReader(salesCSV))
	require.NoError(t, err)

	snap := store.Snapshot()
	sales := snap.SalesBetween("", day("2025-07-01"), day("2025-07-02"))
	require.Len(t, sales, 2)
	for _, ev := range sales {
		assert.True(t, ev.Total.Equal(ev.UnitPrice.Mul(qtyDecimal(ev.Quantity))),
			"total must be derived from price and quantity")
	}
}

func TestIngestInventoryKeepsLastRowPerIngredient(t *testing.T) {
	p, store := newTestPipeline()
	csv := `Ingredient,Quantity On Hand,Unit,Expiry Date,Count Date
Mozzarella,4.5,kg,2025-07-20,2025-07-07
Tomato,12,kg,2025-07-11,2025-07-07
Mozzarella,6,kg,2025-07-20,2025-07-07
`

	report, err := p.IngestFile(context.Background(), "stock_count.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, models.FileKindInventory, report.Kind)
	assert.Equal(t, 2, report.FactsAppended, "one snapshot per ingredient per batch")

	snap := store.Snapshot()
	ids := snap.StockedIngredients()
	require.Len(t, ids, 2)
	for _, id := range ids {
		if snap.DisplayName(id) == "Mozzarella" {
			current, ok := snap.CurrentStock(id)
			require.True(t, ok)
			assert.Equal(t, float64(6), current.QuantityOnHand)
		}
	}
}

func TestIngestSupplierInvoice(t *testing.T) {
	p, store := newTestPipeline()
	csv := `Invoice Date,Supplier,Item,Quantity,Unit Cost
2025-07-01,Fresh Farms,Mozzarella,10,3.50
2025-07-01,Fresh Farms,Tomato,25,1.20
`

	report, err := p.IngestFile(context.Background(), "deliveries.csv", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, models.FileKindSupplier, report.Kind)
	assert.Equal(t, 2, report.FactsAppended)
	assert.Equal(t, 1, store.Stats().Entities[models.KindSupplier])
	assert.Equal(t, 2, store.Stats().Entities[models.KindIngredient])
}

func TestIngestRejectsUnclassifiableFile(t *testing.T) {
	p, store := newTestPipeline()
	csv := `Remarks,Follow Up
call the plumber,yes
`

	report, err := p.IngestFile(context.Background(), "notes.csv", strings.NewReader(csv))
	require.Error(t, err)

	var cerr *ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.False(t, report.Accepted)
	assert.Equal(t, ReasonIncompatible, report.RejectReason)
	assert.NotEmpty(t, report.RejectDetails)
	assert.Zero(t, store.Stats().Sales)
}

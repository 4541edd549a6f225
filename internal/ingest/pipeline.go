package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"brigade/internal/config"
	"brigade/internal/models"
	"brigade/internal/monitoring"
	"brigade/internal/reconcile"
	"brigade/internal/warehouse"
)

// Gap itemizes one data-quality problem found while ingesting a file. Row is
// the zero-based data row index, or -1 for a file-level gap.
type Gap struct {
	Row    int
	Reason string
}

// Report is the structured outcome of ingesting one file: what the file was
// classified as, what was appended, and an itemized account of everything
// that was skipped or rejected. A rejected file still gets a full report.
type Report struct {
	File            string
	BatchID         string
	Kind            models.FileKind
	Accepted        bool
	RejectReason    RejectReason
	RejectDetails   []string
	Classification  *Classification
	FactsAppended   int
	FactsDuplicated int
	EntitiesCreated int
	Gaps            []Gap
}

// Pipeline runs the full ingestion path for one uploaded file: load,
// classify, reconcile names, build facts, append to the warehouse.
type Pipeline struct {
	classifier *Classifier
	reconciler *reconcile.Reconciler
	store      *warehouse.Store
	metrics    *monitoring.Collector
	log        *logrus.Logger
}

// NewPipeline wires an ingestion pipeline over the given warehouse.
func NewPipeline(cfg *config.Config, store *warehouse.Store, metrics *monitoring.Collector, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		classifier: NewClassifier(cfg.Classifier),
		reconciler: reconcile.NewReconciler(store, cfg.Reconciler),
		store:      store,
		metrics:    metrics,
		log:        log,
	}
}

// Reconciler exposes the pipeline's reconciler for callers that supply
// out-of-band records (recipes, factor readings) and need names resolved
// with the same alias state.
func (p *Pipeline) Reconciler() *reconcile.Reconciler {
	return p.reconciler
}

// IngestFile ingests one uploaded spreadsheet. The returned report is always
// populated; the error is non-nil when the file was rejected outright.
func (p *Pipeline) IngestFile(ctx context.Context, filename string, r io.Reader) (*Report, error) {
	report := &Report{
		File:    filename,
		BatchID: uuid.NewString(),
		Kind:    models.FileKindUnknown,
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	table, err := LoadTable(filename, r)
	if err != nil {
		report.RejectReason = ReasonIncompatible
		report.RejectDetails = []string{err.Error()}
		p.metrics.RecordRejection(string(ReasonIncompatible))
		return report, err
	}

	classification, err := p.classifier.Classify(table)
	if err != nil {
		var cerr *ClassificationError
		if errors.As(err, &cerr) {
			report.RejectReason = cerr.Reason
			report.RejectDetails = cerr.Details
			p.metrics.RecordRejection(string(cerr.Reason))
		}
		return report, err
	}
	report.Kind = classification.Kind
	report.Classification = classification
	p.metrics.RecordClassification(string(classification.Kind))

	before := p.store.Stats()
	switch classification.Kind {
	case models.FileKindSales:
		err = p.ingestSales(table, classification, report)
	case models.FileKindInventory:
		err = p.ingestInventory(table, classification, report)
	case models.FileKindSupplier:
		err = p.ingestSupplier(table, classification, report)
	}
	if err != nil {
		return report, err
	}
	after := p.store.Stats()
	for kind, n := range after.Entities {
		if created := n - before.Entities[kind]; created > 0 {
			report.EntitiesCreated += created
			for i := 0; i < created; i++ {
				p.metrics.RecordEntityCreated(string(kind))
			}
		}
	}
	p.metrics.RecordDataGaps(len(report.Gaps))

	report.Accepted = true
	p.log.WithFields(logrus.Fields{
		"file":       report.File,
		"batch_id":   report.BatchID,
		"kind":       report.Kind,
		"confidence": fmt.Sprintf("%.2f", classification.Confidence),
		"facts":      report.FactsAppended,
		"duplicates": report.FactsDuplicated,
		"gaps":       len(report.Gaps),
	}).Info("[ingest.file]")
	return report, nil
}

// rowTimestamp reads the row's date cell. When the table has no date column
// at all, a single file-level gap is recorded and the zero time is used so
// re-ingestion stays deterministic.
func (p *Pipeline) rowTimestamp(table *models.RawTable, cls *Classification, row int, report *Report, noted *bool) (time.Time, bool) {
	col, ok := cls.Columns[models.RoleDate]
	if !ok {
		if !*noted {
			report.Gaps = append(report.Gaps, Gap{Row: -1, Reason: "no date column detected; fact timestamps default to zero time"})
			*noted = true
		}
		return time.Time{}, true
	}
	ts, ok := parseDate(table.Cell(row, col))
	if !ok {
		return time.Time{}, false
	}
	return ts, true
}

func (p *Pipeline) ingestSales(table *models.RawTable, cls *Classification, report *Report) error {
	nameCol := cls.Columns[models.RoleItemName]
	qtyCol := cls.Columns[models.RoleQuantity]
	noDateNoted := false
	// Occurrence count per identical line; repeated identical rows in one
	// export are distinct sales, not duplicates.
	seen := make(map[string]int)

	for row := range table.Rows {
		name := table.Cell(row, nameCol)
		if name == "" {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "empty item name"})
			continue
		}
		qty, ok := parseFloat(table.Cell(row, qtyCol))
		if !ok || qty <= 0 {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "unparseable quantity"})
			continue
		}
		ts, ok := p.rowTimestamp(table, cls, row, report, &noDateNoted)
		if !ok {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "unparseable date"})
			continue
		}

		ev := models.SaleEvent{Timestamp: ts, Quantity: qty}
		hasPrice, hasTotal := false, false
		if col, ok := cls.Columns[models.RolePrice]; ok {
			if price, ok := parseCurrency(table.Cell(row, col)); ok {
				ev.UnitPrice, hasPrice = price, true
			}
		}
		if col, ok := cls.Columns[models.RoleTotal]; ok {
			if total, ok := parseCurrency(table.Cell(row, col)); ok {
				ev.Total, hasTotal = total, true
			}
		}
		switch {
		case hasPrice && !hasTotal:
			ev.Total = ev.UnitPrice.Mul(qtyDecimal(qty))
		case hasTotal && !hasPrice:
			ev.UnitPrice = ev.Total.Div(qtyDecimal(qty))
		case !hasPrice && !hasTotal:
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "neither price nor total parseable"})
			continue
		}

		entity, err := p.reconciler.Resolve(name, models.KindMenuItem)
		if err != nil {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: fmt.Sprintf("cannot reconcile %q: %v", name, err)})
			continue
		}
		ev.MenuItemID = entity.ID
		lineKey := fmt.Sprintf("%s|%d|%g|%s|%s", ev.MenuItemID, ev.Timestamp.UnixNano(), ev.Quantity, ev.UnitPrice.String(), ev.Total.String())
		ev.Seq = seen[lineKey]
		seen[lineKey]++

		added, err := p.store.AppendSale(ev)
		if err != nil {
			return err
		}
		p.countFact(report, "sale", added)
	}
	return nil
}

func (p *Pipeline) ingestInventory(table *models.RawTable, cls *Classification, report *Report) error {
	nameCol := cls.Columns[models.RoleItemName]
	qtyCol := cls.Columns[models.RoleQuantity]
	noDateNoted := false

	// One snapshot per (ingredient, batch): within a file the last row for
	// an ingredient wins.
	latest := make(map[string]models.InventorySnapshot)
	var order []string

	for row := range table.Rows {
		name := table.Cell(row, nameCol)
		if name == "" {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "empty ingredient name"})
			continue
		}
		qty, ok := parseFloat(table.Cell(row, qtyCol))
		if !ok || qty < 0 {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "unparseable quantity on hand"})
			continue
		}
		ts, ok := p.rowTimestamp(table, cls, row, report, &noDateNoted)
		if !ok {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "unparseable date"})
			continue
		}

		entity, err := p.reconciler.Resolve(name, models.KindIngredient)
		if err != nil {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: fmt.Sprintf("cannot reconcile %q: %v", name, err)})
			continue
		}

		snap := models.InventorySnapshot{
			IngredientID:   entity.ID,
			Timestamp:      ts,
			QuantityOnHand: qty,
			BatchID:        report.BatchID,
		}
		if col, ok := cls.Columns[models.RoleUnit]; ok {
			snap.Unit = table.Cell(row, col)
		}
		if col, ok := cls.Columns[models.RoleExpiryDate]; ok {
			if expiry, ok := parseDate(table.Cell(row, col)); ok {
				snap.ExpiryDate = &expiry
			}
		}
		if _, seen := latest[entity.ID]; !seen {
			order = append(order, entity.ID)
		}
		latest[entity.ID] = snap
	}

	for _, id := range order {
		added, err := p.store.AppendSnapshot(latest[id])
		if err != nil {
			return err
		}
		p.countFact(report, "snapshot", added)
	}
	return nil
}

func (p *Pipeline) ingestSupplier(table *models.RawTable, cls *Classification, report *Report) error {
	supplierCol := cls.Columns[models.RoleSupplierName]
	costCol := cls.Columns[models.RoleUnitCost]
	noDateNoted := false

	for row := range table.Rows {
		supplierName := table.Cell(row, supplierCol)
		if supplierName == "" {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "empty supplier name"})
			continue
		}
		cost, ok := parseCurrency(table.Cell(row, costCol))
		if !ok {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "unparseable unit cost"})
			continue
		}
		ingName := ""
		if col, ok := cls.Columns[models.RoleItemName]; ok {
			ingName = table.Cell(row, col)
		}
		if ingName == "" {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "empty ingredient name"})
			continue
		}
		ts, ok := p.rowTimestamp(table, cls, row, report, &noDateNoted)
		if !ok {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: "unparseable date"})
			continue
		}

		qty := 1.0
		if col, ok := cls.Columns[models.RoleQuantity]; ok {
			if v, ok := parseFloat(table.Cell(row, col)); ok && v > 0 {
				qty = v
			}
		}

		supplier, err := p.reconciler.Resolve(supplierName, models.KindSupplier)
		if err != nil {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: fmt.Sprintf("cannot reconcile supplier %q: %v", supplierName, err)})
			continue
		}
		ingredient, err := p.reconciler.Resolve(ingName, models.KindIngredient)
		if err != nil {
			report.Gaps = append(report.Gaps, Gap{Row: row, Reason: fmt.Sprintf("cannot reconcile ingredient %q: %v", ingName, err)})
			continue
		}

		added, err := p.store.AppendInvoiceLine(models.SupplierInvoiceLine{
			SupplierID:   supplier.ID,
			IngredientID: ingredient.ID,
			Timestamp:    ts,
			UnitCost:     cost,
			Quantity:     qty,
		})
		if err != nil {
			return err
		}
		p.countFact(report, "invoice", added)
	}
	return nil
}

func (p *Pipeline) countFact(report *Report, kind string, added bool) {
	if added {
		report.FactsAppended++
		p.metrics.RecordFactAppended(kind)
	} else {
		report.FactsDuplicated++
	}
}

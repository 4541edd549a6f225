package warehouse

import (
	"time"

	"github.com/shopspring/decimal"

	"brigade/internal/models"
)

// Snapshot is an immutable view of the warehouse taken at one instant. All
// analytics passes read from a snapshot so they tolerate concurrent
// ingestion without locking.
type Snapshot struct {
	d     data
	taken time.Time
}

// Taken reports when the snapshot was captured.
func (s *Snapshot) Taken() time.Time { return s.taken }

// Entity returns the entity with the given id, following merges.
func (s *Snapshot) Entity(id string) (*models.CanonicalEntity, bool) {
	e, ok := s.d.entities[s.d.canonicalID(id)]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// EntitiesOfKind returns all entities of a kind ordered by id.
func (s *Snapshot) EntitiesOfKind(kind models.EntityKind) []*models.CanonicalEntity {
	return s.d.entitiesOfKind(kind)
}

// DisplayName resolves an id to its display name, falling back to the id.
func (s *Snapshot) DisplayName(id string) string {
	if e, ok := s.Entity(id); ok {
		return e.DisplayName
	}
	return id
}

// SalesBetween returns sale events in [from, to). An empty menuItemID selects
// all items.
func (s *Snapshot) SalesBetween(menuItemID string, from, to time.Time) []models.SaleEvent {
	if menuItemID != "" {
		menuItemID = s.d.canonicalID(menuItemID)
	}
	var out []models.SaleEvent
	for _, ev := range s.d.sales {
		if menuItemID != "" && ev.MenuItemID != menuItemID {
			continue
		}
		if ev.Timestamp.Before(from) || !ev.Timestamp.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// CurrentStock returns the latest inventory snapshot for an ingredient.
func (s *Snapshot) CurrentStock(ingredientID string) (models.InventorySnapshot, bool) {
	snaps := s.d.snapshots[s.d.canonicalID(ingredientID)]
	if len(snaps) == 0 {
		return models.InventorySnapshot{}, false
	}
	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if !snap.Timestamp.Before(latest.Timestamp) {
			latest = snap
		}
	}
	return latest, true
}

// StockedIngredients lists ingredient ids that have at least one snapshot,
// ordered for deterministic iteration.
func (s *Snapshot) StockedIngredients() []string {
	entities := s.d.entitiesOfKind(models.KindIngredient)
	var out []string
	for _, e := range entities {
		if len(s.d.snapshots[e.ID]) > 0 {
			out = append(out, e.ID)
		}
	}
	return out
}

// InvoiceLinesFor returns every invoice line for an ingredient across all
// suppliers, for price comparison.
func (s *Snapshot) InvoiceLinesFor(ingredientID string) []models.SupplierInvoiceLine {
	ingredientID = s.d.canonicalID(ingredientID)
	var out []models.SupplierInvoiceLine
	for _, l := range s.d.invoices {
		if l.IngredientID == ingredientID {
			out = append(out, l)
		}
	}
	return out
}

// LatestUnitCost returns the most recent invoiced unit cost for an
// ingredient and the supplier that charged it.
func (s *Snapshot) LatestUnitCost(ingredientID string) (decimal.Decimal, string, bool) {
	return s.d.latestUnitCost(ingredientID)
}

// FactorsBetween returns external factor readings with dates in [from, to].
func (s *Snapshot) FactorsBetween(from, to time.Time) []models.ExternalFactorReading {
	var out []models.ExternalFactorReading
	for _, r := range s.d.factors {
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// FactorsOn returns the readings recorded for one calendar date.
func (s *Snapshot) FactorsOn(date time.Time) []models.ExternalFactorReading {
	day := date.Format("2006-01-02")
	var out []models.ExternalFactorReading
	for _, kind := range []models.FactorKind{models.FactorWeather, models.FactorEvent, models.FactorHoliday} {
		if r, ok := s.d.factors[day+"|"+string(kind)]; ok {
			out = append(out, r)
		}
	}
	return out
}

// RecipeFor returns the current recipe for a menu item.
func (s *Snapshot) RecipeFor(menuItemID string) (models.Recipe, bool) {
	r, ok := s.d.recipes[s.d.canonicalID(menuItemID)]
	if !ok {
		return models.Recipe{}, false
	}
	return r.Clone(), true
}

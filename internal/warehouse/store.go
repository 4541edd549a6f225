package warehouse

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"brigade/internal/models"
)

// Store is the unified warehouse: the sole owner of canonical entities and
// an append-only keeper of the facts observed about them. Facts are
// immutable once appended and deduplicated by content, so re-ingesting the
// same file changes nothing. The store performs no analytics; the modules
// consume it through read-only snapshots.
type Store struct {
	mu sync.RWMutex
	d  data
}

// data holds warehouse state. Store guards one mutable instance; Snapshot
// carries an immutable deep copy of it.
type data struct {
	entities   map[string]*models.CanonicalEntity
	aliasIndex map[models.EntityKind]map[string]string
	sales      []models.SaleEvent
	snapshots  map[string][]models.InventorySnapshot
	invoices   []models.SupplierInvoiceLine
	factors    map[string]models.ExternalFactorReading
	recipes    map[string]models.Recipe
	factKeys   map[string]struct{}
	merged     map[string]string
}

// Stats summarizes warehouse contents.
type Stats struct {
	Entities     map[models.EntityKind]int
	Sales        int
	Snapshots    int
	InvoiceLines int
	Factors      int
	Recipes      int
}

// NewStore creates an empty warehouse.
func NewStore() *Store {
	return &Store{d: newData()}
}

func newData() data {
	return data{
		entities:   make(map[string]*models.CanonicalEntity),
		aliasIndex: make(map[models.EntityKind]map[string]string),
		snapshots:  make(map[string][]models.InventorySnapshot),
		factors:    make(map[string]models.ExternalFactorReading),
		recipes:    make(map[string]models.Recipe),
		factKeys:   make(map[string]struct{}),
		merged:     make(map[string]string),
	}
}

// canonicalID follows merge tombstones to the surviving id.
func (d *data) canonicalID(id string) string {
	for {
		next, ok := d.merged[id]
		if !ok {
			return id
		}
		id = next
	}
}

func (d *data) entityOfKind(id string, kind models.EntityKind) (*models.CanonicalEntity, error) {
	e, ok := d.entities[d.canonicalID(id)]
	if !ok || e.Kind != kind {
		return nil, &IntegrityError{ID: id, Expected: kind}
	}
	return e, nil
}

// CreateEntity mints a new canonical entity. The id must be unused and the
// normalized alias unclaimed within the kind.
func (s *Store) CreateEntity(kind models.EntityKind, id, displayName, rawAlias, normalizedAlias string) (*models.CanonicalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.d.entities[id]; exists {
		return nil, fmt.Errorf("entity id %q already exists", id)
	}
	if owner, claimed := s.d.aliasIndex[kind][normalizedAlias]; claimed {
		return nil, &AliasConflictError{Alias: normalizedAlias, Kind: kind, OwnerID: owner, TargetID: id}
	}

	e := &models.CanonicalEntity{
		ID:          id,
		Kind:        kind,
		DisplayName: displayName,
		Aliases:     []string{rawAlias},
	}
	s.d.entities[id] = e
	if s.d.aliasIndex[kind] == nil {
		s.d.aliasIndex[kind] = make(map[string]string)
	}
	s.d.aliasIndex[kind][normalizedAlias] = id
	return e.Clone(), nil
}

// AddAlias appends a raw alias to an existing entity and indexes its
// normalized form. Attaching an alias owned by a different entity of the
// same kind is a conflict.
func (s *Store) AddAlias(id, rawAlias, normalizedAlias string) (*models.CanonicalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = s.d.canonicalID(id)
	e, ok := s.d.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if owner, claimed := s.d.aliasIndex[e.Kind][normalizedAlias]; claimed && owner != id {
		return nil, &AliasConflictError{Alias: normalizedAlias, Kind: e.Kind, OwnerID: owner, TargetID: id}
	}
	if s.d.aliasIndex[e.Kind] == nil {
		s.d.aliasIndex[e.Kind] = make(map[string]string)
	}
	s.d.aliasIndex[e.Kind][normalizedAlias] = id
	if !e.HasAlias(rawAlias) {
		e.Aliases = append(e.Aliases, rawAlias)
	}
	return e.Clone(), nil
}

// EntityByAlias looks up the entity owning a normalized alias within a kind.
func (s *Store) EntityByAlias(kind models.EntityKind, normalizedAlias string) (*models.CanonicalEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.d.aliasIndex[kind][normalizedAlias]
	if !ok {
		return nil, false
	}
	e, ok := s.d.entities[s.d.canonicalID(id)]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// EntitiesOfKind returns copies of all entities of a kind, ordered by id for
// deterministic iteration.
func (s *Store) EntitiesOfKind(kind models.EntityKind) []*models.CanonicalEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.entitiesOfKind(kind)
}

func (d *data) entitiesOfKind(kind models.EntityKind) []*models.CanonicalEntity {
	var out []*models.CanonicalEntity
	for _, e := range d.entities {
		if e.Kind == kind {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entity returns a copy of the entity with the given id, following merges.
func (s *Store) Entity(id string) (*models.CanonicalEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.d.entities[s.d.canonicalID(id)]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func saleKey(s models.SaleEvent) string {
	return fmt.Sprintf("sale|%s|%d|%g|%s|%s|%d", s.MenuItemID, s.Timestamp.UnixNano(), s.Quantity, s.UnitPrice.String(), s.Total.String(), s.Seq)
}

func snapshotKey(s models.InventorySnapshot) string {
	expiry := ""
	if s.ExpiryDate != nil {
		expiry = s.ExpiryDate.Format("2006-01-02")
	}
	return fmt.Sprintf("snap|%s|%d|%g|%s|%s", s.IngredientID, s.Timestamp.UnixNano(), s.QuantityOnHand, s.Unit, expiry)
}

func invoiceKey(l models.SupplierInvoiceLine) string {
	return fmt.Sprintf("inv|%s|%s|%d|%s|%g", l.SupplierID, l.IngredientID, l.Timestamp.UnixNano(), l.UnitCost.String(), l.Quantity)
}

// AppendSale appends a sale event. Returns false when the identical fact was
// already recorded.
func (s *Store) AppendSale(ev models.SaleEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.d.entityOfKind(ev.MenuItemID, models.KindMenuItem)
	if err != nil {
		return false, err
	}
	ev.MenuItemID = e.ID

	key := saleKey(ev)
	if _, dup := s.d.factKeys[key]; dup {
		return false, nil
	}
	s.d.factKeys[key] = struct{}{}
	s.d.sales = append(s.d.sales, ev)
	return true, nil
}

// AppendSnapshot appends an inventory snapshot. Later snapshots supersede
// earlier ones for current-stock queries; history is retained.
func (s *Store) AppendSnapshot(snap models.InventorySnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.d.entityOfKind(snap.IngredientID, models.KindIngredient)
	if err != nil {
		return false, err
	}
	snap.IngredientID = e.ID

	key := snapshotKey(snap)
	if _, dup := s.d.factKeys[key]; dup {
		return false, nil
	}
	s.d.factKeys[key] = struct{}{}
	s.d.snapshots[snap.IngredientID] = append(s.d.snapshots[snap.IngredientID], snap)
	return true, nil
}

// AppendInvoiceLine appends a supplier invoice line.
func (s *Store) AppendInvoiceLine(line models.SupplierInvoiceLine) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sup, err := s.d.entityOfKind(line.SupplierID, models.KindSupplier)
	if err != nil {
		return false, err
	}
	ing, err := s.d.entityOfKind(line.IngredientID, models.KindIngredient)
	if err != nil {
		return false, err
	}
	line.SupplierID, line.IngredientID = sup.ID, ing.ID

	key := invoiceKey(line)
	if _, dup := s.d.factKeys[key]; dup {
		return false, nil
	}
	s.d.factKeys[key] = struct{}{}
	s.d.invoices = append(s.d.invoices, line)
	return true, nil
}

// PutFactor records an external factor reading keyed by (date, kind). A
// reading for an existing key is kept as-is; readings are immutable.
func (s *Store) PutFactor(r models.ExternalFactorReading) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.FactorKey(r.Date, r.Kind)
	if _, exists := s.d.factors[key]; exists {
		return false
	}
	s.d.factors[key] = r
	return true
}

// PutRecipe stores or replaces the current recipe for a menu item.
func (s *Store) PutRecipe(r models.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, err := s.d.entityOfKind(r.MenuItemID, models.KindMenuItem)
	if err != nil {
		return err
	}
	resolved := models.Recipe{MenuItemID: item.ID, Ingredients: make(map[string]float64, len(r.Ingredients))}
	for ingID, qty := range r.Ingredients {
		ing, err := s.d.entityOfKind(ingID, models.KindIngredient)
		if err != nil {
			return err
		}
		resolved.Ingredients[ing.ID] += qty
	}
	s.d.recipes[item.ID] = resolved
	return nil
}

// Stats reports warehouse contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Entities: make(map[models.EntityKind]int)}
	for _, e := range s.d.entities {
		st.Entities[e.Kind]++
	}
	st.Sales = len(s.d.sales)
	for _, snaps := range s.d.snapshots {
		st.Snapshots += len(snaps)
	}
	st.InvoiceLines = len(s.d.invoices)
	st.Factors = len(s.d.factors)
	st.Recipes = len(s.d.recipes)
	return st
}

// Snapshot returns a consistent, immutable view of the warehouse for an
// analytics pass. Concurrent ingestion never mutates a handed-out snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := newData()
	for id, e := range s.d.entities {
		d.entities[id] = e.Clone()
	}
	for kind, idx := range s.d.aliasIndex {
		cp := make(map[string]string, len(idx))
		for a, id := range idx {
			cp[a] = id
		}
		d.aliasIndex[kind] = cp
	}
	d.sales = append([]models.SaleEvent(nil), s.d.sales...)
	for id, snaps := range s.d.snapshots {
		d.snapshots[id] = append([]models.InventorySnapshot(nil), snaps...)
	}
	d.invoices = append([]models.SupplierInvoiceLine(nil), s.d.invoices...)
	for k, v := range s.d.factors {
		d.factors[k] = v
	}
	for k, v := range s.d.recipes {
		d.recipes[k] = v.Clone()
	}
	for k, v := range s.d.merged {
		d.merged[k] = v
	}
	return &Snapshot{d: d, taken: time.Now()}
}

// LatestUnitCost returns the most recent invoiced unit cost for an
// ingredient along with the supplier that charged it.
func (s *Store) LatestUnitCost(ingredientID string) (decimal.Decimal, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.latestUnitCost(ingredientID)
}

func (d *data) latestUnitCost(ingredientID string) (decimal.Decimal, string, bool) {
	ingredientID = d.canonicalID(ingredientID)
	var (
		found    bool
		latest   time.Time
		cost     decimal.Decimal
		supplier string
	)
	for _, l := range d.invoices {
		if l.IngredientID != ingredientID {
			continue
		}
		if !found || l.Timestamp.After(latest) {
			found, latest, cost, supplier = true, l.Timestamp, l.UnitCost, l.SupplierID
		}
	}
	return cost, supplier, found
}

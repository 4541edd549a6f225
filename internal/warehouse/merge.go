package warehouse

import (
	"context"
	"fmt"
)

// Merge is the explicit administrative operation unifying two canonical
// entities of the same kind: every fact of the source is reassigned to the
// destination, alias sets are unioned, and the source id becomes a tombstone
// that forwards future references. Reconciliation itself never merges; this
// runs transactionally under the store's write lock.
func (s *Store) Merge(ctx context.Context, fromID, toID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fromID = s.d.canonicalID(fromID)
	toID = s.d.canonicalID(toID)
	if fromID == toID {
		return fmt.Errorf("cannot merge entity %s into itself", fromID)
	}
	from, ok := s.d.entities[fromID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, fromID)
	}
	to, ok := s.d.entities[toID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, toID)
	}
	if from.Kind != to.Kind {
		return fmt.Errorf("cannot merge %s entity %s into %s entity %s", from.Kind, fromID, to.Kind, toID)
	}

	// Union alias sets, preserving the destination's order first.
	for _, alias := range from.Aliases {
		if !to.HasAlias(alias) {
			to.Aliases = append(to.Aliases, alias)
		}
	}
	for alias, owner := range s.d.aliasIndex[from.Kind] {
		if owner == fromID {
			s.d.aliasIndex[from.Kind][alias] = toID
		}
	}

	// Reassign facts.
	for i := range s.d.sales {
		if s.d.sales[i].MenuItemID == fromID {
			s.d.sales[i].MenuItemID = toID
		}
	}
	if snaps, ok := s.d.snapshots[fromID]; ok {
		for i := range snaps {
			snaps[i].IngredientID = toID
		}
		s.d.snapshots[toID] = append(s.d.snapshots[toID], snaps...)
		delete(s.d.snapshots, fromID)
	}
	for i := range s.d.invoices {
		if s.d.invoices[i].SupplierID == fromID {
			s.d.invoices[i].SupplierID = toID
		}
		if s.d.invoices[i].IngredientID == fromID {
			s.d.invoices[i].IngredientID = toID
		}
	}
	if r, ok := s.d.recipes[fromID]; ok {
		// The destination's own recipe wins when both exist.
		if _, exists := s.d.recipes[toID]; !exists {
			r.MenuItemID = toID
			s.d.recipes[toID] = r
		}
		delete(s.d.recipes, fromID)
	}
	for itemID, r := range s.d.recipes {
		if qty, ok := r.Ingredients[fromID]; ok {
			r.Ingredients[toID] += qty
			delete(r.Ingredients, fromID)
			s.d.recipes[itemID] = r
		}
	}

	delete(s.d.entities, fromID)
	s.d.merged[fromID] = toID
	s.d.rebuildFactKeys()
	return nil
}

// rebuildFactKeys recomputes the dedup index after fact reassignment so a
// re-ingest resolving onto the surviving id still deduplicates.
func (d *data) rebuildFactKeys() {
	d.factKeys = make(map[string]struct{})
	for _, ev := range d.sales {
		d.factKeys[saleKey(ev)] = struct{}{}
	}
	for _, snaps := range d.snapshots {
		for _, snap := range snaps {
			d.factKeys[snapshotKey(snap)] = struct{}{}
		}
	}
	for _, l := range d.invoices {
		d.factKeys[invoiceKey(l)] = struct{}{}
	}
}

// Merged reports whether id has been merged away, and into what.
func (s *Store) Merged(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	to, ok := s.d.merged[id]
	if !ok {
		return "", false
	}
	return s.d.canonicalID(to), true
}

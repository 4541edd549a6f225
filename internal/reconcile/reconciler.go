package reconcile

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"brigade/internal/config"
	"brigade/internal/models"
)

// ErrEmptyName is returned when a raw name normalizes to nothing.
var ErrEmptyName = errors.New("raw name normalizes to an empty string")

// EntityStore is the slice of the warehouse the reconciler needs: alias
// lookup, kind scans, and entity creation. The warehouse owns the entities;
// the reconciler only decides which one a raw name belongs to.
type EntityStore interface {
	EntityByAlias(kind models.EntityKind, normalizedAlias string) (*models.CanonicalEntity, bool)
	EntitiesOfKind(kind models.EntityKind) []*models.CanonicalEntity
	CreateEntity(kind models.EntityKind, id, displayName, rawAlias, normalizedAlias string) (*models.CanonicalEntity, error)
	AddAlias(id, rawAlias, normalizedAlias string) (*models.CanonicalEntity, error)
}

// Reconciler maps free-text names to canonical entities using bounded edit
// distance combined with token-set containment. Writes for one entity kind
// are serialized so two concurrent first sightings of the same name cannot
// mint duplicate ids.
type Reconciler struct {
	store EntityStore
	cfg   config.ReconcilerConfig

	mu        sync.Mutex
	kindLocks map[models.EntityKind]*sync.Mutex
}

// NewReconciler creates a reconciler over the given entity store.
func NewReconciler(store EntityStore, cfg config.ReconcilerConfig) *Reconciler {
	return &Reconciler{
		store:     store,
		cfg:       cfg,
		kindLocks: make(map[models.EntityKind]*sync.Mutex),
	}
}

func (r *Reconciler) lockKind(kind models.EntityKind) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.kindLocks[kind]
	if !ok {
		l = &sync.Mutex{}
		r.kindLocks[kind] = l
	}
	return l
}

// Resolve maps a raw name to its canonical entity, creating one with a
// deterministic id when nothing matches. The returned entity is a copy.
func (r *Reconciler) Resolve(raw string, kind models.EntityKind) (*models.CanonicalEntity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	norm := Normalize(raw)
	if norm == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyName, raw)
	}

	l := r.lockKind(kind)
	l.Lock()
	defer l.Unlock()

	// Exact alias hit.
	if e, ok := r.store.EntityByAlias(kind, norm); ok {
		return r.store.AddAlias(e.ID, raw, norm)
	}

	// Trailing plural folds only onto an already-known singular alias.
	if singular, ok := trimPlural(norm); ok {
		if e, ok := r.store.EntityByAlias(kind, singular); ok {
			return r.store.AddAlias(e.ID, raw, norm)
		}
	}

	if best := r.bestCandidate(kind, norm); best != nil {
		return r.store.AddAlias(best.ID, raw, norm)
	}

	id := models.EntityID(kind, norm)
	return r.store.CreateEntity(kind, id, raw, raw, norm)
}

// ResolveAll resolves a batch of raw names, preserving input order so
// tie-breaking stays deterministic within a file.
func (r *Reconciler) ResolveAll(raws []string, kind models.EntityKind) ([]*models.CanonicalEntity, error) {
	out := make([]*models.CanonicalEntity, 0, len(raws))
	for _, raw := range raws {
		e, err := r.Resolve(raw, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// bestCandidate scans the alias index of the kind for entities clearing both
// the distance bound and the token-overlap threshold. Smallest distance
// wins; among equals the entity with the most aliases absorbs the ambiguity;
// any remaining tie falls to the lexicographically smallest id.
func (r *Reconciler) bestCandidate(kind models.EntityKind, norm string) *models.CanonicalEntity {
	maxDist := r.maxDistance(norm)

	var best *models.CanonicalEntity
	bestDist := maxDist + 1
	for _, e := range r.store.EntitiesOfKind(kind) {
		dist := r.entityDistance(e, norm, maxDist)
		if dist > maxDist {
			continue
		}
		switch {
		case best == nil, dist < bestDist:
			best, bestDist = e, dist
		case dist == bestDist && len(e.Aliases) > len(best.Aliases):
			best = e
		case dist == bestDist && len(e.Aliases) == len(best.Aliases) && e.ID < best.ID:
			best = e
		}
	}
	return best
}

// entityDistance returns the smallest qualifying alias distance for the
// entity, or maxDist+1 when no alias clears both thresholds.
func (r *Reconciler) entityDistance(e *models.CanonicalEntity, norm string, maxDist int) int {
	closest := maxDist + 1
	for _, alias := range e.Aliases {
		aliasNorm := Normalize(alias)
		if aliasNorm == "" || aliasNorm == norm {
			if aliasNorm == norm {
				return 0
			}
			continue
		}
		a, b := strings.Fields(norm), strings.Fields(aliasNorm)
		if tokenOverlap(a, b) < r.cfg.MinTokenOverlap {
			continue
		}
		if d := aliasDistance(norm, aliasNorm, a, b); d < closest {
			closest = d
		}
	}
	return closest
}

// aliasDistance measures how far two normalized names are apart. Plain edit
// distance covers typos; the sorted form covers token reordering; full
// token-set containment counts only the extra qualifier tokens, so "organic
// tomato" sits one step from "tomato".
func aliasDistance(norm, alias string, normToks, aliasToks []string) int {
	d := levenshtein.ComputeDistance(norm, alias)
	if sorted := levenshtein.ComputeDistance(sortJoin(normToks), sortJoin(aliasToks)); sorted < d {
		d = sorted
	}
	if contains(normToks, aliasToks) {
		if extra := len(normToks) - len(aliasToks); extra < d {
			d = extra
		}
	}
	if contains(aliasToks, normToks) {
		if extra := len(aliasToks) - len(normToks); extra < d {
			d = extra
		}
	}
	return d
}

func (r *Reconciler) maxDistance(norm string) int {
	bound := int(math.Ceil(r.cfg.MaxDistanceRatio * float64(len([]rune(norm)))))
	if bound < 1 {
		bound = 1
	}
	return bound
}

func trimPlural(norm string) (string, bool) {
	if len(norm) > 1 && norm[len(norm)-1] == 's' {
		return norm[:len(norm)-1], true
	}
	return "", false
}

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// EntityKind represents the kind of a canonical entity
type EntityKind string

const (
	// Entity kinds
	KindMenuItem   EntityKind = "menu_item"
	KindIngredient EntityKind = "ingredient"
	KindSupplier   EntityKind = "supplier"
)

// Valid reports whether the kind is one of the known entity kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case KindMenuItem, KindIngredient, KindSupplier:
		return true
	}
	return false
}

// CanonicalEntity is the single stable identity representing all raw-text
// variants of one real-world menu item, ingredient, or supplier. Entities are
// created on first unmatched observation, grow by appending aliases, and are
// never deleted, only merged.
type CanonicalEntity struct {
	ID          string
	Kind        EntityKind
	DisplayName string
	// Aliases holds every raw string ever matched to this entity, in
	// first-seen order.
	Aliases []string
}

// HasAlias checks whether the raw string is already recorded as an alias.
func (e *CanonicalEntity) HasAlias(raw string) bool {
	for _, a := range e.Aliases {
		if a == raw {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the entity.
func (e *CanonicalEntity) Clone() *CanonicalEntity {
	c := *e
	c.Aliases = append([]string(nil), e.Aliases...)
	return &c
}

// EntityID derives a deterministic identifier from the entity kind and the
// normalized form of its first-seen name. Re-ingesting the same file twice
// therefore mints the same id instead of creating duplicates.
func EntityID(kind EntityKind, normalizedName string) string {
	sum := sha256.Sum256([]byte(string(kind) + "|" + normalizedName))
	return fmt.Sprintf("%s-%s", kindPrefix(kind), hex.EncodeToString(sum[:])[:16])
}

func kindPrefix(kind EntityKind) string {
	switch kind {
	case KindMenuItem:
		return "itm"
	case KindIngredient:
		return "ing"
	case KindSupplier:
		return "sup"
	}
	return "ent"
}

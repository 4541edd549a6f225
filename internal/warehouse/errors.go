package warehouse

import (
	"errors"
	"fmt"

	"brigade/internal/models"
)

// ErrEntityNotFound is returned for lookups of unknown canonical ids.
var ErrEntityNotFound = errors.New("canonical entity not found")

// IntegrityError indicates a fact referenced a canonical id that was never
// minted by this warehouse, or an id of the wrong kind. This is fatal: it
// means a caller bypassed the reconciliation contract.
type IntegrityError struct {
	ID       string
	Expected models.EntityKind
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation: id %q is not a known %s entity", e.ID, e.Expected)
}

// AliasConflictError indicates an attempt to map a normalized alias onto a
// second entity of the same kind. Alias sets within a kind stay disjoint.
type AliasConflictError struct {
	Alias    string
	Kind     models.EntityKind
	OwnerID  string
	TargetID string
}

func (e *AliasConflictError) Error() string {
	return fmt.Sprintf("alias %q of kind %s already belongs to entity %s, cannot attach to %s",
		e.Alias, e.Kind, e.OwnerID, e.TargetID)
}

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brigade/internal/config"
	"brigade/internal/models"
	"brigade/internal/warehouse"
)

func newTestReconciler() (*Reconciler, *warehouse.Store) {
	store := warehouse.NewStore()
	return NewReconciler(store, config.Default().Reconciler), store
}

func TestResolveVariantsCollapseToOneEntity(t *testing.T) {
	r, _ := newTestReconciler()

	names := []string{"Tomato", "Tomatoes", "Organic Tomato"}
	entities, err := r.ResolveAll(names, models.KindIngredient)
	require.NoError(t, err)
	require.Len(t, entities, 3)

	id := entities[0].ID
	for i, e := range entities {
		assert.Equal(t, id, e.ID, "variant %q minted a second entity", names[i])
	}

	final := entities[2]
	for _, raw := range names {
		assert.True(t, final.HasAlias(raw), "alias set missing %q", raw)
	}
}

func TestResolveOrderIndependentForClosePairs(t *testing.T) {
	pairs := [][2]string{
		{"tomatos", "tomato"},
		{"Basil ", "basil"},
		{"Mozzarella", "mozarella"},
		{"Sysco Foods", "Sysco Foods Inc"},
	}
	for _, pair := range pairs {
		forward, _ := newTestReconciler()
		backward, _ := newTestReconciler()

		a1, err := forward.Resolve(pair[0], models.KindIngredient)
		require.NoError(t, err)
		a2, err := forward.Resolve(pair[1], models.KindIngredient)
		require.NoError(t, err)

		b1, err := backward.Resolve(pair[1], models.KindIngredient)
		require.NoError(t, err)
		b2, err := backward.Resolve(pair[0], models.KindIngredient)
		require.NoError(t, err)

		assert.Equal(t, a1.ID, a2.ID, "pair %v split in forward order", pair)
		assert.Equal(t, b1.ID, b2.ID, "pair %v split in backward order", pair)
	}
}

func TestResolveKeepsDistinctNamesApart(t *testing.T) {
	r, _ := newTestReconciler()

	a, err := r.Resolve("Tomato", models.KindIngredient)
	require.NoError(t, err)
	b, err := r.Resolve("Potato Wedges", models.KindIngredient)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolveScopedByKind(t *testing.T) {
	r, _ := newTestReconciler()

	ing, err := r.Resolve("House Salad", models.KindIngredient)
	require.NoError(t, err)
	item, err := r.Resolve("House Salad", models.KindMenuItem)
	require.NoError(t, err)

	assert.NotEqual(t, ing.ID, item.ID)
}

func TestResolveIdempotentIDs(t *testing.T) {
	r1, _ := newTestReconciler()
	r2, _ := newTestReconciler()

	a, err := r1.Resolve("Mozzarella", models.KindIngredient)
	require.NoError(t, err)
	b, err := r2.Resolve("  MOZZARELLA  ", models.KindIngredient)
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID, "ids must be deterministic in the normalized name")
}

func TestResolveDoubleIngestCreatesNothingNew(t *testing.T) {
	r, store := newTestReconciler()

	batch := []string{"Tomato", "Basil", "Mozzarella", "Tomatoes"}
	_, err := r.ResolveAll(batch, models.KindIngredient)
	require.NoError(t, err)
	before := store.Stats().Entities[models.KindIngredient]

	_, err = r.ResolveAll(batch, models.KindIngredient)
	require.NoError(t, err)
	after := store.Stats().Entities[models.KindIngredient]

	assert.Equal(t, before, after)
}

func TestResolveRejectsEmptyName(t *testing.T) {
	r, _ := newTestReconciler()

	_, err := r.Resolve("   ", models.KindIngredient)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Tomato  ":        "tomato",
		"Fresh-Basil":       "fresh basil",
		"MOZZARELLA!!":      "mozzarella",
		"Sysco   Foods":     "sysco foods",
		"Olive Oil (Extra)": "olive oil extra",
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), "raw %q", raw)
	}
}

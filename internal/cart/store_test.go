package cart

import (
	"context"
	"math/rand"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jogardn/restaurant-storefront/internal/storage"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

func newTestStore() (*Store, *storage.MemoryStore) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	kv := storage.NewMemoryStore()
	return NewStore(kv, logger), kv
}

func TestItems_EmptyWhenAbsent(t *testing.T) {
	store, _ := newTestStore()

	items, err := store.Items(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestItems_CorruptJSONIsEmpty(t *testing.T) {
	store, kv := newTestStore()
	ctx := context.Background()

	for _, raw := range []string{"{not json", "null", `{"id":1}`, "42"} {
		require.NoError(t, kv.Set(ctx, storage.KeyCartItems, raw))
		items, err := store.Items(ctx)
		require.NoError(t, err, raw)
		assert.Empty(t, items, raw)
	}
}

func TestAdd_MergesAndOverwritesPrice(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, err := store.Add(ctx, models.CartItem{ID: 1, Name: "Koshari", Price: 50, Image: "a.png"}, 2)
	require.NoError(t, err)

	items, err := store.Add(ctx, models.CartItem{ID: 1, Name: "Koshari XL", Price: 55, Image: "b.png"}, 1)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, models.CartItem{ID: 1, Name: "Koshari XL", Price: 55, Image: "b.png", Qty: 3}, items[0])
}

func TestAdd_DefaultQuantity(t *testing.T) {
	store, _ := newTestStore()

	items, err := store.Add(context.Background(), models.CartItem{ID: 9, Price: 10}, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Qty)
}

func TestUpdate_ZeroRemovesAndKeepsOrder(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		_, err := store.Add(ctx, models.CartItem{ID: id, Price: 10}, 1)
		require.NoError(t, err)
	}

	items, err := store.Update(ctx, 1, 0)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, int64(3), items[0].ID)
	assert.Equal(t, int64(2), items[1].ID)

	persisted, _ := store.Items(ctx)
	assert.Equal(t, items, persisted)
}

func TestUpdate_SetsQuantity(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, _ = store.Add(ctx, models.CartItem{ID: 5, Price: 10}, 1)
	items, err := store.Update(ctx, 5, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, items[0].Qty)
}

func TestRemove(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, _ = store.Add(ctx, models.CartItem{ID: 1}, 1)
	_, _ = store.Add(ctx, models.CartItem{ID: 2}, 1)

	items, err := store.Remove(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ID)

	items, err = store.Remove(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRandomSequences_NoDuplicatesNoEmptyLines(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		id := int64(rng.Intn(6))
		var (
			items []models.CartItem
			err   error
		)
		switch rng.Intn(3) {
		case 0:
			items, err = store.Add(ctx, models.CartItem{ID: id, Price: float64(rng.Intn(100))}, rng.Intn(4)-1)
		case 1:
			items, err = store.Update(ctx, id, rng.Intn(5)-2)
		default:
			items, err = store.Remove(ctx, id)
		}
		require.NoError(t, err)

		seen := map[int64]bool{}
		for _, it := range items {
			assert.False(t, seen[it.ID], "duplicate id %d", it.ID)
			assert.Greater(t, it.Qty, 0)
			seen[it.ID] = true
		}
	}
}

func TestClear(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, _ = store.Add(ctx, models.CartItem{ID: 1}, 1)
	require.NoError(t, store.Clear(ctx))

	items, _ := store.Items(ctx)
	assert.Empty(t, items)
}

func TestTotals(t *testing.T) {
	count, subtotal := Totals([]models.CartItem{
		{ID: 1, Price: 0.1, Qty: 3},
		{ID: 2, Price: 12.5, Qty: 2},
	})
	assert.Equal(t, 5, count)
	assert.Equal(t, "25.30", subtotal.StringFixed(2))
}

func TestUnitPrice(t *testing.T) {
	item := models.MenuItem{
		ID:    1,
		Price: 40,
		Extras: []models.MenuExtra{
			{ID: "cheese", Price: 7.5},
			{ID: "sauce", Price: 2.25},
		},
	}

	assert.Equal(t, 40.0, UnitPrice(item, nil))
	assert.Equal(t, 49.75, UnitPrice(item, []string{"cheese", "sauce"}))
	assert.Equal(t, 47.5, UnitPrice(item, []string{"cheese", "unknown"}))
}

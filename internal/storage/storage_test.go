package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.Get(ctx, KeyLanguage)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, KeyLanguage, "ar"))
	val, ok, err := store.Get(ctx, KeyLanguage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ar", val)

	require.NoError(t, store.Delete(ctx, KeyLanguage))
	_, ok, _ = store.Get(ctx, KeyLanguage)
	assert.False(t, ok)
}

func TestForSession_IsolatesSessions(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	a := ForSession(base, "a")
	b := ForSession(base, "b")

	require.NoError(t, a.Set(ctx, KeyTableNumber, "4"))

	_, ok, _ := b.Get(ctx, KeyTableNumber)
	assert.False(t, ok)

	raw, ok, _ := base.Get(ctx, "session:a:"+KeyTableNumber)
	assert.True(t, ok)
	assert.Equal(t, "4", raw)
}

func TestPostgresStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery(`SELECT value FROM kv_store WHERE key = \$1`).
		WithArgs("cart_items").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[]`))

	val, ok, err := store.Get(context.Background(), "cart_items")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", val)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT value FROM kv_store`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, ok, err := NewPostgresStore(db).Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStore_SetUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO kv_store`).
		WithArgs("language", "en").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgresStore(db).Set(context.Background(), "language", "en"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM kv_store`).
		WithArgs("access_token").
		WillReturnError(errors.New("connection reset"))

	err = NewPostgresStore(db).Delete(context.Background(), "access_token")
	assert.ErrorContains(t, err, "connection reset")
}

package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func getMySQLStore(t *testing.T) *MySQLStore {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	store, err := OpenMySQL(ctx, MySQLConfig{DSN: dsn, MaxOpenConns: 5, MaxIdleConns: 2, ConnMaxLifetime: time.Minute})
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMySQL_ItemLifecycle(t *testing.T) {
	store := getMySQLStore(t)
	ctx := context.Background()
	items := store.Items()

	created, err := items.Create(ctx, domain.Item{Name: "mysql-laptop", Price: 15000, Stock: 10, CreatedAt: time.Now()})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	t.Cleanup(func() { items.DeleteByID(context.Background(), created.ID) })

	got, err := items.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mysql-laptop", got.Name)
	assert.Equal(t, 10, got.Stock)

	got.Price = 14000
	require.NoError(t, items.UpdateByID(ctx, created.ID, got))
	// Unchanged row still counts as matched with ClientFoundRows.
	require.NoError(t, items.UpdateByID(ctx, created.ID, got))

	got, err = items.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 14000.0, got.Price)
}

func TestMySQL_DecrementStock(t *testing.T) {
	store := getMySQLStore(t)
	ctx := context.Background()
	items := store.Items()

	item, err := items.Create(ctx, domain.Item{Name: "mysql-stock", Price: 10, Stock: 10})
	require.NoError(t, err)
	t.Cleanup(func() { items.DeleteByID(context.Background(), item.ID) })

	updated, err := items.DecrementStock(ctx, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Stock)

	_, err = items.DecrementStock(ctx, item.ID, 8)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	stored, err := items.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Stock)

	require.NoError(t, items.IncrementStock(ctx, item.ID, 3))
	stored, _ = items.FindByID(ctx, item.ID)
	assert.Equal(t, 10, stored.Stock)
}

func TestMySQL_NotFound(t *testing.T) {
	store := getMySQLStore(t)
	ctx := context.Background()

	_, err := store.Users().FindByID(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Orders().DeleteByID(ctx, -1), domain.ErrNotFound)
	_, err = store.Items().DecrementStock(ctx, -1, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryStore().Users()

	first, err := users.Create(ctx, domain.User{Username: "burak"})
	require.NoError(t, err)
	second, err := users.Create(ctx, domain.User{ID: 99, Username: "ayse"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID, "store assigns ids")

	got, err := users.FindByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "ayse", got.Username)

	require.NoError(t, users.UpdateByID(ctx, 1, domain.User{ID: 7, Username: "burak2"}))
	got, err = users.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: 1, Username: "burak2"}, got)

	all, err := users.Find(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.User{{ID: 1, Username: "burak2"}, {ID: 2, Username: "ayse"}}, all)

	require.NoError(t, users.DeleteByID(ctx, 1))
	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Items().FindByID(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Orders().UpdateByID(ctx, 5, domain.Order{}), domain.ErrNotFound)
	assert.ErrorIs(t, store.Users().DeleteByID(ctx, 5), domain.ErrNotFound)
	_, err = store.Items().DecrementStock(ctx, 5, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.Items().IncrementStock(ctx, 5, 1), domain.ErrNotFound)
}

func TestMemoryStore_DecrementStock(t *testing.T) {
	ctx := context.Background()
	items := NewMemoryStore().Items()
	item, err := items.Create(ctx, domain.Item{Name: "Laptop", Stock: 10})
	require.NoError(t, err)

	updated, err := items.DecrementStock(ctx, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Stock)

	_, err = items.DecrementStock(ctx, item.ID, 8)
	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 7, stockErr.Available)
	assert.Equal(t, 8, stockErr.Requested)

	stored, err := items.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.Stock, "failed decrement leaves stock unchanged")

	require.NoError(t, items.IncrementStock(ctx, item.ID, 3))
	stored, _ = items.FindByID(ctx, item.ID)
	assert.Equal(t, 10, stored.Stock)
}

func TestMemoryStore_DecrementStockConcurrent(t *testing.T) {
	ctx := context.Background()
	items := NewMemoryStore().Items()
	initialStock := 20
	totalRequests := 50

	item, err := items.Create(ctx, domain.Item{Name: "Phone", Stock: initialStock})
	require.NoError(t, err)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := items.DecrementStock(ctx, item.ID, 1); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	stored, _ := items.FindByID(ctx, item.ID)
	assert.Equal(t, 0, stored.Stock)
}

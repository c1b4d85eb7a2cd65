package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
)

func ptr[T any](v T) *T { return &v }

func seededCatalog(t *testing.T) *CatalogService {
	t.Helper()
	svc := NewCatalogService(storage.NewMemoryStore())
	for _, it := range []domain.Item{
		{Name: "Laptop", Price: 15000, Stock: 8},
		{Name: "Mouse", Price: 150, Stock: 50},
		{Name: "Klavye", Price: 400, Stock: 0},
		{Name: "Laptop Stand", Price: 900, Stock: 12},
	} {
		_, err := svc.CreateItem(context.Background(), it)
		require.NoError(t, err)
	}
	return svc
}

func itemNames(items []domain.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestCatalog_CreateItem(t *testing.T) {
	svc := NewCatalogService(storage.NewMemoryStore())
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	item, err := svc.CreateItem(context.Background(), domain.Item{ID: 77, Name: "Laptop", Price: 10, Stock: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.ID, "client supplied id is ignored")
	assert.Equal(t, fixed, item.CreatedAt)

	_, err = svc.CreateItem(context.Background(), domain.Item{Name: "", Price: 10})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.CreateItem(context.Background(), domain.Item{Name: "Broken", Stock: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCatalog_FilterItems(t *testing.T) {
	svc := seededCatalog(t)
	ctx := context.Background()

	got, err := svc.FilterItems(ctx, domain.ItemCriteria{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Laptop", "Mouse", "Klavye", "Laptop Stand"}, itemNames(got))

	got, err = svc.FilterItems(ctx, domain.ItemCriteria{Name: "LAPTOP", MaxPrice: ptr(1000.0)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Laptop Stand"}, itemNames(got))
}

func TestCatalog_FilterItemsWithExpression(t *testing.T) {
	svc := seededCatalog(t)
	ctx := context.Background()

	tests := []struct {
		expr     string
		criteria domain.ItemCriteria
		want     []string
	}{
		{expr: `stock == 0`, want: []string{"Klavye"}},
		{expr: `price > 300 && stock > 0`, want: []string{"Laptop", "Laptop Stand"}},
		{expr: `item_name.startsWith("M")`, want: []string{"Mouse"}},
		{expr: `price < 1000`, criteria: domain.ItemCriteria{MinStock: ptr(1)}, want: []string{"Mouse", "Laptop Stand"}},
		{expr: `id in [1, 3]`, want: []string{"Laptop", "Klavye"}},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			expr, err := CompileItemExpr(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.expr, expr.String())

			got, err := svc.FilterItems(ctx, tc.criteria, expr)
			require.NoError(t, err)
			assert.Equal(t, tc.want, itemNames(got))
		})
	}
}

func TestCompileItemExpr_Rejects(t *testing.T) {
	for _, src := range []string{
		`price +`,
		`price * 2`,
		`unknown_field > 1`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := CompileItemExpr(src)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCatalog_CountItems(t *testing.T) {
	svc := seededCatalog(t)
	ctx := context.Background()

	n, err := svc.CountItems(ctx, domain.ItemCriteria{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = svc.CountItems(ctx, domain.ItemCriteria{Name: "lap"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCatalog_PatchItem(t *testing.T) {
	svc := seededCatalog(t)
	ctx := context.Background()

	require.NoError(t, svc.PatchItem(ctx, 2, domain.ItemPatch{Price: ptr(175.0)}))
	got, err := svc.GetItem(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Mouse", got.Name)
	assert.Equal(t, 175.0, got.Price)
	assert.Equal(t, 50, got.Stock)

	assert.ErrorIs(t, svc.PatchItem(ctx, 99, domain.ItemPatch{Price: ptr(1.0)}), domain.ErrNotFound)
	assert.ErrorIs(t, svc.PatchItem(ctx, 2, domain.ItemPatch{Stock: ptr(-3)}), domain.ErrValidation)
}

func TestCatalog_PatchItems(t *testing.T) {
	svc := seededCatalog(t)
	ctx := context.Background()

	n, err := svc.PatchItems(ctx, domain.ItemCriteria{Name: "laptop"}, domain.ItemPatch{Stock: ptr(100)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := svc.FilterItems(ctx, domain.ItemCriteria{MinStock: ptr(100)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Laptop", "Laptop Stand"}, itemNames(got))
}

func TestCatalog_ReplaceAndDeleteItem(t *testing.T) {
	svc := seededCatalog(t)
	ctx := context.Background()

	original, err := svc.GetItem(ctx, 3)
	require.NoError(t, err)

	require.NoError(t, svc.ReplaceItem(ctx, 3, domain.Item{Name: "Keyboard", Price: 450, Stock: 4}))
	got, err := svc.GetItem(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.Item{ID: 3, Name: "Keyboard", Price: 450, Stock: 4, CreatedAt: original.CreatedAt}, got)

	assert.ErrorIs(t, svc.ReplaceItem(ctx, 42, domain.Item{Name: "Ghost"}), domain.ErrNotFound)

	require.NoError(t, svc.DeleteItem(ctx, 3))
	_, err = svc.GetItem(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalog_UsersAndOrders(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewCatalogService(store)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.User{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	user, err := svc.CreateUser(ctx, domain.User{ID: 5, Username: "ayse"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.User{user}, users)

	_, err = store.Orders().Create(ctx, domain.Order{UserID: user.ID, ItemID: 1, StockNumber: 2})
	require.NoError(t, err)
	orders, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

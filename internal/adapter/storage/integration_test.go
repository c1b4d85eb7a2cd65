package storage_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type testEnv struct {
	redis *redis.Client
	store *storage.MySQLStore
	guard *storage.RedisAdapter
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("Redis not available: %v", err)
	}

	store, err := storage.OpenMySQL(ctx, storage.MySQLConfig{DSN: mysqlDSN, MaxOpenConns: 20, MaxIdleConns: 5})
	if err != nil {
		rdb.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	require.NoError(t, store.Migrate(ctx))

	t.Cleanup(func() {
		rdb.Close()
		store.Close()
	})
	return &testEnv{redis: rdb, store: store, guard: storage.NewRedisAdapter(rdb)}
}

func (e *testEnv) seed(t *testing.T, stock int) (domain.User, domain.Item) {
	ctx := context.Background()
	user, err := e.store.Users().Create(ctx, domain.User{Username: "integration-" + uuid.NewString()[:8]})
	require.NoError(t, err)
	item, err := e.store.Items().Create(ctx, domain.Item{Name: "integration-item", Price: 100, Stock: stock, CreatedAt: time.Now()})
	require.NoError(t, err)
	t.Cleanup(func() {
		e.store.Items().DeleteByID(context.Background(), item.ID)
		e.store.Users().DeleteByID(context.Background(), user.ID)
	})
	return user, item
}

func TestIntegration_ConcurrentOrdersDoNotOversell(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	initialStock := 10
	user, item := env.seed(t, initialStock)

	svc := service.NewOrderService(env.store, service.WithIdempotencyGuard(env.guard))

	var successCount atomic.Int32
	var wg sync.WaitGroup
	totalRequests := 20
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, service.OrderRequest{
				UserID:         user.ID,
				ItemID:         item.ID,
				Count:          1,
				IdempotencyKey: uuid.NewString(),
			})
			if err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	stored, err := env.store.Items().FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Stock)

	orders, err := env.store.Orders().Find(ctx)
	require.NoError(t, err)
	var placed int
	for _, o := range orders {
		if o.ItemID == item.ID {
			placed++
			env.store.Orders().DeleteByID(ctx, o.ID)
		}
	}
	assert.Equal(t, initialStock, placed)
}

func TestIntegration_IdempotencyPreventsDoubleOrder(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user, item := env.seed(t, 10)

	requestID := "same-request-id-" + uuid.NewString()
	t.Cleanup(func() { env.guard.Release(context.Background(), requestID) })

	svc := service.NewOrderService(env.store, service.WithIdempotencyGuard(env.guard))
	req := service.OrderRequest{UserID: user.ID, ItemID: item.ID, Count: 1, IdempotencyKey: requestID}

	placement, err := svc.PlaceOrder(ctx, req)
	require.NoError(t, err)
	t.Cleanup(func() { env.store.Orders().DeleteByID(context.Background(), placement.Order.ID) })

	_, err = svc.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	stored, err := env.store.Items().FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, stored.Stock)
}

func TestIntegration_AllOrNothingCartRollsBack(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user, first := env.seed(t, 5)
	_, second := env.seed(t, 1)

	svc := service.NewOrderService(env.store, service.WithCartPolicy(service.CartAllOrNothing))
	_, err := svc.PlaceCartOrder(ctx, service.CartRequest{
		UserID: user.ID,
		Lines: []domain.CartLine{
			{ItemID: first.ID, Count: 2},
			{ItemID: second.ID, Count: 2},
		},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	stored, err := env.store.Items().FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Stock, "stock of the first line is released")

	orders, err := env.store.Orders().Find(ctx)
	require.NoError(t, err)
	for _, o := range orders {
		assert.NotEqual(t, first.ID, o.ItemID, "order of the first line is deleted")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
)

func main() {
	ctx := context.Background()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	store := storage.NewMemoryStore()
	item, err := store.Items().Create(ctx, domain.Item{Name: "flash-sale-item", Price: 999, Stock: initialStock})
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	userIDs := make([]int64, totalRequests)
	for i := range userIDs {
		user, err := store.Users().Create(ctx, domain.User{Username: fmt.Sprintf("user-%d", i)})
		if err != nil {
			log.Fatalf("failed to create user: %v", err)
		}
		userIDs[i] = user.ID
	}

	orderService := service.NewOrderService(store,
		service.WithIdempotencyGuard(storage.NewMemoryGuard()),
		service.WithLogger(logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))),
	)

	// Counters
	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()

			_, err := orderService.PlaceOrder(ctx, service.OrderRequest{
				UserID:         userID,
				ItemID:         item.ID,
				Count:          1,
				IdempotencyKey: fmt.Sprintf("stress-%d", userID),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
				logger.Error("unexpected order failure", zap.Error(err))
			}
		}(userIDs[i])
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold Out:         %d\n", soldOut)
	fmt.Printf("Other Failures:   %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d sold out\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	final, err := store.Items().FindByID(ctx, item.ID)
	if err != nil {
		log.Fatalf("failed to read item: %v", err)
	}
	orders, _ := store.Orders().Count(ctx)
	fmt.Printf("Final Stock:      %d\n", final.Stock)
	fmt.Printf("Orders Recorded:  %d\n", orders)

	if final.Stock == 0 && orders == initialStock {
		fmt.Println("PASS: Stock depleted to 0 with no oversell")
	} else {
		fmt.Printf("FAIL: Expected stock 0 and %d orders, got %d and %d\n", initialStock, final.Stock, orders)
	}
}

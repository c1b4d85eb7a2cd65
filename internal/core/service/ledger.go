package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/telemetry"
)

// StockLedger is the only writer of Item.Stock after creation. Reservations go through the
// store's conditional decrement, so concurrent reservations cannot drive stock below zero.
type StockLedger struct {
	items   port.ItemStore
	metrics *telemetry.Metrics
}

func NewStockLedger(items port.ItemStore, metrics *telemetry.Metrics) *StockLedger {
	return &StockLedger{items: items, metrics: metrics}
}

// Reserve removes quantity from the item's stock and returns the updated item.
func (l *StockLedger) Reserve(ctx context.Context, itemID int64, quantity int) (domain.Item, error) {
	ctx, span := tracer.Start(ctx, "StockLedger.Reserve", trace.WithAttributes(
		attribute.Int64("item.id", itemID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	if quantity <= 0 {
		err := domain.Invalid("quantity must be positive, got %d", quantity)
		recordError(span, err)
		return domain.Item{}, err
	}

	item, err := l.items.DecrementStock(ctx, itemID, quantity)
	if err != nil {
		recordError(span, err)
		return domain.Item{}, err
	}

	l.metrics.StockReserved(quantity)
	return item, nil
}

// Release returns quantity to the item's stock. It only compensates an earlier Reserve.
func (l *StockLedger) Release(ctx context.Context, itemID int64, quantity int) error {
	if quantity <= 0 {
		return domain.Invalid("quantity must be positive, got %d", quantity)
	}
	return l.items.IncrementStock(ctx, itemID, quantity)
}

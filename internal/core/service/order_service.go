package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/telemetry"
)

// CartPolicy decides what happens to the committed lines of a cart when a later line fails.
type CartPolicy string

const (
	// CartBestEffort keeps earlier lines committed and only reports the failure.
	CartBestEffort CartPolicy = "best_effort"
	// CartAllOrNothing deletes the orders of earlier lines and releases their stock.
	CartAllOrNothing CartPolicy = "all_or_nothing"
)

func (p CartPolicy) Valid() bool {
	return p == CartBestEffort || p == CartAllOrNothing
}

const (
	flowSingle = "single"
	flowCart   = "cart"

	defaultPublishTimeout = 2 * time.Second
)

type OrderRequest struct {
	UserID         int64
	ItemID         int64
	Count          int
	IdempotencyKey string
}

type CartRequest struct {
	UserID         int64
	Lines          []domain.CartLine
	IdempotencyKey string
}

type OrderService struct {
	items     port.ItemStore
	users     port.UserStore
	orders    port.OrderStore
	ledger    *StockLedger
	guard     port.IdempotencyGuard
	publisher port.EventPublisher
	policy    CartPolicy
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	now       func() time.Time

	publishTimeout time.Duration
}

type OrderServiceOption func(*OrderService)

func WithIdempotencyGuard(guard port.IdempotencyGuard) OrderServiceOption {
	return func(s *OrderService) { s.guard = guard }
}

func WithEventPublisher(publisher port.EventPublisher) OrderServiceOption {
	return func(s *OrderService) { s.publisher = publisher }
}

func WithCartPolicy(policy CartPolicy) OrderServiceOption {
	return func(s *OrderService) { s.policy = policy }
}

func WithMetrics(metrics *telemetry.Metrics) OrderServiceOption {
	return func(s *OrderService) { s.metrics = metrics }
}

func WithLogger(logger *zap.Logger) OrderServiceOption {
	return func(s *OrderService) { s.logger = logger }
}

// WithPublishTimeout bounds each event publish. The order is already committed when it runs.
func WithPublishTimeout(d time.Duration) OrderServiceOption {
	return func(s *OrderService) { s.publishTimeout = d }
}

func NewOrderService(store port.Store, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		items:  store.Items(),
		users:  store.Users(),
		orders: store.Orders(),
		policy: CartBestEffort,
		logger: zap.NewNop(),
		now:    time.Now,

		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = NewStockLedger(s.items, s.metrics)
	return s
}

func (s *OrderService) Ledger() *StockLedger {
	return s.ledger
}

// PlaceOrder fulfils a single order line. The item and its stock are checked before the
// user, matching the checkout flow clients already depend on.
func (s *OrderService) PlaceOrder(ctx context.Context, req OrderRequest) (placement domain.Placement, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.PlaceOrder", trace.WithAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.Int64("item.id", req.ItemID),
		attribute.Int("count", req.Count),
	))
	defer func() {
		if err != nil {
			recordError(span, err)
			s.metrics.OrderFailed(flowSingle, failureReason(err))
			s.logger.Info("order rejected",
				zap.Int64("user_id", req.UserID),
				zap.Int64("item_id", req.ItemID),
				zap.Int("count", req.Count),
				zap.Error(err))
		}
		span.End()
	}()

	if req.Count <= 0 {
		return domain.Placement{}, domain.Invalid("count must be positive, got %d", req.Count)
	}

	release, err := s.claim(ctx, req.IdempotencyKey)
	if err != nil {
		return domain.Placement{}, err
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	item, err := s.items.FindByID(ctx, req.ItemID)
	if err != nil {
		return domain.Placement{}, err
	}
	if item.Stock < req.Count {
		return domain.Placement{}, &domain.StockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: item.Stock,
			Requested: req.Count,
		}
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return domain.Placement{}, err
	}

	placement, err = s.fulfil(ctx, user, req.ItemID, req.Count)
	if err != nil {
		return domain.Placement{}, err
	}

	s.metrics.OrderPlaced(flowSingle)
	s.publish(ctx, placement.Order)
	s.logger.Info("order placed",
		zap.Int64("order_id", placement.Order.ID),
		zap.Int64("user_id", user.ID),
		zap.Int64("item_id", req.ItemID),
		zap.Int("count", req.Count))
	return placement, nil
}

// PlaceCartOrder fulfils every line of a cart in input order under one user. The first
// failing line aborts the cart; lines after it are never read.
func (s *OrderService) PlaceCartOrder(ctx context.Context, req CartRequest) (result domain.CartResult, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.PlaceCartOrder", trace.WithAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.Int("cart.lines", len(req.Lines)),
		attribute.String("cart.policy", string(s.policy)),
	))
	defer func() {
		if err != nil {
			recordError(span, err)
			s.metrics.OrderFailed(flowCart, failureReason(err))
			s.logger.Info("cart rejected",
				zap.Int64("user_id", req.UserID),
				zap.Int("lines", len(req.Lines)),
				zap.Error(err))
		}
		span.End()
	}()

	if err := validateCart(req.Lines); err != nil {
		return domain.CartResult{}, err
	}

	release, err := s.claim(ctx, req.IdempotencyKey)
	if err != nil {
		return domain.CartResult{}, err
	}
	// The key stays claimed once any line remains committed, so a retry cannot repeat it.
	keepKey := false
	defer func() {
		if err != nil && !keepKey {
			release()
		}
	}()

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return domain.CartResult{}, err
	}

	placements := make([]domain.Placement, 0, len(req.Lines))
	for i, line := range req.Lines {
		placement, lineErr := s.placeCartLine(ctx, user, line)
		if lineErr != nil {
			keepKey = s.abortCart(ctx, placements)
			return domain.CartResult{}, fmt.Errorf("cart line %d: %w", i+1, lineErr)
		}
		placements = append(placements, placement)
	}

	for _, p := range placements {
		s.metrics.OrderPlaced(flowCart)
		s.publish(ctx, p.Order)
	}
	s.logger.Info("cart placed",
		zap.Int64("user_id", user.ID),
		zap.Int("orders", len(placements)))
	return domain.CartResult{CreatedCount: len(placements), Orders: placements}, nil
}

func (s *OrderService) placeCartLine(ctx context.Context, user domain.User, line domain.CartLine) (domain.Placement, error) {
	item, err := s.items.FindByID(ctx, line.ItemID)
	if err != nil {
		return domain.Placement{}, err
	}
	if item.Stock < line.Count {
		return domain.Placement{}, &domain.StockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: item.Stock,
			Requested: line.Count,
		}
	}
	return s.fulfil(ctx, user, line.ItemID, line.Count)
}

// fulfil reserves stock and records the order. A failed order write releases the
// reservation before the error is returned.
func (s *OrderService) fulfil(ctx context.Context, user domain.User, itemID int64, count int) (domain.Placement, error) {
	item, err := s.ledger.Reserve(ctx, itemID, count)
	if err != nil {
		return domain.Placement{}, err
	}

	order, err := s.orders.Create(ctx, domain.Order{
		UserID:      user.ID,
		ItemID:      itemID,
		StockNumber: count,
	})
	if err != nil {
		if rollbackErr := s.ledger.Release(ctx, itemID, count); rollbackErr != nil {
			s.logger.Error("CRITICAL: stock rollback failed",
				zap.Int64("item_id", itemID),
				zap.Int("count", count),
				zap.Error(rollbackErr))
		} else {
			s.logger.Warn("rolled back stock after failed order write",
				zap.Int64("item_id", itemID),
				zap.Int("count", count))
		}
		return domain.Placement{}, fmt.Errorf("create order: %w", err)
	}

	return domain.Placement{
		Order: order,
		User:  user.Summary(),
		Item:  item.Summary(),
	}, nil
}

// abortCart handles the lines committed before a failure according to the cart policy.
// It reports whether any of those lines are still committed afterwards.
func (s *OrderService) abortCart(ctx context.Context, committed []domain.Placement) bool {
	if s.policy != CartAllOrNothing {
		for _, p := range committed {
			s.metrics.OrderPlaced(flowCart)
			s.publish(ctx, p.Order)
		}
		if len(committed) > 0 {
			s.logger.Warn("cart aborted with committed lines",
				zap.Int("committed", len(committed)))
		}
		return len(committed) > 0
	}

	leftover := false
	for i := len(committed) - 1; i >= 0; i-- {
		order := committed[i].Order
		if err := s.orders.DeleteByID(ctx, order.ID); err != nil {
			leftover = true
			s.logger.Error("CRITICAL: failed to delete order during cart rollback",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			continue
		}
		if err := s.ledger.Release(ctx, order.ItemID, order.StockNumber); err != nil {
			s.logger.Error("CRITICAL: failed to release stock during cart rollback",
				zap.Int64("order_id", order.ID),
				zap.Int64("item_id", order.ItemID),
				zap.Error(err))
		}
	}
	return leftover
}

func (s *OrderService) claim(ctx context.Context, key string) (func(), error) {
	if key == "" || s.guard == nil {
		return func() {}, nil
	}

	ok, err := s.guard.Claim(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *OrderService) publish(ctx context.Context, order domain.Order) {
	if s.publisher == nil {
		return
	}

	event := domain.OrderPlaced{
		EventID:    uuid.NewString(),
		OrderID:    order.ID,
		UserID:     order.UserID,
		ItemID:     order.ItemID,
		Quantity:   order.StockNumber,
		OccurredAt: s.now().UTC(),
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.PublishOrderPlaced(publishCtx, event); err != nil {
		s.metrics.PublishFailed()
		s.logger.Error("failed to publish order event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func validateCart(lines []domain.CartLine) error {
	if len(lines) == 0 {
		return domain.Invalid("cart must contain at least one item")
	}
	for i, line := range lines {
		if line.ItemID <= 0 {
			return domain.Invalid("cart line %d: item_id must be positive", i+1)
		}
		if line.Count <= 0 {
			return domain.Invalid("cart line %d: count must be positive, got %d", i+1, line.Count)
		}
	}
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return "duplicate"
	default:
		return "internal"
	}
}

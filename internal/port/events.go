package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event domain.OrderPlaced) error
	Close() error
}

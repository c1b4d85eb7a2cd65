package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// RecordStore is the generic persistence capability set over one record kind.
// Lookups of absent ids fail with *domain.NotFoundError.
type RecordStore[T any] interface {
	// Create assigns a fresh id and returns the stored record
	Create(ctx context.Context, record T) (T, error)

	// Find returns every record in id order
	Find(ctx context.Context) ([]T, error)

	FindByID(ctx context.Context, id int64) (T, error)

	// UpdateByID overwrites the stored record with the given one, keeping its id
	UpdateByID(ctx context.Context, id int64, record T) error

	DeleteByID(ctx context.Context, id int64) error

	Count(ctx context.Context) (int64, error)
}

type ItemStore interface {
	RecordStore[domain.Item]

	// DecrementStock atomically removes quantity from the item's stock and returns the
	// updated item. Fails with *domain.StockError and leaves stock unchanged if the item
	// holds less than quantity.
	DecrementStock(ctx context.Context, id int64, quantity int) (domain.Item, error)

	// IncrementStock restores stock (for rollback on failure)
	IncrementStock(ctx context.Context, id int64, quantity int) error
}

type UserStore interface {
	RecordStore[domain.User]
}

type OrderStore interface {
	RecordStore[domain.Order]
}

// Store bundles the three record kinds served by one backend.
type Store interface {
	Items() ItemStore
	Users() UserStore
	Orders() OrderStore
	Close() error
}

package service

import (
	"context"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// CatalogService exposes the generic record operations behind the item, user and order
// endpoints together with item filtering.
type CatalogService struct {
	items  port.ItemStore
	users  port.UserStore
	orders port.OrderStore
	now    func() time.Time
}

func NewCatalogService(store port.Store) *CatalogService {
	return &CatalogService{
		items:  store.Items(),
		users:  store.Users(),
		orders: store.Orders(),
		now:    time.Now,
	}
}

func (s *CatalogService) CreateItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	if err := item.Validate(); err != nil {
		return domain.Item{}, err
	}
	item.ID = 0
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now().UTC()
	}
	return s.items.Create(ctx, item)
}

func (s *CatalogService) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	return s.items.FindByID(ctx, id)
}

func (s *CatalogService) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.items.Find(ctx)
}

// FilterItems applies criteria and then, when expr is non-nil, the CEL predicate.
func (s *CatalogService) FilterItems(ctx context.Context, criteria domain.ItemCriteria, expr *ItemExpr) ([]domain.Item, error) {
	items, err := s.items.Find(ctx)
	if err != nil {
		return nil, err
	}
	items = domain.FilterItems(items, criteria)
	if expr == nil {
		return items, nil
	}

	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		ok, err := expr.Match(item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *CatalogService) CountItems(ctx context.Context, criteria domain.ItemCriteria) (int64, error) {
	if criteria.IsZero() {
		return s.items.Count(ctx)
	}
	items, err := s.FilterItems(ctx, criteria, nil)
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

func (s *CatalogService) PatchItem(ctx context.Context, id int64, patch domain.ItemPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.items.UpdateByID(ctx, id, patch.Apply(item))
}

// PatchItems applies patch to every item matching criteria and returns how many were
// updated.
func (s *CatalogService) PatchItems(ctx context.Context, criteria domain.ItemCriteria, patch domain.ItemPatch) (int64, error) {
	if err := patch.Validate(); err != nil {
		return 0, err
	}
	items, err := s.FilterItems(ctx, criteria, nil)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, item := range items {
		if err := s.items.UpdateByID(ctx, item.ID, patch.Apply(item)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *CatalogService) ReplaceItem(ctx context.Context, id int64, item domain.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	current, err := s.items.FindByID(ctx, id)
	if err != nil {
		return err
	}
	item.ID = id
	if item.CreatedAt.IsZero() {
		item.CreatedAt = current.CreatedAt
	}
	return s.items.UpdateByID(ctx, id, item)
}

func (s *CatalogService) DeleteItem(ctx context.Context, id int64) error {
	return s.items.DeleteByID(ctx, id)
}

func (s *CatalogService) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if err := user.Validate(); err != nil {
		return domain.User{}, err
	}
	user.ID = 0
	return s.users.Create(ctx, user)
}

func (s *CatalogService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.users.Find(ctx)
}

func (s *CatalogService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.Find(ctx)
}

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MemoryStore keeps every record kind in process memory. Ids are assigned from
// per-kind counters starting at 1.
type MemoryStore struct {
	items  *memoryItems
	users  *memoryTable[domain.User]
	orders *memoryTable[domain.Order]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: &memoryItems{memoryTable: newMemoryTable(domain.KindItem,
			func(it *domain.Item) *int64 { return &it.ID })},
		users: newMemoryTable(domain.KindUser,
			func(u *domain.User) *int64 { return &u.ID }),
		orders: newMemoryTable(domain.KindOrder,
			func(o *domain.Order) *int64 { return &o.ID }),
	}
}

func (s *MemoryStore) Items() port.ItemStore   { return s.items }
func (s *MemoryStore) Users() port.UserStore   { return s.users }
func (s *MemoryStore) Orders() port.OrderStore { return s.orders }
func (s *MemoryStore) Close() error            { return nil }

type memoryTable[T any] struct {
	mu      sync.RWMutex
	kind    domain.RecordKind
	idOf    func(*T) *int64
	nextID  int64
	records map[int64]T
}

func newMemoryTable[T any](kind domain.RecordKind, idOf func(*T) *int64) *memoryTable[T] {
	return &memoryTable[T]{
		kind:    kind,
		idOf:    idOf,
		records: make(map[int64]T),
	}
}

func (t *memoryTable[T]) Create(ctx context.Context, record T) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	*t.idOf(&record) = t.nextID
	t.records[t.nextID] = record
	return record, nil
}

func (t *memoryTable[T]) Find(ctx context.Context) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]int64, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.records[id])
	}
	return out, nil
}

func (t *memoryTable[T]) FindByID(ctx context.Context, id int64) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, ok := t.records[id]
	if !ok {
		var zero T
		return zero, domain.NotFound(t.kind, id)
	}
	return record, nil
}

func (t *memoryTable[T]) UpdateByID(ctx context.Context, id int64, record T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[id]; !ok {
		return domain.NotFound(t.kind, id)
	}
	*t.idOf(&record) = id
	t.records[id] = record
	return nil
}

func (t *memoryTable[T]) DeleteByID(ctx context.Context, id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[id]; !ok {
		return domain.NotFound(t.kind, id)
	}
	delete(t.records, id)
	return nil
}

func (t *memoryTable[T]) Count(ctx context.Context) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int64(len(t.records)), nil
}

type memoryItems struct {
	*memoryTable[domain.Item]
}

func (m *memoryItems) DecrementStock(ctx context.Context, id int64, quantity int) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.records[id]
	if !ok {
		return domain.Item{}, domain.NotFound(domain.KindItem, id)
	}
	if item.Stock < quantity {
		return domain.Item{}, &domain.StockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: item.Stock,
			Requested: quantity,
		}
	}

	item.Stock -= quantity
	m.records[id] = item
	return item, nil
}

func (m *memoryItems) IncrementStock(ctx context.Context, id int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.records[id]
	if !ok {
		return domain.NotFound(domain.KindItem, id)
	}
	item.Stock += quantity
	m.records[id] = item
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(pool), nil
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	items  *postgresItems
	users  *pgTable[domain.User]
	orders *pgTable[domain.Order]
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		items: &postgresItems{pgTable: &pgTable[domain.Item]{
			pool: pool, kind: domain.KindItem, table: "items",
			columns: []string{"item_name", "price", "stock", "created_at"},
			values: func(it domain.Item) []any {
				return []any{it.Name, it.Price, it.Stock, it.CreatedAt}
			},
			scan: scanItem,
		}},
		users: &pgTable[domain.User]{
			pool: pool, kind: domain.KindUser, table: "users",
			columns: []string{"username"},
			values:  func(u domain.User) []any { return []any{u.Username} },
			scan: func(row pgx.Row) (domain.User, error) {
				var u domain.User
				err := row.Scan(&u.ID, &u.Username)
				return u, err
			},
		},
		orders: &pgTable[domain.Order]{
			pool: pool, kind: domain.KindOrder, table: "orders",
			columns: []string{"user_id", "item_id", "stock_number"},
			values: func(o domain.Order) []any {
				return []any{o.UserID, o.ItemID, o.StockNumber}
			},
			scan: func(row pgx.Row) (domain.Order, error) {
				var o domain.Order
				err := row.Scan(&o.ID, &o.UserID, &o.ItemID, &o.StockNumber)
				return o, err
			},
		},
	}
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var it domain.Item
	if err := row.Scan(&it.ID, &it.Name, &it.Price, &it.Stock, &it.CreatedAt); err != nil {
		return domain.Item{}, err
	}
	it.CreatedAt = it.CreatedAt.UTC()
	return it, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS items (
			id BIGSERIAL PRIMARY KEY,
			item_name VARCHAR(255) NOT NULL,
			price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
			stock INTEGER NOT NULL CHECK (stock >= 0),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(255) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			item_id BIGINT NOT NULL,
			stock_number INTEGER NOT NULL CHECK (stock_number > 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_item_id ON orders(item_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Items() port.ItemStore   { return s.items }
func (s *PostgresStore) Users() port.UserStore   { return s.users }
func (s *PostgresStore) Orders() port.OrderStore { return s.orders }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgTable[T any] struct {
	pool    *pgxpool.Pool
	kind    domain.RecordKind
	table   string
	columns []string
	values  func(T) []any
	scan    func(pgx.Row) (T, error)
}

func (t *pgTable[T]) selectList() string {
	return "id, " + strings.Join(t.columns, ", ")
}

func (t *pgTable[T]) Create(ctx context.Context, record T) (T, error) {
	placeholders := make([]string, len(t.columns))
	for i := range t.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		t.table, strings.Join(t.columns, ", "), strings.Join(placeholders, ", "), t.selectList())

	created, err := t.scan(t.pool.QueryRow(ctx, query, t.values(record)...))
	if err != nil {
		var zero T
		return zero, fmt.Errorf("insert %s: %w", t.kind, err)
	}
	return created, nil
}

func (t *pgTable[T]) Find(ctx context.Context) ([]T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, t.selectList(), t.table)
	rows, err := t.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.kind, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		record, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.kind, err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (t *pgTable[T]) FindByID(ctx context.Context, id int64) (T, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, t.selectList(), t.table)
	record, err := t.scan(t.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, domain.NotFound(t.kind, id)
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("query %s: %w", t.kind, err)
	}
	return record, nil
}

func (t *pgTable[T]) UpdateByID(ctx context.Context, id int64, record T) error {
	assignments := make([]string, len(t.columns))
	for i, col := range t.columns {
		assignments[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`,
		t.table, strings.Join(assignments, ", "), len(t.columns)+1)

	args := append(t.values(record), id)
	tag, err := t.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(t.kind, id)
	}
	return nil
}

func (t *pgTable[T]) DeleteByID(ctx context.Context, id int64) error {
	tag, err := t.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(t.kind, id)
	}
	return nil
}

func (t *pgTable[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := t.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t.kind, err)
	}
	return n, nil
}

type postgresItems struct {
	*pgTable[domain.Item]
}

func (p *postgresItems) DecrementStock(ctx context.Context, id int64, quantity int) (domain.Item, error) {
	item, err := scanItem(p.pool.QueryRow(ctx, `
		UPDATE items
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING id, item_name, price, stock, created_at`,
		id, quantity,
	))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Item{}, fmt.Errorf("decrement stock: %w", err)
	}

	current, err := p.FindByID(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	return domain.Item{}, &domain.StockError{
		ItemID:    current.ID,
		ItemName:  current.Name,
		Available: current.Stock,
		Requested: quantity,
	}
}

func (p *postgresItems) IncrementStock(ctx context.Context, id int64, quantity int) error {
	tag, err := p.pool.Exec(ctx, `UPDATE items SET stock = stock + $2 WHERE id = $1`, id, quantity)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(domain.KindItem, id)
	}
	return nil
}

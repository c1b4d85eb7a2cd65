package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type itemModel struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	ItemName  string  `gorm:"size:255;not null"`
	Price     float64 `gorm:"type:decimal(12,2);not null"`
	Stock     int     `gorm:"not null"`
	CreatedAt time.Time
}

func (itemModel) TableName() string { return "items" }

type userModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Username string `gorm:"size:255;not null"`
}

func (userModel) TableName() string { return "users" }

type orderModel struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	UserID      int64 `gorm:"index;not null"`
	ItemID      int64 `gorm:"index;not null"`
	StockNumber int   `gorm:"not null"`
}

func (orderModel) TableName() string { return "orders" }

func itemToModel(it domain.Item) itemModel {
	return itemModel{ID: it.ID, ItemName: it.Name, Price: it.Price, Stock: it.Stock, CreatedAt: it.CreatedAt}
}

func itemFromModel(m itemModel) domain.Item {
	return domain.Item{ID: m.ID, Name: m.ItemName, Price: m.Price, Stock: m.Stock, CreatedAt: m.CreatedAt.UTC()}
}

func userToModel(u domain.User) userModel   { return userModel{ID: u.ID, Username: u.Username} }
func userFromModel(m userModel) domain.User { return domain.User{ID: m.ID, Username: m.Username} }

func orderToModel(o domain.Order) orderModel {
	return orderModel{ID: o.ID, UserID: o.UserID, ItemID: o.ItemID, StockNumber: o.StockNumber}
}

func orderFromModel(m orderModel) domain.Order {
	return domain.Order{ID: m.ID, UserID: m.UserID, ItemID: m.ItemID, StockNumber: m.StockNumber}
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenMySQL connects through gorm. The DSN is normalised so that time columns are parsed
// and UPDATE reports matched rather than changed rows, which the not-found checks rely on.
func OpenMySQL(ctx context.Context, cfg MySQLConfig) (*MySQLStore, error) {
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	dsn.ParseTime = true
	dsn.ClientFoundRows = true

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{DSN: dsn.FormatDSN()}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return NewMySQLStore(db), nil
}

type MySQLStore struct {
	db     *gorm.DB
	items  *mysqlItems
	users  *gormTable[domain.User, userModel]
	orders *gormTable[domain.Order, orderModel]
}

func NewMySQLStore(db *gorm.DB) *MySQLStore {
	return &MySQLStore{
		db: db,
		items: &mysqlItems{gormTable: &gormTable[domain.Item, itemModel]{
			db: db, kind: domain.KindItem,
			toModel: itemToModel, fromModel: itemFromModel,
			setID: func(m *itemModel, id int64) { m.ID = id },
		}},
		users: &gormTable[domain.User, userModel]{
			db: db, kind: domain.KindUser,
			toModel: userToModel, fromModel: userFromModel,
			setID: func(m *userModel, id int64) { m.ID = id },
		},
		orders: &gormTable[domain.Order, orderModel]{
			db: db, kind: domain.KindOrder,
			toModel: orderToModel, fromModel: orderFromModel,
			setID: func(m *orderModel, id int64) { m.ID = id },
		},
	}
}

func (s *MySQLStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&itemModel{}, &userModel{}, &orderModel{}); err != nil {
		return fmt.Errorf("migrate mysql: %w", err)
	}
	return nil
}

func (s *MySQLStore) Items() port.ItemStore   { return s.items }
func (s *MySQLStore) Users() port.UserStore   { return s.users }
func (s *MySQLStore) Orders() port.OrderStore { return s.orders }

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormTable maps one domain record kind D onto the gorm model M.
type gormTable[D any, M any] struct {
	db        *gorm.DB
	kind      domain.RecordKind
	toModel   func(D) M
	fromModel func(M) D
	setID     func(*M, int64)
}

func (t *gormTable[D, M]) Create(ctx context.Context, record D) (D, error) {
	m := t.toModel(record)
	t.setID(&m, 0)
	if err := t.db.WithContext(ctx).Create(&m).Error; err != nil {
		var zero D
		return zero, fmt.Errorf("insert %s: %w", t.kind, err)
	}
	return t.fromModel(m), nil
}

func (t *gormTable[D, M]) Find(ctx context.Context) ([]D, error) {
	var models []M
	if err := t.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("query %s: %w", t.kind, err)
	}
	out := make([]D, 0, len(models))
	for _, m := range models {
		out = append(out, t.fromModel(m))
	}
	return out, nil
}

func (t *gormTable[D, M]) FindByID(ctx context.Context, id int64) (D, error) {
	var m M
	err := t.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var zero D
		return zero, domain.NotFound(t.kind, id)
	}
	if err != nil {
		var zero D
		return zero, fmt.Errorf("query %s: %w", t.kind, err)
	}
	return t.fromModel(m), nil
}

func (t *gormTable[D, M]) UpdateByID(ctx context.Context, id int64, record D) error {
	m := t.toModel(record)
	t.setID(&m, id)
	result := t.db.WithContext(ctx).Model(&m).Select("*").Omit("id").Updates(&m)
	if result.Error != nil {
		return fmt.Errorf("update %s: %w", t.kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NotFound(t.kind, id)
	}
	return nil
}

func (t *gormTable[D, M]) DeleteByID(ctx context.Context, id int64) error {
	result := t.db.WithContext(ctx).Delete(new(M), id)
	if result.Error != nil {
		return fmt.Errorf("delete %s: %w", t.kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NotFound(t.kind, id)
	}
	return nil
}

func (t *gormTable[D, M]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.db.WithContext(ctx).Model(new(M)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", t.kind, err)
	}
	return n, nil
}

type mysqlItems struct {
	*gormTable[domain.Item, itemModel]
}

func (s *mysqlItems) DecrementStock(ctx context.Context, id int64, quantity int) (domain.Item, error) {
	var updated domain.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&itemModel{}).
			Where("id = ? AND stock >= ?", id, quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
		if result.Error != nil {
			return fmt.Errorf("decrement stock: %w", result.Error)
		}

		var m itemModel
		if err := tx.First(&m, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFound(domain.KindItem, id)
			}
			return fmt.Errorf("query item: %w", err)
		}
		if result.RowsAffected == 0 {
			return &domain.StockError{
				ItemID:    m.ID,
				ItemName:  m.ItemName,
				Available: m.Stock,
				Requested: quantity,
			}
		}

		updated = itemFromModel(m)
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}
	return updated, nil
}

func (s *mysqlItems) IncrementStock(ctx context.Context, id int64, quantity int) error {
	result := s.db.WithContext(ctx).Model(&itemModel{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("increment stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NotFound(domain.KindItem, id)
	}
	return nil
}

package domain

import "time"

// Order records one fulfilled order line. StockNumber is the purchased quantity at the
// time of the order, not a live reference to the item's stock.
type Order struct {
	ID          int64 `json:"id"`
	UserID      int64 `json:"user_id"`
	ItemID      int64 `json:"item_id"`
	StockNumber int   `json:"stock_number"`
}

// CartLine is one {item_id, count} pair of a checkout request.
type CartLine struct {
	ItemID int64 `json:"item_id"`
	Count  int   `json:"count"`
}

// Placement is the denormalized result of a fulfilled order line.
type Placement struct {
	Order Order       `json:"order"`
	User  UserSummary `json:"user"`
	Item  ItemSummary `json:"item"`
}

type CartResult struct {
	CreatedCount int         `json:"created_count"`
	Orders       []Placement `json:"orders"`
}

// OrderPlaced is emitted after an order line has been committed.
type OrderPlaced struct {
	EventID    string    `json:"event_id"`
	OrderID    int64     `json:"order_id"`
	UserID     int64     `json:"user_id"`
	ItemID     int64     `json:"item_id"`
	Quantity   int       `json:"quantity"`
	OccurredAt time.Time `json:"occurred_at"`
}

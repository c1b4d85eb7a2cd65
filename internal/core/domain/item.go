package domain

import "time"

type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"item_name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemSummary is the projection of an item embedded in order responses.
type ItemSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"item_name"`
}

func (i Item) Summary() ItemSummary {
	return ItemSummary{ID: i.ID, Name: i.Name}
}

// ItemPatch carries the fields of a partial update. Nil fields are left untouched.
type ItemPatch struct {
	Name  *string  `json:"item_name,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Stock *int     `json:"stock,omitempty"`
}

func (p ItemPatch) Apply(item Item) Item {
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Stock != nil {
		item.Stock = *p.Stock
	}
	return item
}

func (p ItemPatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return Invalid("item_name must not be empty")
	}
	if p.Price != nil && *p.Price < 0 {
		return Invalid("price must not be negative")
	}
	if p.Stock != nil && *p.Stock < 0 {
		return Invalid("stock must not be negative")
	}
	return nil
}

func (i Item) Validate() error {
	if i.Name == "" {
		return Invalid("item_name is required")
	}
	if i.Price < 0 {
		return Invalid("price must not be negative")
	}
	if i.Stock < 0 {
		return Invalid("stock must not be negative")
	}
	return nil
}

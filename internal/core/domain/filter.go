package domain

import "strings"

// ItemCriteria selects items by name, price range and stock range. Nil bounds and an empty
// name impose no constraint; all present constraints must hold.
type ItemCriteria struct {
	Name     string
	MinPrice *float64
	MaxPrice *float64
	MinStock *int
	MaxStock *int
}

func (c ItemCriteria) IsZero() bool {
	return c.Name == "" && c.MinPrice == nil && c.MaxPrice == nil && c.MinStock == nil && c.MaxStock == nil
}

func (c ItemCriteria) Match(item Item) bool {
	if c.Name != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(c.Name)) {
		return false
	}
	if c.MinPrice != nil && item.Price < *c.MinPrice {
		return false
	}
	if c.MaxPrice != nil && item.Price > *c.MaxPrice {
		return false
	}
	if c.MinStock != nil && item.Stock < *c.MinStock {
		return false
	}
	if c.MaxStock != nil && item.Stock > *c.MaxStock {
		return false
	}
	return true
}

// FilterItems returns the items matching c in their input order.
func FilterItems(items []Item, c ItemCriteria) []Item {
	if c.IsZero() {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if c.Match(item) {
			out = append(out, item)
		}
	}
	return out
}

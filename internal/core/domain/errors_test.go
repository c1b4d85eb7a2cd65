package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	stock := &StockError{ItemID: 1, ItemName: "Laptop", Available: 7, Requested: 8}
	assert.ErrorIs(t, stock, ErrInsufficientStock)
	assert.NotErrorIs(t, stock, ErrNotFound)
	assert.Equal(t, "insufficient stock for item Laptop. Available: 7, Requested: 8", stock.Error())

	nf := fmt.Errorf("lookup: %w", NotFound(KindItem, 42))
	assert.ErrorIs(t, nf, ErrNotFound)
	var target *NotFoundError
	assert.True(t, errors.As(nf, &target))
	assert.Equal(t, KindItem, target.Kind)
	assert.Equal(t, "item with id 42 not found", target.Error())

	assert.ErrorIs(t, Invalid("count must be positive, got %d", 0), ErrValidation)
}

func TestItemPatch_Apply(t *testing.T) {
	item := Item{ID: 1, Name: "Laptop", Price: 100, Stock: 3}
	got := ItemPatch{Stock: ptr(9)}.Apply(item)
	assert.Equal(t, Item{ID: 1, Name: "Laptop", Price: 100, Stock: 9}, got)

	assert.ErrorIs(t, ItemPatch{Price: ptr(-1.0)}.Validate(), ErrValidation)
	assert.NoError(t, ItemPatch{}.Validate())
}

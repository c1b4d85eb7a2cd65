package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

type RecordKind string

const (
	KindItem  RecordKind = "item"
	KindUser  RecordKind = "user"
	KindOrder RecordKind = "order"
)

type NotFoundError struct {
	Kind RecordKind
	ID   int64
}

func NotFound(kind RecordKind, id int64) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StockError reports a reservation that asked for more than the item holds.
type StockError struct {
	ItemID    int64
	ItemName  string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s. Available: %d, Requested: %d",
		e.ItemName, e.Available, e.Requested)
}

func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type ValidationError struct {
	Reason string
}

func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

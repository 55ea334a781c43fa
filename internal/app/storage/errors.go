package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("storage: not found")

// DuplicateError reports a unique constraint violation.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("storage: duplicate %s %q", e.Field, e.Value)
}

// StockError reports a stock adjustment that would drive quantity below zero.
type StockError struct {
	BookID    string
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("storage: insufficient stock for book %s (%d available)", e.BookID, e.Available)
}

// AsDuplicate unwraps err to a *DuplicateError.
func AsDuplicate(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	ok := errors.As(err, &dup)
	return dup, ok
}

// AsStock unwraps err to a *StockError.
func AsStock(err error) (*StockError, bool) {
	var se *StockError
	ok := errors.As(err, &se)
	return se, ok
}

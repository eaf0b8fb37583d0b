package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrOwnershipViolation = errors.New("not owned by acting user")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrBookUnavailable    = errors.New("book is inactive or out of stock")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrEmptyCart          = errors.New("no cart lines selected")
)

// LimitExceededError is returned when adding to a cart would push the user's
// total reservation for a book past its stock.
type LimitExceededError struct {
	BookID    string
	Stock     int
	Reserved  int
	Requested int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("stock limit exceeded for book %s: stock %d, already reserved %d, requested %d (short by %d)",
		e.BookID, e.Stock, e.Reserved, e.Requested, e.Shortfall())
}

func (e *LimitExceededError) Shortfall() int {
	return e.Requested - (e.Stock - e.Reserved)
}

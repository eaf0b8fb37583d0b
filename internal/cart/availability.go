package cart

import (
	"fmt"

	"github.com/mkhdev/bookshop/internal/domain"
)

// ReservedQuantity sums the quantities a user already holds in cart lines for
// one book.
func ReservedQuantity(lines []domain.CartLine, bookID string) int {
	total := 0
	for _, line := range lines {
		if line.BookID == bookID {
			total += line.Quantity
		}
	}
	return total
}

// CheckAvailability decides whether adding requested units of a book keeps the
// user's outstanding reservation within the book's stock. Only the acting
// user's own lines count: different users may optimistically over-reserve the
// same stock, and the conflict is settled by the checkout-time decrement.
func CheckAvailability(book *domain.Book, reserved, requested int) error {
	if requested <= 0 {
		return fmt.Errorf("requested quantity %d: %w", requested, domain.ErrInvalidQuantity)
	}
	if !book.Active || book.Stock == 0 {
		return fmt.Errorf("book %s: %w", book.ID, domain.ErrBookUnavailable)
	}
	if reserved+requested > book.Stock {
		return &domain.LimitExceededError{
			BookID:    book.ID,
			Stock:     book.Stock,
			Reserved:  reserved,
			Requested: requested,
		}
	}
	return nil
}

package domain

import "time"

// CartLine is one user's pending request to buy a quantity of one book.
// TotalPrice is never stored; it is recomputed from the book's current price
// on every read.
type CartLine struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	BookID     string    `json:"book_id"`
	BookTitle  string    `json:"book_title"`
	UnitPrice  int64     `json:"unit_price"`
	Quantity   int       `json:"quantity"`
	TotalPrice int64     `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

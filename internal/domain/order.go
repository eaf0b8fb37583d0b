package domain

import "time"

// OrderLine snapshots a cart line at checkout time. UnitPrice is frozen: later
// changes to the book's price never affect a finalized order.
type OrderLine struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	BookID     string `json:"book_id"`
	BookTitle  string `json:"book_title"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	TotalPrice int64  `json:"total_price"`
}

type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	TotalAmount int64       `json:"total_amount"`
	TotalPrice  int64       `json:"total_price"`
	Finalized   bool        `json:"finalized"`
	Lines       []OrderLine `json:"order_lines"`
	CreatedAt   time.Time   `json:"created_at"`
}

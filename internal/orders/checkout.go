package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mkhdev/bookshop/internal/domain"
)

// Checkout converts the user's selected cart lines into a finalized order.
// The whole conversion runs in one transaction: stock decrements, the order
// insert and the cart-line deletes either all land or none do.
func (r *OrderRepository) Checkout(ctx context.Context, userID string, cartLineIDs []string) (*domain.Order, error) {
	if len(cartLineIDs) == 0 {
		return nil, domain.ErrEmptyCart
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lines that don't exist or belong to someone else are silently
	// dropped here; an empty selection is reported as an empty cart.
	rows, err := tx.QueryContext(ctx, `
		SELECT id, book_id, quantity
		FROM cart_lines
		WHERE id = ANY($1) AND user_id = $2
		ORDER BY book_id
		FOR UPDATE
	`, pq.Array(cartLineIDs), userID)
	if err != nil {
		return nil, err
	}

	type selectedLine struct {
		lineID   string
		bookID   string
		quantity int
	}

	var selected []selectedLine
	for rows.Next() {
		var line selectedLine
		if err := rows.Scan(&line.lineID, &line.bookID, &line.quantity); err != nil {
			_ = rows.Close()
			return nil, err
		}
		selected = append(selected, line)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(selected) == 0 {
		return nil, domain.ErrEmptyCart
	}

	// Decrement stock per book, in a stable order so concurrent checkouts
	// touching the same books cannot deadlock.
	quantityByBook := make(map[string]int)
	var bookIDs []string
	for _, line := range selected {
		if _, ok := quantityByBook[line.bookID]; !ok {
			bookIDs = append(bookIDs, line.bookID)
		}
		quantityByBook[line.bookID] += line.quantity
	}
	sort.Strings(bookIDs)

	type bookSnapshot struct {
		title string
		price int64
	}
	snapshots := make(map[string]bookSnapshot, len(bookIDs))

	for _, bookID := range bookIDs {
		var snap bookSnapshot
		err := tx.QueryRowContext(ctx, `
			UPDATE books
			SET stock = stock - $2
			WHERE id = $1 AND active AND stock >= $2
			RETURNING title, price
		`, bookID, quantityByBook[bookID]).Scan(&snap.title, &snap.price)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, r.classifyStockFailure(ctx, tx, bookID)
			}
			return nil, err
		}
		snapshots[bookID] = snap
	}

	order := &domain.Order{
		ID:        uuid.New().String(),
		UserID:    userID,
		Finalized: true,
		CreatedAt: time.Now().UTC(),
	}

	for _, line := range selected {
		snap := snapshots[line.bookID]
		orderLine := domain.OrderLine{
			ID:         uuid.New().String(),
			OrderID:    order.ID,
			BookID:     line.bookID,
			BookTitle:  snap.title,
			Quantity:   line.quantity,
			UnitPrice:  snap.price,
			TotalPrice: int64(line.quantity) * snap.price,
		}
		order.Lines = append(order.Lines, orderLine)
		order.TotalAmount += int64(line.quantity)
		order.TotalPrice += orderLine.TotalPrice
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, total_price, finalized, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, order.ID, order.UserID, order.TotalAmount, order.TotalPrice, order.Finalized, order.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, book_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, line.ID, line.OrderID, line.BookID, line.Quantity, line.UnitPrice)
		if err != nil {
			return nil, err
		}
	}

	consumed := make([]string, 0, len(selected))
	for _, line := range selected {
		consumed = append(consumed, line.lineID)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE id = ANY($1)
	`, pq.Array(consumed))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return order, nil
}

// classifyStockFailure tells a vanished or retired book apart from a plain
// stock shortage after a conditional decrement matched no row.
func (r *OrderRepository) classifyStockFailure(ctx context.Context, tx *sql.Tx, bookID string) error {
	var active bool
	err := tx.QueryRowContext(ctx, `
		SELECT active FROM books WHERE id = $1
	`, bookID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("book %s: %w", bookID, domain.ErrBookUnavailable)
	}
	return fmt.Errorf("book %s: %w", bookID, domain.ErrInsufficientStock)
}

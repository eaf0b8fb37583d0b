package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/mkhdev/bookshop/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ListByUser returns one page of the user's orders, newest first, with
// order lines loaded in a single batch query.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int64, error) {
	var totalItems int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE user_id = $1
	`, userID).Scan(&totalItems)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, total_amount, total_price, finalized, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.TotalAmount, &order.TotalPrice, &order.Finalized, &order.CreatedAt); err != nil {
			return nil, 0, err
		}
		order.Lines = []domain.OrderLine{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, totalItems, nil
	}

	lineRows, err := r.db.QueryContext(ctx, `
		SELECT ol.id, ol.order_id, ol.book_id, b.title, ol.quantity, ol.unit_price
		FROM order_lines ol
		JOIN books b ON b.id = ol.book_id
		WHERE ol.order_id = ANY($1)
		ORDER BY ol.book_id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = lineRows.Close() }()

	for lineRows.Next() {
		var line domain.OrderLine
		if err := lineRows.Scan(&line.ID, &line.OrderID, &line.BookID, &line.BookTitle, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, 0, err
		}
		line.TotalPrice = int64(line.Quantity) * line.UnitPrice
		order := orderMap[line.OrderID]
		order.Lines = append(order.Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, 0, err
	}

	result := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *orderMap[id])
	}

	return result, totalItems, nil
}

// GetLast returns the user's most recent order.
func (r *OrderRepository) GetLast(ctx context.Context, userID string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_amount, total_price, finalized, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT 1
	`, userID).Scan(&order.ID, &order.UserID, &order.TotalAmount, &order.TotalPrice, &order.Finalized, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("last order for %s: %w", userID, domain.ErrNotFound)
		}
		return nil, err
	}

	order.Lines = []domain.OrderLine{}

	rows, err := r.db.QueryContext(ctx, `
		SELECT ol.id, ol.order_id, ol.book_id, b.title, ol.quantity, ol.unit_price
		FROM order_lines ol
		JOIN books b ON b.id = ol.book_id
		WHERE ol.order_id = $1
		ORDER BY ol.book_id
	`, order.ID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.BookID, &line.BookTitle, &line.Quantity, &line.UnitPrice); err != nil {
			return nil, err
		}
		line.TotalPrice = int64(line.Quantity) * line.UnitPrice
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

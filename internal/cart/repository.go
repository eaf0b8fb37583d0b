package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkhdev/bookshop/internal/domain"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// AddLine merges the requested quantity into the user's cart line for the
// book, creating the line on first add. The whole operation runs in one
// transaction with the book row locked, so concurrent adds by the same user
// cannot jointly pass the availability check. Locks are taken cart line
// first, then book, the same order checkout uses.
func (r *CartRepository) AddLine(ctx context.Context, userID, bookID string, quantity int) (*domain.CartLine, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var reserved int
	err = tx.QueryRowContext(ctx, `
		SELECT quantity
		FROM cart_lines
		WHERE user_id = $1 AND book_id = $2
		FOR UPDATE
	`, userID, bookID).Scan(&reserved)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	book := &domain.Book{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, title, author, price, stock, active, created_at
		FROM books
		WHERE id = $1
		FOR UPDATE
	`, bookID).Scan(&book.ID, &book.Title, &book.Author, &book.Price, &book.Stock, &book.Active, &book.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
		}
		return nil, err
	}

	if err := CheckAvailability(book, reserved, quantity); err != nil {
		return nil, err
	}

	line := &domain.CartLine{
		UserID:    userID,
		BookID:    bookID,
		BookTitle: book.Title,
		UnitPrice: book.Price,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO cart_lines (id, user_id, book_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, book_id) DO UPDATE
		SET quantity = cart_lines.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING id, quantity, created_at, updated_at
	`, uuid.New().String(), userID, bookID, quantity).Scan(&line.ID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return nil, err
	}
	line.TotalPrice = int64(line.Quantity) * book.Price

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return line, nil
}

func (r *CartRepository) GetLine(ctx context.Context, userID, lineID string) (*domain.CartLine, error) {
	line, err := scanLine(r.db.QueryRowContext(ctx, `
		SELECT cl.id, cl.user_id, cl.book_id, b.title, b.price, cl.quantity, cl.created_at, cl.updated_at
		FROM cart_lines cl
		JOIN books b ON b.id = cl.book_id
		WHERE cl.id = $1
	`, lineID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
		}
		return nil, err
	}
	if line.UserID != userID {
		return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrOwnershipViolation)
	}

	return line, nil
}

// ListByUser returns one page of the user's cart lines plus the aggregate
// total price of the whole cart (not just the page).
func (r *CartRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.CartLine, int64, int64, error) {
	var totalItems, cartTotal int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(cl.quantity * b.price), 0)
		FROM cart_lines cl
		JOIN books b ON b.id = cl.book_id
		WHERE cl.user_id = $1
	`, userID).Scan(&totalItems, &cartTotal)
	if err != nil {
		return nil, 0, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT cl.id, cl.user_id, cl.book_id, b.title, b.price, cl.quantity, cl.created_at, cl.updated_at
		FROM cart_lines cl
		JOIN books b ON b.id = cl.book_id
		WHERE cl.user_id = $1
		ORDER BY cl.created_at
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, 0, err
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, 0, 0, err
		}
		lines = append(lines, *line)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	return lines, totalItems, cartTotal, nil
}

// RemoveQuantity decreases an owned cart line by quantity. The quantity must
// be positive and at most the line's current quantity; a line reaching zero is
// deleted.
func (r *CartRepository) RemoveQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	line, err := lockLine(ctx, tx, userID, lineID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 || quantity > line.Quantity {
		return nil, fmt.Errorf("remove %d from line holding %d: %w", quantity, line.Quantity, domain.ErrInvalidQuantity)
	}

	line.Quantity -= quantity
	line.TotalPrice = int64(line.Quantity) * line.UnitPrice

	if line.Quantity == 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID)
	} else {
		err = tx.QueryRowContext(ctx, `
			UPDATE cart_lines SET quantity = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`, lineID, line.Quantity).Scan(&line.UpdatedAt)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return line, nil
}

// RemoveLine deletes an owned cart line entirely and returns its last state.
func (r *CartRepository) RemoveLine(ctx context.Context, userID, lineID string) (*domain.CartLine, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	line, err := lockLine(ctx, tx, userID, lineID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE id = $1`, lineID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return line, nil
}

// ClearByUser deletes every cart line the user owns and returns them.
func (r *CartRepository) ClearByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT cl.id, cl.user_id, cl.book_id, b.title, b.price, cl.quantity, cl.created_at, cl.updated_at
		FROM cart_lines cl
		JOIN books b ON b.id = cl.book_id
		WHERE cl.user_id = $1
		ORDER BY cl.created_at
	`, userID)
	if err != nil {
		return nil, err
	}

	var lines []domain.CartLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		lines = append(lines, *line)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	if len(lines) == 0 {
		return nil, fmt.Errorf("user %s has no cart lines: %w", userID, domain.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return lines, nil
}

func lockLine(ctx context.Context, tx *sql.Tx, userID, lineID string) (*domain.CartLine, error) {
	line, err := scanLine(tx.QueryRowContext(ctx, `
		SELECT cl.id, cl.user_id, cl.book_id, b.title, b.price, cl.quantity, cl.created_at, cl.updated_at
		FROM cart_lines cl
		JOIN books b ON b.id = cl.book_id
		WHERE cl.id = $1
		FOR UPDATE OF cl
	`, lineID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrNotFound)
		}
		return nil, err
	}
	if line.UserID != userID {
		return nil, fmt.Errorf("cart line %s: %w", lineID, domain.ErrOwnershipViolation)
	}

	return line, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (*domain.CartLine, error) {
	line := &domain.CartLine{}
	err := row.Scan(&line.ID, &line.UserID, &line.BookID, &line.BookTitle, &line.UnitPrice,
		&line.Quantity, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return nil, err
	}
	line.TotalPrice = int64(line.Quantity) * line.UnitPrice
	return line, nil
}

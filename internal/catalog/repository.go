package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkhdev/bookshop/internal/domain"
)

type BookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) GetByID(ctx context.Context, bookID string) (*domain.Book, error) {
	book := &domain.Book{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, author, price, stock, active, created_at
		FROM books
		WHERE id = $1
	`, bookID).Scan(&book.ID, &book.Title, &book.Author, &book.Price, &book.Stock, &book.Active, &book.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
		}
		return nil, err
	}

	return book, nil
}

func (r *BookRepository) GetStock(ctx context.Context, bookID string) (*domain.StockLevel, error) {
	stock := &domain.StockLevel{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, stock
		FROM books
		WHERE id = $1
	`, bookID).Scan(&stock.BookID, &stock.Title, &stock.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
		}
		return nil, err
	}

	return stock, nil
}

func (r *BookRepository) ListStock(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, stock
		FROM books
		WHERE active
		ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var levels []domain.StockLevel
	for rows.Next() {
		var stock domain.StockLevel
		if err := rows.Scan(&stock.BookID, &stock.Title, &stock.Stock); err != nil {
			return nil, err
		}
		levels = append(levels, stock)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return levels, nil
}

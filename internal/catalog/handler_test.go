package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mkhdev/bookshop/internal/domain"
)

type fakeBookStore struct {
	getByID   func(ctx context.Context, bookID string) (*domain.Book, error)
	getStock  func(ctx context.Context, bookID string) (*domain.StockLevel, error)
	listStock func(ctx context.Context) ([]domain.StockLevel, error)
}

func (f *fakeBookStore) GetByID(ctx context.Context, bookID string) (*domain.Book, error) {
	return f.getByID(ctx, bookID)
}

func (f *fakeBookStore) GetStock(ctx context.Context, bookID string) (*domain.StockLevel, error) {
	return f.getStock(ctx, bookID)
}

func (f *fakeBookStore) ListStock(ctx context.Context) ([]domain.StockLevel, error) {
	return f.listStock(ctx)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_HandleGetBook(t *testing.T) {
	t.Run("returns the book", func(t *testing.T) {
		store := &fakeBookStore{
			getByID: func(_ context.Context, bookID string) (*domain.Book, error) {
				if bookID != "book-1" {
					t.Errorf("unexpected book id: %s", bookID)
				}
				return &domain.Book{ID: bookID, Title: "Dune", Price: 1500, Stock: 10, Active: true}, nil
			},
		}
		handler := NewHandler(store, testLogger())

		mux := http.NewServeMux()
		mux.HandleFunc("GET /books/{bookId}", handler.HandleGetBook)

		req := httptest.NewRequest(http.MethodGet, "/books/book-1", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var book domain.Book
		if err := json.NewDecoder(rec.Body).Decode(&book); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if book.Title != "Dune" || book.Price != 1500 {
			t.Errorf("unexpected book: %+v", book)
		}
	})

	t.Run("maps missing book to 404", func(t *testing.T) {
		store := &fakeBookStore{
			getByID: func(_ context.Context, bookID string) (*domain.Book, error) {
				return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
			},
		}
		handler := NewHandler(store, testLogger())

		mux := http.NewServeMux()
		mux.HandleFunc("GET /books/{bookId}", handler.HandleGetBook)

		req := httptest.NewRequest(http.MethodGet, "/books/missing", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandler_HandleGetStock(t *testing.T) {
	t.Run("returns the stock level", func(t *testing.T) {
		store := &fakeBookStore{
			getStock: func(_ context.Context, bookID string) (*domain.StockLevel, error) {
				return &domain.StockLevel{BookID: bookID, Title: "Dune", Stock: 7}, nil
			},
		}
		handler := NewHandler(store, testLogger())

		mux := http.NewServeMux()
		mux.HandleFunc("GET /stock/{bookId}", handler.HandleGetStock)

		req := httptest.NewRequest(http.MethodGet, "/stock/book-1", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var level domain.StockLevel
		if err := json.NewDecoder(rec.Body).Decode(&level); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if level.Stock != 7 {
			t.Errorf("expected stock 7, got %d", level.Stock)
		}
	})
}

func TestHandler_HandleListStock(t *testing.T) {
	t.Run("returns all stock levels", func(t *testing.T) {
		store := &fakeBookStore{
			listStock: func(_ context.Context) ([]domain.StockLevel, error) {
				return []domain.StockLevel{
					{BookID: "book-1", Title: "Dune", Stock: 10},
					{BookID: "book-2", Title: "Hyperion", Stock: 3},
				}, nil
			},
		}
		handler := NewHandler(store, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/stock", nil)
		rec := httptest.NewRecorder()
		handler.HandleListStock(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var levels []domain.StockLevel
		if err := json.NewDecoder(rec.Body).Decode(&levels); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(levels) != 2 {
			t.Fatalf("expected 2 levels, got %d", len(levels))
		}
	})
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mkhdev/bookshop/internal/domain"
)

type bookStore interface {
	GetByID(ctx context.Context, bookID string) (*domain.Book, error)
	GetStock(ctx context.Context, bookID string) (*domain.StockLevel, error)
	ListStock(ctx context.Context) ([]domain.StockLevel, error)
}

type Handler struct {
	books  bookStore
	logger *slog.Logger
}

func NewHandler(books bookStore, logger *slog.Logger) *Handler {
	return &Handler{
		books:  books,
		logger: logger,
	}
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("bookId")
	if bookID == "" {
		h.writeError(w, http.StatusBadRequest, "missing book id")
		return
	}

	book, err := h.books.GetByID(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "book not found")
			return
		}
		h.logger.Error("failed to get book", "error", err, "book_id", bookID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("bookId")
	if bookID == "" {
		h.writeError(w, http.StatusBadRequest, "missing book id")
		return
	}

	stock, err := h.books.GetStock(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "book not found")
			return
		}
		h.logger.Error("failed to get stock", "error", err, "book_id", bookID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, stock)
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.books.ListStock(r.Context())
	if err != nil {
		h.logger.Error("failed to list stock", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, levels)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

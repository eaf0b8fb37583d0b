package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mkhdev/bookshop/internal/auth"
	"github.com/mkhdev/bookshop/internal/domain"
)

type cartStore interface {
	AddLine(ctx context.Context, userID, bookID string, quantity int) (*domain.CartLine, error)
	GetLine(ctx context.Context, userID, lineID string) (*domain.CartLine, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.CartLine, int64, int64, error)
	RemoveQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.CartLine, error)
	RemoveLine(ctx context.Context, userID, lineID string) (*domain.CartLine, error)
	ClearByUser(ctx context.Context, userID string) ([]domain.CartLine, error)
}

type Handler struct {
	store  cartStore
	logger *slog.Logger
}

func NewHandler(store cartStore, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

type addRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFrom(r.Context())

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookID == "" {
		h.writeError(w, http.StatusBadRequest, "missing book id")
		return
	}

	line, err := h.store.AddLine(r.Context(), userID, req.BookID, req.Quantity)
	if err != nil {
		h.respondError(w, err, "failed to add to cart", "user_id", userID, "book_id", req.BookID)
		return
	}

	h.logger.Info("cart line added", "user_id", userID, "book_id", req.BookID, "quantity", line.Quantity)
	h.writeJSON(w, http.StatusOK, line)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFrom(r.Context())
	lineID := r.PathValue("cartLineId")

	line, err := h.store.GetLine(r.Context(), userID, lineID)
	if err != nil {
		h.respondError(w, err, "failed to get cart line", "user_id", userID, "cart_line_id", lineID)
		return
	}

	h.writeJSON(w, http.StatusOK, line)
}

type listResponse struct {
	domain.Page[domain.CartLine]
	CartTotalPrice int64 `json:"cart_total_price"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFrom(r.Context())
	page, size := parsePage(r)

	lines, totalItems, cartTotal, err := h.store.ListByUser(r.Context(), userID, size, page*size)
	if err != nil {
		h.respondError(w, err, "failed to list cart", "user_id", userID)
		return
	}

	h.writeJSON(w, http.StatusOK, listResponse{
		Page: domain.Page[domain.CartLine]{
			Items:      lines,
			Page:       page,
			Size:       size,
			TotalItems: totalItems,
		},
		CartTotalPrice: cartTotal,
	})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFrom(r.Context())
	lineID := r.PathValue("cartLineId")

	var (
		line *domain.CartLine
		err  error
	)
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		quantity, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			h.writeError(w, http.StatusBadRequest, "invalid quantity")
			return
		}
		line, err = h.store.RemoveQuantity(r.Context(), userID, lineID, quantity)
	} else {
		line, err = h.store.RemoveLine(r.Context(), userID, lineID)
	}
	if err != nil {
		h.respondError(w, err, "failed to remove from cart", "user_id", userID, "cart_line_id", lineID)
		return
	}

	h.logger.Info("cart line removed", "user_id", userID, "cart_line_id", lineID, "remaining_quantity", line.Quantity)
	h.writeJSON(w, http.StatusOK, line)
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFrom(r.Context())

	lines, err := h.store.ClearByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err, "failed to clear cart", "user_id", userID)
		return
	}

	h.logger.Info("cart cleared", "user_id", userID, "removed_lines", len(lines))
	h.writeJSON(w, http.StatusOK, lines)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, logMsg string, args ...any) {
	var limitErr *domain.LimitExceededError
	switch {
	case errors.As(err, &limitErr):
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":     limitErr.Error(),
			"shortfall": limitErr.Shortfall(),
		})
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOwnershipViolation):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBookUnavailable):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(logMsg, append([]any{"error", err}, args...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parsePage(r *http.Request) (page, size int) {
	page, size = 0, 20
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			page = v
		}
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			size = v
		}
	}
	return page, size
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

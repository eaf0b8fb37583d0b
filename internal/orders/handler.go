package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mkhdev/bookshop/internal/auth"
	"github.com/mkhdev/bookshop/internal/domain"
	"github.com/mkhdev/bookshop/internal/telemetry"
)

type orderStore interface {
	Checkout(ctx context.Context, userID string, cartLineIDs []string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int64, error)
	GetLast(ctx context.Context, userID string) (*domain.Order, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	store    orderStore
	producer eventPublisher
	logger   *slog.Logger
}

func NewHandler(store orderStore, producer eventPublisher, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		producer: producer,
		logger:   logger,
	}
}

type checkoutRequest struct {
	CartLineIDs []string `json:"cart_line_ids"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFrom(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.store.Checkout(r.Context(), userID, req.CartLineIDs)
	if err != nil {
		if reason := checkoutFailureReason(err); reason != "" {
			telemetry.CountCheckoutFailure(r.Context(), reason)
		}
		h.respondError(w, err, "checkout failed", "user_id", userID)
		return
	}

	telemetry.CountOrderPlaced(r.Context(), order.TotalAmount)

	if h.producer != nil {
		event := domain.OrderPlacedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			Lines:       order.Lines,
			TotalAmount: order.TotalAmount,
			TotalPrice:  order.TotalPrice,
			Timestamp:   time.Now().UTC(),
		}
		if err := h.producer.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order placed", "order_id", order.ID, "user_id", userID, "total_price", order.TotalPrice)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFrom(r.Context())
	page, size := parsePage(r)

	result, totalItems, err := h.store.ListByUser(r.Context(), userID, size, page*size)
	if err != nil {
		h.respondError(w, err, "failed to list orders", "user_id", userID)
		return
	}

	h.writeJSON(w, http.StatusOK, domain.Page[domain.Order]{
		Items:      result,
		Page:       page,
		Size:       size,
		TotalItems: totalItems,
	})
}

func (h *Handler) HandleGetLast(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFrom(r.Context())

	order, err := h.store.GetLast(r.Context(), userID)
	if err != nil {
		h.respondError(w, err, "failed to get last order", "user_id", userID)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func checkoutFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrBookUnavailable):
		return "book_unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "book_not_found"
	default:
		return ""
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error, logMsg string, args ...any) {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		h.writeError(w, http.StatusConflict, err.Error())
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

package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkhdev/bookshop/internal/auth"
	"github.com/mkhdev/bookshop/internal/domain"
)

type fakeOrderStore struct {
	checkout   func(ctx context.Context, userID string, cartLineIDs []string) (*domain.Order, error)
	listByUser func(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int64, error)
	getLast    func(ctx context.Context, userID string) (*domain.Order, error)
}

func (f *fakeOrderStore) Checkout(ctx context.Context, userID string, cartLineIDs []string) (*domain.Order, error) {
	return f.checkout(ctx, userID, cartLineIDs)
}

func (f *fakeOrderStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, int64, error) {
	return f.listByUser(ctx, userID, limit, offset)
}

func (f *fakeOrderStore) GetLast(ctx context.Context, userID string) (*domain.Order, error) {
	return f.getLast(ctx, userID)
}

type fakePublisher struct {
	published []domain.OrderPlacedEvent
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event.(domain.OrderPlacedEvent))
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), userID))
}

func TestHandler_HandleCheckout(t *testing.T) {
	t.Run("places an order and publishes the event", func(t *testing.T) {
		order := &domain.Order{
			ID:     "order-1",
			UserID: "alice",
			Lines: []domain.OrderLine{
				{ID: "ol-1", OrderID: "order-1", BookID: "book-1", BookTitle: "Dune", Quantity: 2, UnitPrice: 1500, TotalPrice: 3000},
			},
			TotalAmount: 2,
			TotalPrice:  3000,
			Finalized:   true,
		}
		store := &fakeOrderStore{
			checkout: func(_ context.Context, userID string, cartLineIDs []string) (*domain.Order, error) {
				if userID != "alice" {
					t.Errorf("unexpected user: %s", userID)
				}
				if len(cartLineIDs) != 2 || cartLineIDs[0] != "line-1" {
					t.Errorf("unexpected cart line ids: %v", cartLineIDs)
				}
				return order, nil
			},
		}
		publisher := &fakePublisher{}
		handler := NewHandler(store, publisher, testLogger())

		req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cart_line_ids":["line-1","line-2"]}`)), "alice")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var got domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.ID != "order-1" || got.TotalPrice != 3000 || !got.Finalized {
			t.Errorf("unexpected order: %+v", got)
		}

		if len(publisher.published) != 1 {
			t.Fatalf("expected 1 published event, got %d", len(publisher.published))
		}
		event := publisher.published[0]
		if event.OrderID != "order-1" || event.UserID != "alice" || event.TotalPrice != 3000 {
			t.Errorf("unexpected event: %+v", event)
		}
	})

	t.Run("still returns 201 when publishing fails", func(t *testing.T) {
		store := &fakeOrderStore{
			checkout: func(_ context.Context, _ string, _ []string) (*domain.Order, error) {
				return &domain.Order{ID: "order-1", UserID: "alice", Finalized: true}, nil
			},
		}
		publisher := &fakePublisher{err: fmt.Errorf("broker down")}
		handler := NewHandler(store, publisher, testLogger())

		req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cart_line_ids":["line-1"]}`)), "alice")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("works without a producer", func(t *testing.T) {
		store := &fakeOrderStore{
			checkout: func(_ context.Context, _ string, _ []string) (*domain.Order, error) {
				return &domain.Order{ID: "order-1", UserID: "alice", Finalized: true}, nil
			},
		}
		handler := NewHandler(store, nil, testLogger())

		req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cart_line_ids":["line-1"]}`)), "alice")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("maps empty cart to 400", func(t *testing.T) {
		store := &fakeOrderStore{
			checkout: func(_ context.Context, _ string, _ []string) (*domain.Order, error) {
				return nil, domain.ErrEmptyCart
			},
		}
		handler := NewHandler(store, nil, testLogger())

		req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cart_line_ids":[]}`)), "alice")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("maps insufficient stock to 409", func(t *testing.T) {
		store := &fakeOrderStore{
			checkout: func(_ context.Context, _ string, _ []string) (*domain.Order, error) {
				return nil, fmt.Errorf("book book-1: %w", domain.ErrInsufficientStock)
			},
		}
		handler := NewHandler(store, nil, testLogger())

		req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"cart_line_ids":["line-1"]}`)), "alice")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		handler := NewHandler(&fakeOrderStore{}, nil, testLogger())

		req := asUser(httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{`)), "alice")
		rec := httptest.NewRecorder()

		handler.HandleCheckout(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestHandler_HandleList(t *testing.T) {
	t.Run("returns a page of orders", func(t *testing.T) {
		store := &fakeOrderStore{
			listByUser: func(_ context.Context, userID string, limit, offset int) ([]domain.Order, int64, error) {
				if userID != "alice" || limit != 5 || offset != 10 {
					t.Errorf("unexpected args: %s %d %d", userID, limit, offset)
				}
				return []domain.Order{{ID: "order-1", UserID: userID}}, 11, nil
			},
		}
		handler := NewHandler(store, nil, testLogger())

		req := asUser(httptest.NewRequest(http.MethodGet, "/orders?page=2&size=5", nil), "alice")
		rec := httptest.NewRecorder()

		handler.HandleList(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var page domain.Page[domain.Order]
		if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if page.TotalItems != 11 || page.Page != 2 || page.Size != 5 {
			t.Errorf("unexpected page envelope: %+v", page)
		}
		if len(page.Items) != 1 || page.Items[0].ID != "order-1" {
			t.Errorf("unexpected items: %+v", page.Items)
		}
	})
}

func TestHandler_HandleGetLast(t *testing.T) {
	t.Run("returns the most recent order", func(t *testing.T) {
		store := &fakeOrderStore{
			getLast: func(_ context.Context, userID string) (*domain.Order, error) {
				return &domain.Order{ID: "order-9", UserID: userID}, nil
			},
		}
		handler := NewHandler(store, nil, testLogger())

		req := asUser(httptest.NewRequest(http.MethodGet, "/orders/last", nil), "alice")
		rec := httptest.NewRecorder()

		handler.HandleGetLast(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("maps no orders to 404", func(t *testing.T) {
		store := &fakeOrderStore{
			getLast: func(_ context.Context, userID string) (*domain.Order, error) {
				return nil, fmt.Errorf("last order for %s: %w", userID, domain.ErrNotFound)
			},
		}
		handler := NewHandler(store, nil, testLogger())

		req := asUser(httptest.NewRequest(http.MethodGet, "/orders/last", nil), "alice")
		rec := httptest.NewRecorder()

		handler.HandleGetLast(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

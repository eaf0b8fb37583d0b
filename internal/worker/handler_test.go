package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkhdev/bookshop/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func placedEvent() domain.OrderPlacedEvent {
	return domain.OrderPlacedEvent{
		OrderID: "order-1",
		UserID:  "alice",
		Lines: []domain.OrderLine{
			{BookID: "book-1", BookTitle: "Dune", Quantity: 2, UnitPrice: 1550, TotalPrice: 3100},
		},
		TotalAmount: 2,
		TotalPrice:  3100,
		Timestamp:   time.Now().UTC(),
	}
}

func TestNotificationHandler_Handle(t *testing.T) {
	t.Run("sends a confirmation email with the receipt", func(t *testing.T) {
		var got map[string]string
		emailService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/send" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode email request: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer emailService.Close()

		handler := NewNotificationHandler(emailService.URL, emailService.Client(), testLogger())

		payload, _ := json.Marshal(placedEvent())
		if err := handler.Handle(context.Background(), payload); err != nil {
			t.Fatalf("handle failed: %v", err)
		}

		if got["to"] != "alice@example.com" {
			t.Errorf("unexpected recipient: %s", got["to"])
		}
		if !strings.Contains(got["subject"], "order-1") {
			t.Errorf("subject missing order id: %s", got["subject"])
		}
		if !strings.Contains(got["body"], "2 x Dune at $15.50 each") {
			t.Errorf("body missing line item: %s", got["body"])
		}
		if !strings.Contains(got["body"], "total $31.00") {
			t.Errorf("body missing total: %s", got["body"])
		}
	})

	t.Run("fails when the email service errors", func(t *testing.T) {
		emailService := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer emailService.Close()

		handler := NewNotificationHandler(emailService.URL, emailService.Client(), testLogger())

		payload, _ := json.Marshal(placedEvent())
		if err := handler.Handle(context.Background(), payload); err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("rejects a malformed payload", func(t *testing.T) {
		handler := NewNotificationHandler("http://localhost:0", http.DefaultClient, testLogger())

		if err := handler.Handle(context.Background(), []byte("{")); err == nil {
			t.Fatal("expected an error")
		}
	})
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mkhdev/bookshop/internal/auth"
	"github.com/mkhdev/bookshop/internal/cart"
	"github.com/mkhdev/bookshop/internal/catalog"
	"github.com/mkhdev/bookshop/internal/messaging"
	"github.com/mkhdev/bookshop/internal/orders"
	"github.com/mkhdev/bookshop/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_ = godotenv.Load()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "bookshop", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("bookshop", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := db.Exec("SET search_path TO bookshop"); err != nil {
		logger.Error("failed to set search_path", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")
		producer = messaging.NewProducer(brokers, "order.placed")
		defer func() { _ = producer.Close() }()
	}

	bookRepo := catalog.NewBookRepository(db)
	cartRepo := cart.NewCartRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	catalogHandler := catalog.NewHandler(bookRepo, logger)
	cartHandler := cart.NewHandler(cartRepo, logger)

	var orderHandler *orders.Handler
	if producer != nil {
		orderHandler = orders.NewHandler(orderRepo, producer, logger)
	} else {
		orderHandler = orders.NewHandler(orderRepo, nil, logger)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /books/{bookId}", telemetry.WithHTTPRoute(catalogHandler.HandleGetBook))
	mux.HandleFunc("GET /stock", telemetry.WithHTTPRoute(catalogHandler.HandleListStock))
	mux.HandleFunc("GET /stock/{bookId}", telemetry.WithHTTPRoute(catalogHandler.HandleGetStock))

	userOnly := func(h http.HandlerFunc) http.Handler {
		return auth.RequireUser(telemetry.WithHTTPRoute(h))
	}

	mux.Handle("POST /cart/add", userOnly(cartHandler.HandleAdd))
	mux.Handle("GET /cart", userOnly(cartHandler.HandleList))
	mux.Handle("DELETE /cart/all", userOnly(cartHandler.HandleClear))
	mux.Handle("GET /cart/{cartLineId}", userOnly(cartHandler.HandleGet))
	mux.Handle("DELETE /cart/{cartLineId}", userOnly(cartHandler.HandleRemove))

	mux.Handle("POST /orders", userOnly(orderHandler.HandleCheckout))
	mux.Handle("GET /orders", userOnly(orderHandler.HandleList))
	mux.Handle("GET /orders/last", userOnly(orderHandler.HandleGetLast))

	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(mux, "bookshop",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting bookshop server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

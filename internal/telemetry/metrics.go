package telemetry

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider.
// It returns an http.Handler for the /metrics endpoint and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(newResource(serviceName, serviceVersion)),
	)

	otel.SetMeterProvider(mp)

	return promhttp.Handler(), mp.Shutdown, nil
}

var (
	checkoutOnce     sync.Once
	ordersPlaced     metric.Int64Counter
	booksSold        metric.Int64Counter
	checkoutFailures metric.Int64Counter
)

func checkoutInstruments() {
	checkoutOnce.Do(func() {
		meter := otel.Meter("bookshop/orders")
		ordersPlaced, _ = meter.Int64Counter("bookshop.orders.placed",
			metric.WithDescription("Number of orders placed"))
		booksSold, _ = meter.Int64Counter("bookshop.orders.books_sold",
			metric.WithDescription("Total book copies sold across all orders"))
		checkoutFailures, _ = meter.Int64Counter("bookshop.orders.checkout_failures",
			metric.WithDescription("Checkouts rejected before an order was created"))
	})
}

func CountOrderPlaced(ctx context.Context, copies int64) {
	checkoutInstruments()
	ordersPlaced.Add(ctx, 1)
	booksSold.Add(ctx, copies)
}

func CountCheckoutFailure(ctx context.Context, reason string) {
	checkoutInstruments()
	checkoutFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

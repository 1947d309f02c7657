package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusHandler builds a Prometheus scrape endpoint backed by a fresh
// OTel MeterProvider and registry, and returns both the handler and the
// meter instruments should be created from to be scraped through it. Each
// call gets an independent registry, so asyncgitd's metrics-serve mode
// never conflicts with an OTLP-exporting MeterProvider in the same
// process.
func PrometheusHandler() (http.Handler, metric.Meter, error) {
	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), mp.Meter(meterName), nil
}

package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/chatwarden/chatwarden/internal/moderation"
)

// Logger is the structured audit stream logger.
var Logger *zap.Logger

// Init sets up the zap logger, registers engine metrics and installs a tracer
// provider. Returns the metrics HTTP server; the caller owns its lifecycle.
func Init(ctx context.Context, listenAddr string) (*http.Server, error) {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return nil, err
	}

	moderation.RegisterMetrics(prometheus.DefaultRegisterer)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return server, nil
}

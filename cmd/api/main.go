package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/medpipe/patient-summarizer/internal/adapters/http"
	"github.com/medpipe/patient-summarizer/internal/bootstrap"
	"github.com/medpipe/patient-summarizer/internal/config"
	"github.com/medpipe/patient-summarizer/internal/observability/logging"
	"github.com/medpipe/patient-summarizer/internal/observability/metrics"
)

const serviceName = "patient-summarizer-api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(
		app.IngestUC,
		app.SummaryUC,
		app.Patients,
		app.Documents,
		app.Summaries,
		httpadapter.RouterConfig{
			RateLimitRPS:     cfg.APIRateLimitRPS,
			RateLimitBurst:   cfg.APIRateLimitBurst,
			MaxInFlight:      cfg.APIMaxInFlight,
			BackpressureWait: time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		},
	)

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	mux.Handle("/", httpMetrics.Middleware(serviceName, router.Handler()))

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
}

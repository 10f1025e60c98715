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

	httpadapter "github.com/mkleiva/byggklima/internal/adapters/http"
	"github.com/mkleiva/byggklima/internal/bootstrap"
	"github.com/mkleiva/byggklima/internal/config"
	"github.com/mkleiva/byggklima/internal/observability/logging"
	"github.com/mkleiva/byggklima/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	m := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.IngestUC, app.MappingUC, app.AnalystUC, app.VerifyUC,
		app.Datasets, app.Runs, app.Takeoffs, app.Reports,
		m, httpadapter.Options{
			ServiceName:         "api",
			RateLimitRPS:        cfg.APIRateLimitRPS,
			RateLimitBurst:      cfg.APIRateLimitBurst,
			MaxInFlight:         cfg.APIMaxInFlight,
			MaxQueueWait:        time.Duration(cfg.APIMaxQueueWaitMS) * time.Millisecond,
			DefaultTolerancePct: cfg.VerificationTolerancePct,
		},
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      http.MaxBytesHandler(router, int64(cfg.APIUploadLimitMB)<<20),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}

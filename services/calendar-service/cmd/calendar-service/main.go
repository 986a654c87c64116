package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avery-cole/frontdesk/libs/config"
	"github.com/avery-cole/frontdesk/libs/db"
	"github.com/avery-cole/frontdesk/libs/httpx"
	"github.com/avery-cole/frontdesk/libs/kafkax"
	otelx "github.com/avery-cole/frontdesk/libs/otel"
	"github.com/avery-cole/frontdesk/libs/runtime"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/handlers"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/outbox"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/staffdir"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "calendar-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewCalendarRepository(pool, outboxRepo)

	directory, err := staffdir.NewDirectoryProvider(logger, config.String("STAFF_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("staff directory init failed; using static provider", "err", err)
		directory = staffdir.NewStaticProvider()
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	scheduleHandler := handlers.NewScheduleHandler(repo, directory, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/appointments", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			scheduleHandler.Range(w, r)
		default:
			scheduleHandler.Create(w, r)
		}
	})
	mux.HandleFunc("/api/v1/appointments/today", scheduleHandler.Today)
	mux.HandleFunc("/api/v1/appointments/upcoming", scheduleHandler.Upcoming)
	mux.HandleFunc("/api/v1/appointments/overwrite", scheduleHandler.Overwrite)
	mux.HandleFunc("/api/v1/appointments/cancel", scheduleHandler.Cancel)
	mux.HandleFunc("/api/v1/slots", scheduleHandler.Slots)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "calendar")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

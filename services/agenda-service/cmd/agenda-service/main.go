package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avery-cole/frontdesk/libs/config"
	"github.com/avery-cole/frontdesk/libs/httpx"
	"github.com/avery-cole/frontdesk/libs/kafkax"
	otelx "github.com/avery-cole/frontdesk/libs/otel"
	"github.com/avery-cole/frontdesk/libs/runtime"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/board"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/calendarapi"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/consumer"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/handlers"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/workflow"
)

func main() {
	service := config.String("SERVICE_NAME", "agenda-service")
	port, err := config.Port("PORT", "8085")
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

	calendarURL := config.String("CALENDAR_URL", "http://calendar-service:8084")
	client := calendarapi.New(calendarURL)
	liveBoard := board.New(client)

	submissionTTL := 15 * time.Minute
	if v, err := strconv.Atoi(config.String("SUBMISSION_TTL_SECONDS", "900")); err == nil && v > 0 {
		submissionTTL = time.Duration(v) * time.Second
	}
	subs := workflow.NewStore(submissionTTL)

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
	}

	// Event intake keeps the board converging even when this instance
	// did not serve the mutation.
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" && rdb != nil {
		inbox := consumer.NewInbox(rdb, 24*time.Hour)
		fold := consumer.BoardFold(logger, liveBoard)
		for _, topic := range []string{
			config.String("KAFKA_TOPIC_BOOKED", "calendar.appointment.booked.v1"),
			config.String("KAFKA_TOPIC_CANCELLED", "calendar.appointment.cancelled.v1"),
			config.String("KAFKA_TOPIC_OVERWRITTEN", "calendar.appointment.overwritten.v1"),
		} {
			if strings.TrimSpace(topic) == "" {
				continue
			}
			c := consumer.New(logger, inbox, consumer.Config{
				Brokers: brokers,
				GroupID: config.String("KAFKA_GROUP_ID", "agenda-service"),
				Topic:   topic,
			}, fold)
			go c.Run(ctx)
		}
	}

	agenda := handlers.NewAgendaHandler(client, liveBoard, subs, logger)

	readiness := []runtime.ReadyCheck{{
		Name: "calendar", Check: calendarReadyCheck(calendarURL),
	}}
	if rdb != nil {
		readiness = append(readiness, runtime.ReadyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		})
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readiness = append(readiness, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	mux := runtime.NewBaseMuxWithReady(readiness...)
	mux.HandleFunc("/api/v1/board", agenda.ViewBoard)
	mux.HandleFunc("/api/v1/board/day", agenda.ViewDay)
	mux.HandleFunc("/api/v1/appointments", agenda.Submit)
	mux.HandleFunc("/api/v1/appointments/overwrite", agenda.ResolveConflict)
	mux.HandleFunc("/api/v1/appointments/reschedule", agenda.Reschedule)
	mux.HandleFunc("/api/v1/slots", agenda.Slots)
	mux.HandleFunc("/api/v1/stats", agenda.Stats)

	bodyLimit := int64(1 << 20)
	if v, err := strconv.Atoi(config.String("REQUEST_BODY_LIMIT_BYTES", "1048576")); err == nil && v > 0 {
		bodyLimit = int64(v)
	}
	requestTimeout := 15 * time.Second
	if v, err := strconv.Atoi(config.String("REQUEST_TIMEOUT_SECONDS", "15")); err == nil && v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}
	limitPerMinute := 120
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "120")); err == nil && v > 0 {
		limitPerMinute = v
	}

	var rateLimitMW httpx.Middleware
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "agenda-rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "agenda")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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

func calendarReadyCheck(baseURL string) func(context.Context) error {
	healthURL := strings.TrimRight(baseURL, "/") + "/healthz"
	client := &http.Client{Timeout: 2 * time.Second}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		return nil
	}
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

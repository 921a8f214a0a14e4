package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinislot/clinislot/libs/config"
	"github.com/clinislot/clinislot/libs/db"
	"github.com/clinislot/clinislot/libs/httpx"
	"github.com/clinislot/clinislot/libs/kafkax"
	otelx "github.com/clinislot/clinislot/libs/otel"
	"github.com/clinislot/clinislot/libs/runtime"
	"github.com/clinislot/clinislot/services/booking-service/internal/handlers"
	"github.com/clinislot/clinislot/services/booking-service/internal/ledger"
	"github.com/clinislot/clinislot/services/booking-service/internal/outbox"
	"github.com/clinislot/clinislot/services/booking-service/internal/schedule"
	"github.com/clinislot/clinislot/services/booking-service/internal/storage"
)

func loadSchedule(logger *slog.Logger) schedule.Config {
	sessions, err := schedule.ParseSessions(config.String("SESSIONS", "Morning=600-900,Evening=1080-1320"))
	if err != nil {
		logger.Error("invalid SESSIONS", "err", err)
		panic(err)
	}
	closed, err := schedule.ParseWeekdays(config.String("CLOSED_WEEKDAYS", "6"))
	if err != nil {
		logger.Error("invalid CLOSED_WEEKDAYS", "err", err)
		panic(err)
	}
	cfg := schedule.Config{
		Sessions:       sessions,
		SlotMinutes:    config.Int("SLOT_MINUTES", 20),
		WindowDays:     config.Int("BOOKING_WINDOW_DAYS", 3),
		ClosedWeekdays: closed,
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid schedule configuration", "err", err)
		panic(err)
	}
	return cfg
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8080")
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

	tokenSecret, err := config.RequiredString("TOKEN_SECRET")
	if err != nil {
		panic(err)
	}

	scheduleCfg := loadSchedule(logger)

	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewAppointmentRepository(pool, outboxRepo)
	bookingLedger := ledger.New(scheduleCfg, repo, logger, ledger.Options{
		OnePerOwner:  config.Bool("ONE_BOOKING_PER_OWNER", true),
		StoreTimeout: time.Duration(config.Int("STORE_TIMEOUT_SECONDS", 5)) * time.Second,
	})

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   kafkaBrokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(bookingLedger, logger, tokenSecret)
	identityHandler := handlers.NewIdentityHandler(
		logger,
		tokenSecret,
		config.String("OPERATOR_PASSPHRASE_HASH", ""),
		time.Duration(config.Int("TOKEN_TTL_HOURS", 720))*time.Hour,
	)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if kafkaBrokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)})
	}
	mux := runtime.NewBaseMux(readyChecks...)
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/book", bookingHandler.Book)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/identity", identityHandler.Issue)
	mux.HandleFunc("/api/v1/operator/login", identityHandler.OperatorLogin)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   splitList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   splitList(config.String("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS")),
			AllowedHeaders:   splitList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id")),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(time.Duration(config.Int("REQUEST_TIMEOUT_SECONDS", 10))*time.Second),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "booking")

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

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vovarama1992/go-utils/httputil"
	"github.com/Vovarama1992/go-utils/logger"

	"github.com/Vovarama1992/kashmiri_translator/internal/config"
	"github.com/Vovarama1992/kashmiri_translator/internal/delivery"
	"github.com/Vovarama1992/kashmiri_translator/internal/diagnostics"
	"github.com/Vovarama1992/kashmiri_translator/internal/inference"
	"github.com/Vovarama1992/kashmiri_translator/internal/infra"
	"github.com/Vovarama1992/kashmiri_translator/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const serviceName = "kashmiri_translator"

func main() {

	// =========================================================================
	// ENV / LOGGER
	// =========================================================================

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	baseLogger, _ := zap.NewProduction()
	defer baseLogger.Sync()
	zl := logger.NewZapLogger(baseLogger.Sugar())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// =========================================================================
	// FAILURE SINKS
	// =========================================================================

	var sinks []diagnostics.Sink

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			log.Fatalf("db ping failed: %v", err)
		}
		if err := diagnostics.EnsureSchema(pingCtx, db); err != nil {
			log.Fatalf("failed to prepare failures table: %v", err)
		}
		cancel()

		sinks = append(sinks, diagnostics.NewPostgresSink(db))
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChatID != 0 {
		bot, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			log.Fatalf("failed to init telegram bot: %v", err)
		}
		sinks = append(sinks, diagnostics.NewTelegramSink(bot, cfg.TelegramAdminChatID))
	}

	diag := diagnostics.NewService(baseLogger, sinks...)

	// =========================================================================
	// INFRASTRUCTURE
	// =========================================================================

	deps := session.Deps{
		Client: inference.NewGradioClient(inference.Options{
			HubURL:     cfg.HFHubURL,
			Token:      cfg.HFToken,
			HTTPClient: &http.Client{Timeout: cfg.InferenceTimeout},
			Logger:     baseLogger,
		}),
		Diag:      diag,
		AudioHTTP: &http.Client{Timeout: time.Minute},
		Log:       baseLogger,
	}

	if cfg.S3.Enabled() {
		s3Client, err := infra.NewS3Client(ctx, cfg.S3)
		if err != nil {
			log.Fatalf("failed to init s3: %v", err)
		}
		deps.Mirror = s3Client
	}

	sessions := session.NewRegistry(deps)
	defer sessions.CloseAll()

	// =========================================================================
	// HTTP ROUTER
	// =========================================================================

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	handler := delivery.NewHandler(sessions, zl)
	delivery.RegisterRoutes(r, handler, cfg.SubmitRateLimit)

	r.With(httputil.RecoverMiddleware).Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("pong"))
	})

	// =========================================================================
	// BACKGROUND JOBS
	// =========================================================================

	go sessions.RunJanitor(ctx, 5*time.Minute, cfg.SessionIdleTTL)

	// =========================================================================
	// START SERVER
	// =========================================================================

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zl.Log(logger.LogEntry{
		Level:   "info",
		Message: "listening at " + addr,
		Service: serviceName,
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

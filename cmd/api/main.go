package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lumohealth/intake-ai-platform/internal/api/handlers"
	"github.com/lumohealth/intake-ai-platform/internal/api/router"
	"github.com/lumohealth/intake-ai-platform/internal/chat"
	appconfig "github.com/lumohealth/intake-ai-platform/internal/config"
	"github.com/lumohealth/intake-ai-platform/internal/consultation"
	"github.com/lumohealth/intake-ai-platform/internal/copilot"
	"github.com/lumohealth/intake-ai-platform/internal/intake"
	"github.com/lumohealth/intake-ai-platform/internal/knowledge"
	"github.com/lumohealth/intake-ai-platform/internal/llm"
	"github.com/lumohealth/intake-ai-platform/internal/memory"
	"github.com/lumohealth/intake-ai-platform/internal/notify"
	"github.com/lumohealth/intake-ai-platform/internal/observability/metrics"
	"github.com/lumohealth/intake-ai-platform/internal/patients"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting intake-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	db, err := sql.Open("sqlite3", cfg.DatabasePath+"?_foreign_keys=on")
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	client, embedder, err := buildLLM(cfg, logger)
	if err != nil {
		logger.Error("failed to build LLM client", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unavailable, history cache falls back to the database", "error", err)
			rdb = nil
		}
	}

	registry := prometheus.NewRegistry()
	intakeMetrics := metrics.NewIntakeMetrics(registry)

	if embedder != nil {
		embedder = llm.NewTimedEmbedder(embedder, intakeMetrics)
	}

	// Repositories and services
	store := chat.NewStore(db)
	patientsRepo := patients.NewRepository(db)
	memSvc := memory.NewService(memory.NewRepository(db), llm.NewTimedClient(client, "extract", intakeMetrics), embedder, cfg.LLMModel, logger)
	memSvc.UseMetrics(intakeMetrics)
	knowSvc := knowledge.NewService(knowledge.NewRepository(db), embedder, logger)

	var notifier consultation.PaidNotifier
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sender != nil {
		if svc := notify.NewService(sender, patientsRepo, cfg.DoctorEmail, cfg.DoctorName, logger); svc != nil {
			notifier = svc
		}
	}

	consultSvc := consultation.NewService(consultation.NewRepository(db), store, patientsRepo, memSvc, notifier, cfg.ConsultationFeeCents, logger)
	generator := intake.NewGenerator(llm.NewTimedClient(client, "generate", intakeMetrics), cfg.DoctorName, logger)
	inquiries := intake.NewInquiryState(db, store, cfg.MaxMedicalInquiries)
	seeder := intake.NewIntroSeeder(store, generator, inquiries, logger)
	copilotSvc := copilot.NewService(llm.NewTimedClient(client, "copilot", intakeMetrics), embedder, patientsRepo, memSvc, knowSvc, store, consultSvc, logger)

	controller := intake.NewController(intake.ControllerDeps{
		Store:      store,
		History:    intake.NewHistoryCache(rdb, store, cfg.HistoryCacheTTL, cfg.HistoryCacheMaxEntries, logger),
		Patients:   patientsRepo,
		Consults:   consultSvc,
		Facts:      memSvc,
		Knowledge:  knowSvc,
		Classifier: intake.NewClassifier(llm.NewTimedClient(client, "classify", intakeMetrics), logger),
		Generator:  generator,
		Inquiries:  inquiries,
		Metrics:    intakeMetrics,
		Logger:     logger,
	})

	// Setup router
	routerCfg := &router.Config{
		Logger:               logger,
		PatientsHandler:      handlers.NewPatientsHandler(patientsRepo, memSvc, generator, seeder, logger),
		ChatHandler:          handlers.NewChatHandler(controller, store, seeder, patientsRepo, memSvc, copilotSvc, logger),
		ConsultationsHandler: handlers.NewConsultationsHandler(consultSvc, intakeMetrics, logger),
		KnowledgeHandler:     handlers.NewKnowledgeHandler(knowSvc, logger),
		CopilotHandler:       handlers.NewCopilotHandler(copilotSvc, logger),
		DoctorAuthSecret:     cfg.DoctorJWTSecret,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// buildLLM selects the completion client by provider. Embeddings always come
// from the OpenAI-compatible endpoint; without an API key for it, retrieval
// degrades to recency ordering.
func buildLLM(cfg *appconfig.Config, logger *logging.Logger) (llm.Client, llm.Embedder, error) {
	openaiClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:         cfg.LLMAPIKey,
		BaseURL:        cfg.LLMBaseURL,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		ChatTimeout:    cfg.ChatCompletionTimeout,
		EmbedTimeout:   cfg.EmbeddingTimeout,
	}, logger)

	if cfg.LLMProvider == "gemini" {
		gemini, gerr := llm.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if gerr != nil {
			return nil, nil, gerr
		}
		var embedder llm.Embedder
		if err == nil {
			embedder = openaiClient
		} else {
			logger.Warn("no embedding client configured, similarity retrieval disabled")
		}
		return gemini, embedder, nil
	}

	if err != nil {
		return nil, nil, err
	}
	return openaiClient, openaiClient, nil
}

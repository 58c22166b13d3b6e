package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/audit"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/azure"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/config"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/contract"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/dashboard"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/handler"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/metrics"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/middleware"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/pdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/security"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/session"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/speech"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const auditCapacity = 5000

var (
	logger *zap.Logger
	cfg    *config.Config
)

func main() {
	// Load configuration
	var err error
	cfg, err = config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logger, err = newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("session_store", cfg.Session.Store),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	portalMetrics := metrics.NewPortalMetrics(registry)

	// Backend gateways
	client := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	}, portalMetrics, logger.Named("gateway"))
	if cfg.Backend.StrictContract {
		validator, err := contract.NewValidator(logger.Named("contract"))
		if err != nil {
			logger.Fatal("Failed to load backend contract", zap.Error(err))
		}
		client.SetValidator(validator)
		logger.Info("Strict backend contract validation enabled")
	}

	medications := gateway.NewMedicationGateway(client, logger)
	appointments := gateway.NewAppointmentGateway(client, logger)
	healthMetrics := gateway.NewMetricGateway(client, logger)
	bookingGateway := gateway.NewBookingGateway(client, logger)
	chatGateway := gateway.NewChatGateway(client)

	// Azure clients
	var synthesizer speech.Synthesizer
	if cfg.Speech.SubscriptionKey != "" {
		speechClient, err := azure.NewSpeechServiceClient(cfg.Speech.SubscriptionKey, cfg.Speech.Region, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Azure Speech Service client", zap.Error(err))
		}
		synthesizer = speechClient
	} else {
		logger.Warn("Azure Speech Service not configured, replies will not be spoken")
	}

	var mediaStore azure.MediaStore
	if cfg.Storage.AccountName != "" {
		blobClient, err := azure.NewBlobStorageClient(
			cfg.Storage.AccountName,
			cfg.Storage.AccountKey,
			cfg.Storage.AttachmentContainer,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Azure Blob Storage client", zap.Error(err))
		}
		mediaStore = blobClient
	} else {
		mediaStore = azure.NewMemoryMediaStore(cfg.Storage.MemoryItems, logger)
	}

	// Booking snapshot store
	snapshots, pinger, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize session store", zap.Error(err))
	}

	// Sessions
	auditLogger := audit.NewLogger(logger, auditCapacity)
	deps := session.Dependencies{
		Medications:   medications,
		Appointments:  appointments,
		Metrics:       healthMetrics,
		Booking:       bookingGateway,
		Assistant:     chatGateway,
		Synthesizer:   synthesizer,
		Archive:       mediaStore,
		Audit:         auditLogger,
		PortalMetrics: portalMetrics,
		Intervals: dashboard.Intervals{
			Medications:  cfg.Dashboard.MedicationsInterval,
			Appointments: cfg.Dashboard.AppointmentsInterval,
			HealthScore:  cfg.Dashboard.HealthScoreInterval,
		},
		ChunkLength:    cfg.Speech.ChunkLength,
		SpeechLanguage: cfg.Speech.Language,
		Logger:         logger,
	}
	sessions := session.NewManager(deps.Build, snapshots, cfg.Session.IdleTimeout, portalMetrics, logger.Named("session"))
	go sessions.Run(ctx)

	// Handlers
	handlers := &handler.Handlers{
		Sessions:    sessions,
		Session:     handler.NewSessionHandler(sessions, auditLogger, logger),
		Dashboard:   handler.NewDashboardHandler(pdf.NewPDFGenerator(logger), logger),
		Medication:  handler.NewMedicationHandler(logger),
		Appointment: handler.NewAppointmentHandler(),
		Health:      handler.NewHealthHandler(logger),
		Booking:     handler.NewBookingHandler(sessions, logger),
		Chat:        handler.NewChatHandler(logger),
		Media:       handler.NewMediaHandler(mediaStore, logger),
		Status:      handler.NewStatusHandler(sessions, pinger, logger),
		Logger:      logger,
	}

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	r := gin.New()

	// Add recovery middleware (must be first)
	r.Use(middleware.RecoveryMiddleware(logger))

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader, middleware.SessionIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader, middleware.SessionIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.SessionContextMiddleware())
	r.Use(middleware.RequestLoggingMiddleware(logger))
	r.Use(middleware.ErrorLoggingMiddleware(logger))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	if cfg.Backend.DevProxy {
		if err := handler.RegisterDevProxy(r, cfg.Backend.BaseURL, logger); err != nil {
			logger.Fatal("Failed to set up dev proxy", zap.Error(err))
		}
	}

	api := r.Group("")
	if cfg.Server.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		go limiter.Run(ctx)
		api.Use(middleware.RateLimit(limiter))
	}
	handlers.Register(api)

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop pollers, speech and the session sweeper
	stop()
	sessions.Shutdown()

	logger.Info("Server exited")
}

// newLogger builds the zap logger the way the environment asks for
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Logging.Format != "" {
		zcfg.Encoding = cfg.Logging.Format
	}
	return zcfg.Build()
}

// newSnapshotStore opens the configured booking snapshot store. The returned
// pinger is nil for the in-memory store.
func newSnapshotStore(ctx context.Context, cfg *config.Config) (session.SnapshotStore, handler.Pinger, error) {
	if cfg.Session.Store != "redis" {
		return session.NewMemoryStore(cfg.Session.SnapshotTTL), nil, nil
	}

	var encryptor *security.Encryptor
	if cfg.Session.EncryptionKey != "" {
		key, err := security.ParseKey(cfg.Session.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
		encryptor, err = security.NewEncryptor(key)
		if err != nil {
			return nil, nil, err
		}
	} else if cfg.IsProduction() {
		logger.Warn("Booking snapshots are stored unencrypted; set SESSION_ENCRYPTION_KEY")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	store := session.NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.Session.SnapshotTTL, encryptor)
	return store, store, nil
}

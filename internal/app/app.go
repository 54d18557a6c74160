package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"helpinghands_backend/internal/auth"
	"helpinghands_backend/internal/cache"
	"helpinghands_backend/internal/config"
	"helpinghands_backend/internal/email"
	"helpinghands_backend/internal/events"
	"helpinghands_backend/internal/handlers"
	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/middleware"
	"helpinghands_backend/internal/models"
	"helpinghands_backend/internal/payment"
	"helpinghands_backend/internal/routes"
	"helpinghands_backend/internal/services"
	"helpinghands_backend/internal/storage"
	"helpinghands_backend/internal/validator"
	"helpinghands_backend/internal/workers"
	"helpinghands_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "helpinghands_backend/docs"
)

// App - собранное приложение: БД, сервисы и коллабораторы, которые нужно закрыть
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Services *services.ServiceContainer
	Tokens   *auth.TokenManager
	Router   *gin.Engine

	closers []func() error
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.Debug = cfg.IsDevelopment()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}
	defer application.Close()

	if err := application.Serve(ctx); err != nil {
		logger.Fatal("Server stopped with error", "error", err)
	}
	logger.Info("Server stopped")
}

// New открывает БД, мигрирует схему и собирает сервисы. HTTP не запускает.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("Database connected", "driver", cfg.Database.Driver)

	a := &App{
		Config: cfg,
		DB:     db,
		Tokens: auth.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.TTL)*time.Minute),
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	deps, err := a.buildDependencies(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Services = services.NewServiceContainer(deps)

	receiptsDir := ""
	if cfg.Storage.Type == "local" {
		// LocalStorage кладет квитанции в <base>/receipts, URL - /receipts/<file>
		receiptsDir = filepath.Join(cfg.Storage.BasePath, "receipts")
	}
	a.Router = SetupRouter(db, a.Services, a.Tokens, receiptsDir)
	return a, nil
}

// OpenDatabase выбирает драйвер gorm по database.driver
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.Database.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.Database.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	gormCfg := &gorm.Config{TranslateError: true}
	if !cfg.IsDevelopment() {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get *sql.DB from gorm: %w", err)
	}
	if cfg.Database.Driver == "sqlite" {
		// sqlite не переносит параллельных писателей
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.Database.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(cfg.Database.MaxOpen)
		}
		if cfg.Database.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(cfg.Database.MaxIdle)
		}
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database unavailable: %w", err)
	}
	return db, nil
}

func (a *App) buildDependencies(ctx context.Context) (services.Dependencies, error) {
	cfg := a.Config

	// --- Шлюз ---
	var gateway payment.Gateway
	if cfg.Razorpay.Fake {
		logger.Warn("Using in-memory payment gateway, no real money moves")
		gateway = payment.NewFakeGateway(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
	} else {
		gateway = payment.NewRazorpayClient(&http.Client{}, payment.RazorpayConfig{
			KeyID:     cfg.Razorpay.KeyID,
			KeySecret: cfg.Razorpay.KeySecret,
			BaseURL:   cfg.Razorpay.BaseURL,
			Timeout:   cfg.Razorpay.Timeout,
			Logger:    logger.GetLogger(),
		})
	}

	// --- Кэш ---
	var paymentCache cache.Cache = cache.NopCache{}
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return services.Dependencies{}, err
		}
		a.closers = append(a.closers, redisCache.Close)
		paymentCache = redisCache
		logger.Info("Redis cache enabled", "addr", cfg.Redis.Addr)
	}

	// --- События ---
	var publisher events.Publisher = events.LogPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		saramaPublisher, err := events.NewSaramaPublisher(events.SaramaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			return services.Dependencies{}, err
		}
		a.closers = append(a.closers, saramaPublisher.Close)
		publisher = saramaPublisher
		logger.Info("Kafka publisher enabled", "topic", cfg.Kafka.Topic)
	}

	// --- Архив квитанций ---
	archive, err := storage.NewStorage(ctx, storage.Config{
		Type:       cfg.Storage.Type,
		BasePath:   cfg.Storage.BasePath,
		BaseURL:    cfg.Storage.BaseURL,
		Bucket:     cfg.Storage.Bucket,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Endpoint:   cfg.Storage.Endpoint,
		PublicRead: cfg.Storage.PublicRead,
	})
	if err != nil {
		return services.Dependencies{}, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("Storage initialized", "type", cfg.Storage.Type)

	// --- Почта ---
	var provider email.Provider = email.LogProvider{}
	if cfg.Email.Enabled {
		gomailProvider := email.NewGomailProvider(&email.SMTPConfig{
			Host:      cfg.Email.SMTPHost,
			Port:      cfg.Email.SMTPPort,
			Username:  cfg.Email.SMTPUsername,
			Password:  cfg.Email.SMTPPassword,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
			Timeout:   30 * time.Second,
		})
		if err := gomailProvider.Validate(); err != nil {
			return services.Dependencies{}, fmt.Errorf("invalid smtp config: %w", err)
		}
		provider = gomailProvider
	} else {
		logger.Warn("Email disabled, receipts are only logged")
	}
	templates, err := email.NewDefaultTemplateManager("")
	if err != nil {
		return services.Dependencies{}, err
	}

	return services.Dependencies{
		Gateway:        gateway,
		Cache:          paymentCache,
		Publisher:      publisher,
		EmailProvider:  provider,
		Templates:      templates,
		ReceiptArchive: archive,
		Payments: services.PaymentSettings{
			KeySecret:       cfg.Razorpay.KeySecret,
			WebhookSecret:   cfg.Razorpay.WebhookSecret,
			Limits:          payment.NewLimits(cfg.Payments.MinAmount, cfg.Payments.MaxAmount),
			DefaultCurrency: payment.Currency(cfg.Payments.DefaultCurrency),
			GatewayTimeout:  cfg.Razorpay.Timeout,
			CacheTTL:        cfg.Redis.TTL,
		},
		Reconciliation: services.ReconciliationSettings{
			BatchSize:   cfg.Workers.BatchSize,
			Concurrency: cfg.Workers.Concurrency,
			MaxAttempts: cfg.Workers.MaxAttempts,
		},
	}, nil
}

func SetupRouter(db *gorm.DB, sc *services.ServiceContainer, tokens *auth.TokenManager, receiptsDir string) *gin.Engine {
	appHandlers := handlers.NewAppHandlers(sc, validator.New(), tokens)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.DBMiddleware(db))

	routes.RegisterRoutes(router, appHandlers, receiptsDir)
	return router
}

// Serve запускает HTTP и воркеры; останавливается по отмене ctx
func (a *App) Serve(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(fmt.Sprintf("🚀 Server starting on %s", address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		workers.NewReconciliationWorker(a.DB, a.Services.ReconciliationService, a.Config.Workers.ReconciliationInterval).Start(gctx)
		return nil
	})
	g.Go(func() error {
		workers.NewReceiptWorker(a.DB, a.Services.ReconciliationService, a.Config.Workers.ReceiptSweepInterval).Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close закрывает коллабораторы в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

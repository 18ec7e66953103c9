package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/order-desk/config"
	"github.com/upb/order-desk/internal/observability"
	"github.com/upb/order-desk/middleware"
	"github.com/upb/order-desk/repositories"
	"github.com/upb/order-desk/repositories/postgres"
	"github.com/upb/order-desk/services/assistant"
	"github.com/upb/order-desk/services/audit"
	"github.com/upb/order-desk/services/auth"
	"github.com/upb/order-desk/services/orders"
	"github.com/upb/order-desk/services/providers"
	"github.com/upb/order-desk/services/providers/openai"
	"github.com/upb/order-desk/services/seed"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users     repositories.UserRepository
	Orders    repositories.OrderRepository
	AuditLogs repositories.AuditRepository
	TxManager repositories.TransactionManager

	// Services
	Auth      *auth.Service
	Audit     *audit.AuditService
	OrderSvc  *orders.Service
	Assistant *assistant.Service
	Seeder    *seed.Service

	// Provider is nil when no API key is configured
	Provider providers.Provider

	// Middleware
	Gate        *middleware.Gate
	RateLimiter *middleware.RateLimiter
}

// NewDependencies creates and wires up all application dependencies.
// The audit worker pool is started before returning.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(cfg); err != nil {
		_ = deps.RepoFactory.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initMiddleware(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the database, verifies it and creates the schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Logger.Info("database schema ready",
		zap.String("driver", d.DB.Driver()),
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Orders = repos.Orders
	d.AuditLogs = repos.AuditLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initServices builds the domain services on top of the repositories
func (d *Dependencies) initServices(cfg *config.Config) error {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	d.Auth = auth.NewService(tokens, d.Users, d.Logger)

	auditCfg := audit.DefaultConfig()
	if cfg.Audit.BufferSize > 0 {
		auditCfg.BufferSize = cfg.Audit.BufferSize
	}
	if cfg.Audit.WorkerCount > 0 {
		auditCfg.WorkerCount = cfg.Audit.WorkerCount
	}
	d.Audit = audit.NewAuditService(d.AuditLogs, d.Logger, auditCfg, d.Metrics)
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.OrderSvc = orders.NewService(d.Orders, d.TxManager, d.Audit, d.Logger)

	d.initProvider(cfg.Assistant)
	assistantCfg := assistant.Config{
		Model:     cfg.Assistant.Model,
		MaxTokens: cfg.Assistant.MaxTokens,
	}
	d.Assistant = assistant.NewService(d.Provider, d.OrderSvc, d.Metrics, assistantCfg, d.Logger)

	d.Seeder = seed.NewService(d.Users, d.Orders, d.TxManager, cfg.Dev.SeedEmail, cfg.Dev.SeedPassword, d.Logger)

	d.Logger.Info("services initialized", zap.Bool("assistant_enabled", d.Assistant.Enabled()))
	return nil
}

// initProvider registers the OpenAI-compatible provider when an API key is set
func (d *Dependencies) initProvider(cfg config.AssistantConfig) {
	if cfg.APIKey == "" {
		d.Logger.Warn("no LLM provider configured, assistant endpoint disabled")
		return
	}

	providerCfg := providers.DefaultProviderConfig()
	providerCfg.APIKey = cfg.APIKey
	providerCfg.BaseURL = cfg.BaseURL
	providerCfg.Timeout = cfg.Timeout
	providerCfg.MaxRetries = cfg.MaxRetries
	providerCfg.RetryDelay = cfg.RetryDelay

	adapter := openai.NewAdapter(providerCfg)
	d.Provider = adapter
	d.Logger.Info("registered LLM provider",
		zap.String("provider", adapter.Name()),
		zap.String("model", cfg.Model))
}

// initMiddleware builds the request gate and the assistant rate limiter
func (d *Dependencies) initMiddleware(cfg *config.Config) {
	d.Gate = middleware.NewGate(cfg.Gate.PublicPaths, d.Auth, d.Audit, d.Logger,
		middleware.WithDecisionRecorder(d.Metrics))
	d.RateLimiter = middleware.NewRateLimiter(cfg.Assistant.RequestsPerSecond, cfg.Assistant.Burst, d.Logger)
}

// CheckProvider logs whether the configured provider answers. It never
// fails startup.
func (d *Dependencies) CheckProvider(ctx context.Context) {
	if d.Provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if !d.Provider.IsAvailable(ctx) {
		d.Logger.Warn("LLM provider is not reachable, assistant calls will fail until it is",
			zap.String("provider", d.Provider.Name()))
		return
	}
	d.Logger.Info("LLM provider reachable", zap.String("provider", d.Provider.Name()))
}

// Close gracefully shuts down all dependencies. Pending audit events are
// flushed before the database is closed.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/config"
	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/handler"
	"github.com/financetracker/finance-tracker-go/internal/infra/cache"
	"github.com/financetracker/finance-tracker-go/internal/infra/client"
	"github.com/financetracker/finance-tracker-go/internal/infra/memory"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/infra/resilience"
	"github.com/financetracker/finance-tracker-go/internal/infra/sqlite"
	"github.com/financetracker/finance-tracker-go/internal/infra/supabase"
	"github.com/financetracker/finance-tracker-go/internal/port"
	"github.com/financetracker/finance-tracker-go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("data_backend", cfg.DataBackend),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("trend_months", cfg.TrendMonths),
		zap.Int("categories", len(cfg.Categories)),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "finance-tracker")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// Money goes over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	metrics := observability.NewMetrics()

	a, err := buildApp(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// --- Graceful shutdown ---
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// app is the wired dependency graph behind the HTTP handler.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildApp wires stores, caches, clients and services for cfg.
func buildApp(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*app, error) {
	a := &app{}

	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Stores ---
	var (
		transactions  port.TransactionStore
		budgets       port.BudgetStore
		subscriptions port.SubscriptionStore
		checks        []handler.HealthCheck
	)

	switch cfg.DataBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		transactions, budgets, subscriptions = store, store.Budgets(), store

	case config.BackendSupabase:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		transactions, budgets, subscriptions = sb, sb.Budgets(), sb
		checks = append(checks, handler.HealthCheck{Name: "supabase", Check: sb.Ping})

	default:
		store, err := sqlite.Open(ctx, cfg.SQLiteDBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing sqlite store", zap.Error(err))
			}
		})
		transactions, budgets, subscriptions = store, store.Budgets(), store
		checks = append(checks, handler.HealthCheck{Name: "sqlite", Check: store.Ping})
	}

	// --- Cache ---
	categoryCache := cache.New[[]string](cfg.CacheTTL)
	subscriptionCache := cache.New[*domain.Subscription](cfg.CacheTTL)
	a.closers = append(a.closers, categoryCache.Close, subscriptionCache.Close)

	// --- Clients ---
	classifier := client.NewClassifierClient(httpClient, cfg.ClassifierAPIURL, resilience.NewCircuitBreaker("classifier"), resilienceCfg)
	scanner := client.NewReceiptClient(httpClient, cfg.ReceiptAPIURL, resilience.NewCircuitBreaker("receipt"), resilienceCfg)

	// --- Services ---
	categories := cfg.CategorySet()
	reports := service.NewReportingService(transactions, budgets, cfg.TrendMonths, cfg.RequestTimeout, metrics, logger)

	a.handler = handler.NewRouter(handler.Dependencies{
		Reports:       reports,
		Budgets:       service.NewBudgetService(budgets, reports, metrics, logger),
		Transactions:  service.NewTransactionService(transactions, categories, categoryCache, metrics, logger),
		AI:            service.NewAIService(classifier, scanner, transactions, categories, metrics, logger),
		Subscriptions: service.NewSubscriptionService(subscriptions, subscriptionCache, metrics, logger),
		JWTSecret:     []byte(cfg.JWTSecret),
		JWTIssuer:     cfg.JWTIssuer,
		Checks:        checks,
	}, metrics, logger)

	return a, nil
}

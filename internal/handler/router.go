package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck probes one dependency for /healthz and /readyz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies is everything the router serves.
type Dependencies struct {
	Reports       *service.ReportingService
	Budgets       *service.BudgetService
	Transactions  *service.TransactionService
	AI            *service.AIService
	Subscriptions *service.SubscriptionService

	JWTSecret []byte
	JWTIssuer string

	// Now is the clock used for default periods and premium checks.
	Now    func() time.Time
	Checks []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Dependencies, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Checks, deps.Now))
	r.Get("/readyz", readyzHandler(deps.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(deps.JWTSecret, deps.JWTIssuer, logger))

		// Reports
		r.Get("/reports/dashboard", dashboardHandler(deps.Reports, deps.Now, logger))
		r.Get("/reports/spending-by-category", spendingByCategoryHandler(deps.Reports, deps.Now, logger))
		r.Get("/reports/monthly-trends", monthlyTrendsHandler(deps.Reports, deps.Now, logger))
		r.Get("/reports/calendar", calendarHandler(deps.Reports, deps.Now, logger))

		// Budgets
		r.Get("/budgets", listBudgetsHandler(deps.Budgets, deps.Now, logger))
		r.Post("/budgets", createBudgetHandler(deps.Budgets, logger))
		r.Put("/budgets/{id}", updateBudgetHandler(deps.Budgets, logger))
		r.Delete("/budgets/{id}", deleteBudgetHandler(deps.Budgets, logger))

		// Transactions
		r.Get("/transactions", listTransactionsHandler(deps.Transactions, logger))
		r.Post("/transactions", createTransactionHandler(deps.Transactions, logger))
		r.Get("/transactions/categories", categoriesHandler(deps.Transactions, logger))
		r.Put("/transactions/{id}", updateTransactionHandler(deps.Transactions, logger))
		r.Delete("/transactions/{id}", deleteTransactionHandler(deps.Transactions, logger))

		// AI assistance (premium)
		r.Route("/ai", func(r chi.Router) {
			r.Use(RequirePremium(deps.Subscriptions, deps.Now, logger))
			r.Post("/categorize-transaction", categorizeHandler(deps.AI, logger))
			r.Post("/bulk-categorize", bulkCategorizeHandler(deps.AI, logger))
			r.Get("/predict-budget", predictBudgetHandler(deps.AI, deps.Now, logger))
			r.Post("/scan-receipt", scanReceiptHandler(deps.AI, logger))
		})

		r.Get("/metrics/service", serviceMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(checks []HealthCheck, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		checked := now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "tracker-api", Status: "healthy", LatencyMs: 0, LastChecked: checked},
		}
		for _, c := range checks {
			start := time.Now()
			err := c.Check(ctx)
			status := "healthy"
			if err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name:        c.Name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: checked,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				logger.Warn("readiness check failed", zap.String("check", c.Name), zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "failing": c.Name})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func serviceMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

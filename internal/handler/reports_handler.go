package handler

import (
	"net/http"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Reports: /v1/reports/*
// ============================================================

func dashboardHandler(svc *service.ReportingService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/dashboard")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		summary, err := svc.DashboardSummary(ctx, userID, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func spendingByCategoryHandler(svc *service.ReportingService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/spending-by-category")
		defer span.End()

		month, year, err := monthYear(r, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		breakdown, err := svc.CategoryBreakdown(ctx, UserIDFromContext(ctx), month, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, breakdown)
	}
}

func monthlyTrendsHandler(svc *service.ReportingService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/monthly-trends")
		defer span.End()

		months, err := queryInt(r, "months")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("trend.months", months))

		trends, err := svc.MonthlyTrends(ctx, UserIDFromContext(ctx), months, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, trends)
	}
}

func calendarHandler(svc *service.ReportingService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/calendar")
		defer span.End()

		month, year, err := monthYear(r, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		view, err := svc.CalendarView(ctx, UserIDFromContext(ctx), month, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

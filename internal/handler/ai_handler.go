package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxReceiptBytes caps uploaded receipt images.
const maxReceiptBytes = 10 << 20

// ============================================================
// AI assistance: /v1/ai/*
// ============================================================

func categorizeHandler(svc *service.AIService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ai/categorize-transaction")
		defer span.End()

		var req domain.CategorizeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		suggestion, err := svc.SuggestCategory(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, suggestion)
	}
}

func bulkCategorizeHandler(svc *service.AIService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ai/bulk-categorize")
		defer span.End()

		result, err := svc.BulkCategorize(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("categorized", len(result.CategorizedTransactions)))
		writeJSON(w, http.StatusOK, result)
	}
}

func predictBudgetHandler(svc *service.AIService, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ai/predict-budget")
		defer span.End()

		category := strings.TrimSpace(r.URL.Query().Get("category"))
		prediction, err := svc.PredictBudget(ctx, UserIDFromContext(ctx), category, now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, prediction)
	}
}

func scanReceiptHandler(svc *service.AIService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/ai/scan-receipt")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes+1<<10)
		file, header, err := r.FormFile("receipt")
		if err != nil {
			handleServiceError(w, &domain.ErrValidation{Field: "receipt", Message: "no receipt image provided"}, logger)
			return
		}
		defer file.Close()

		image, err := io.ReadAll(io.LimitReader(file, maxReceiptBytes+1))
		if err != nil {
			handleServiceError(w, &domain.ErrValidation{Field: "receipt", Message: "could not read upload"}, logger)
			return
		}
		if len(image) > maxReceiptBytes {
			handleServiceError(w, &domain.ErrValidation{Field: "receipt", Message: "file too large (max 10MB)"}, logger)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(image)
		}
		span.SetAttributes(attribute.String("receipt.content_type", contentType), attribute.Int("receipt.bytes", len(image)))

		result, err := svc.ScanReceipt(ctx, image, contentType)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

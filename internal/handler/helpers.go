package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// statusClientClosedRequest is the non-standard status for a caller that
// went away before the answer was ready.
const statusClientClosedRequest = 499

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var ve *domain.ErrValidation
		if errors.As(err, &ve) {
			return ve
		}
		return &domain.ErrValidation{Field: "body", Message: "invalid request body"}
	}
	return nil
}

// queryInt parses an optional integer query parameter; absent yields 0.
func queryInt(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ErrValidation{Field: name, Message: "must be an integer"}
	}
	return n, nil
}

// monthYear reads ?month&year, defaulting each to the month containing now.
func monthYear(r *http.Request, now time.Time) (month, year int, err error) {
	if month, err = queryInt(r, "month"); err != nil {
		return 0, 0, err
	}
	if year, err = queryInt(r, "year"); err != nil {
		return 0, 0, err
	}
	if r.URL.Query().Get("month") == "" {
		month = int(now.Month())
	}
	if r.URL.Query().Get("year") == "" {
		year = now.Year()
	}
	return month, year, nil
}

// transactionFilter reads the optional list filters of GET /v1/transactions.
func transactionFilter(r *http.Request) (domain.TransactionFilter, error) {
	q := r.URL.Query()
	var filter domain.TransactionFilter

	if v := q.Get("type"); v != "" {
		t, err := domain.ParseTransactionType(v)
		if err != nil {
			return filter, err
		}
		filter.Type = t
	}
	filter.Category = strings.TrimSpace(q.Get("category"))

	start, end := q.Get("startDate"), q.Get("endDate")
	if start != "" || end != "" {
		var window domain.DateRange
		var err error
		if start != "" {
			if window.From, err = domain.ParseDate(start); err != nil {
				return filter, err
			}
		}
		if end != "" {
			if window.To, err = domain.ParseDate(end); err != nil {
				return filter, err
			}
		}
		filter.Window = &window
	}
	return filter, filter.Validate()
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var duplicate *domain.ErrDuplicate
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden
	var circuitOpen *domain.ErrCircuitOpen
	var external *domain.ErrExternalService
	var timeout *domain.ErrTimeout
	var cancelled *domain.ErrCancelled

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &duplicate):
		logger.Debug("duplicate resource", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &cancelled):
		logger.Info("request cancelled", zap.String("error", err.Error()))
		writeError(w, statusClientClosedRequest, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service failure", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

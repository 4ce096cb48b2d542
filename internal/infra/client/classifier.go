// Package client holds the HTTP adapters for the external AI services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// ClassifierClient calls the classification service that suggests
// categories and forecasts budgets.
type ClassifierClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
}

// NewClassifierClient creates a new ClassifierClient. At most
// cfg.MaxConcurrency requests are in flight at once.
func NewClassifierClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *ClassifierClient {
	return &ClassifierClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
	}
}

type categorizeResponse struct {
	Category string `json:"category"`
}

// Categorize returns the raw category suggested for req. The answer is not
// validated here.
func (c *ClassifierClient) Categorize(ctx context.Context, req *domain.ClassificationRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "ClassifierClient.Categorize")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", req.RequestID))

	var out categorizeResponse
	if err := c.postJSON(ctx, "/v1/categorize", req, &out); err != nil {
		return "", &domain.ErrExternalService{Service: "classifier", Err: err}
	}
	return out.Category, nil
}

// PredictBudget asks the service for next month's forecast.
func (c *ClassifierClient) PredictBudget(ctx context.Context, req *domain.PredictionRequest) (*domain.BudgetPrediction, error) {
	ctx, span := tracer.Start(ctx, "ClassifierClient.PredictBudget")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("prediction.months", len(req.MonthlySpending)),
	)

	var out domain.BudgetPrediction
	if err := c.postJSON(ctx, "/v1/predict-budget", req, &out); err != nil {
		return nil, &domain.ErrExternalService{Service: "predictor", Err: err}
	}
	return &out, nil
}

func (c *ClassifierClient) postJSON(ctx context.Context, path string, in, out any) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return resilience.Call(ctx, c.cb, c.cfg, "classifier", func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return resilience.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		return decodeResponse(resp, "classifier", out)
	})
}

// decodeResponse maps a non-2xx status to an error (4xx is not retried) and
// decodes the JSON body into out otherwise.
func decodeResponse(resp *http.Response, service string, out any) error {
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resilience.Permanent(fmt.Errorf("%s API returned status %d: %s", service, resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s API returned status %d", service, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decode %s response: %w", service, err))
	}
	return nil
}

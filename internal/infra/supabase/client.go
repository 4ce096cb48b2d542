// Package supabase is the hosted store adapter. It talks to the Supabase
// PostgREST API and implements the transaction, budget and subscription
// ports on top of it.
package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
	now            func() time.Time
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks that PostgREST answers for the transactions table.
func (c *Client) Ping(ctx context.Context) error {
	_, _, err := c.send(ctx, http.MethodGet, "transactions?select=id&limit=1", nil, "")
	return err
}

// call runs fn through the breaker and retry loop and maps the outcome onto
// domain errors. Context errors and an open breaker pass through untouched.
func (c *Client) call(ctx context.Context, table string, fn func() error) error {
	err := resilience.Call(ctx, c.cb, c.cfg, "supabase", fn)
	if err == nil {
		return nil
	}
	var open *domain.ErrCircuitOpen
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.As(err, &open) {
		return err
	}
	if isConflict(err) {
		return err
	}
	return &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
}

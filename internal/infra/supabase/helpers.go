package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers
// ============================================================

// statusError is a non-2xx PostgREST answer.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.status, e.body)
}

func isConflict(err error) bool {
	var st *statusError
	return errors.As(err, &st) && st.status == http.StatusConflict
}

// send performs one authenticated request. 4xx answers are wrapped as
// permanent so the retry loop gives up on them.
func (c *Client) send(ctx context.Context, method, path string, payload any, prefer string) ([]byte, http.Header, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, resilience.Permanent(err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/rest/v1/"+path, body)
	if err != nil {
		return nil, nil, resilience.Permanent(err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceRoleKey)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)),
		)
		st := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
		if resp.StatusCode < 500 {
			return nil, nil, resilience.Permanent(st)
		}
		return nil, nil, st
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return data, resp.Header, nil
}

// fetch runs a request through call and decodes the JSON array answer.
func fetch[T any](ctx context.Context, c *Client, table, method, path string, payload any, prefer string) ([]T, error) {
	var rows []T
	err := c.call(ctx, table, func() error {
		body, _, err := c.send(ctx, method, path, payload, prefer)
		if err != nil {
			return err
		}
		rows = nil
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode %s: %w", table, err))
		}
		return nil
	})
	return rows, err
}

// ============================================================
// PostgREST query building
// ============================================================

func transactionQuery(userID string, filter domain.TransactionFilter) url.Values {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	if filter.Type != "" {
		q.Set("type", "eq."+string(filter.Type))
	}
	if filter.Category != "" {
		q.Set("category", "eq."+filter.Category)
	}
	if filter.Window != nil {
		if !filter.Window.From.IsZero() {
			q.Add("date", "gte."+filter.Window.From.String())
		}
		if !filter.Window.To.IsZero() {
			q.Add("date", "lte."+filter.Window.To.String())
		}
	}
	if filter.Uncategorized {
		q.Set("auto_categorized", "is.false")
	}
	return q
}

func budgetQuery(userID string, filter domain.BudgetFilter) url.Values {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	if filter.Month != 0 {
		q.Set("month", "eq."+strconv.Itoa(filter.Month))
	}
	if filter.Year != 0 {
		q.Set("year", "eq."+strconv.Itoa(filter.Year))
	}
	if filter.Category != "" {
		q.Set("category", "eq."+filter.Category)
	}
	return q
}

// contentRangeTotal reads the total from a "0-9/42" or "*/0" header.
func contentRangeTotal(h http.Header) (int, error) {
	cr := h.Get("Content-Range")
	i := strings.LastIndexByte(cr, '/')
	if i < 0 {
		return 0, fmt.Errorf("missing total in Content-Range %q", cr)
	}
	return strconv.Atoi(cr[i+1:])
}

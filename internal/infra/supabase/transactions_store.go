package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions: CRUD via PostgREST (implements port.TransactionStore)
// ============================================================

// transactionRow maps the transactions table columns.
type transactionRow struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	Type            string          `json:"type"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Date            string          `json:"date"`
	IsRecurring     bool            `json:"is_recurring"`
	ReceiptURL      string          `json:"receipt_url"`
	AutoCategorized bool            `json:"auto_categorized"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toTransactionRow(t *domain.Transaction) transactionRow {
	return transactionRow{
		ID:              t.ID,
		UserID:          t.UserID,
		Amount:          t.Amount,
		Type:            string(t.Type),
		Category:        t.Category,
		Description:     t.Description,
		Date:            t.Date.String(),
		IsRecurring:     t.IsRecurring,
		ReceiptURL:      t.ReceiptURL,
		AutoCategorized: t.AutoCategorized,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	d, err := domain.ParseDate(r.Date)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: %w", r.ID, err)
	}
	return domain.Transaction{
		ID:              r.ID,
		UserID:          r.UserID,
		Amount:          r.Amount,
		Type:            domain.TransactionType(r.Type),
		Category:        r.Category,
		Description:     r.Description,
		Date:            d,
		IsRecurring:     r.IsRecurring,
		ReceiptURL:      r.ReceiptURL,
		AutoCategorized: r.AutoCategorized,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

func toTransactions(rows []transactionRow) ([]domain.Transaction, error) {
	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) Find(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	q := transactionQuery(userID, filter)
	q.Set("order", "date.desc,created_at.desc,id.desc")
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	rows, err := fetch[transactionRow](ctx, c, "transactions", http.MethodGet, "transactions?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	return toTransactions(rows)
}

func (c *Client) Count(ctx context.Context, userID string, filter domain.TransactionFilter) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CountTransactions")
	defer span.End()

	q := transactionQuery(userID, filter)
	q.Set("select", "id")
	q.Set("limit", "1")

	var n int
	err := c.call(ctx, "transactions", func() error {
		_, h, err := c.send(ctx, http.MethodGet, "transactions?"+q.Encode(), nil, "count=exact")
		if err != nil {
			return err
		}
		n, err = contentRangeTotal(h)
		return err
	})
	return n, err
}

// Sum fetches only the amount column and totals it with decimal arithmetic.
func (c *Client) Sum(ctx context.Context, userID string, filter domain.TransactionFilter) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SumTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("type", string(filter.Type)))

	q := transactionQuery(userID, filter)
	q.Set("select", "amount")

	type amountRow struct {
		Amount decimal.Decimal `json:"amount"`
	}
	rows, err := fetch[amountRow](ctx, c, "transactions", http.MethodGet, "transactions?"+q.Encode(), nil, "")
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total, nil
}

func (c *Client) Get(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTransaction")
	defer span.End()

	rows, err := fetch[transactionRow](ctx, c, "transactions", http.MethodGet, byID("transactions", userID, id)+"&limit=1", nil, "")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	t, err := rows[0].toDomain()
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	return &t, nil
}

func (c *Client) Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransaction")
	defer span.End()

	rec := *t
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := c.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	rows, err := fetch[transactionRow](ctx, c, "transactions", http.MethodPost, "transactions",
		toTransactionRow(&rec), "return=representation")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &rec, nil
	}

	created, err := rows[0].toDomain()
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	c.logger.Debug("transaction saved to supabase",
		zap.String("id", created.ID),
		zap.String("user_id", created.UserID),
	)
	return &created, nil
}

func (c *Client) Update(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTransaction")
	defer span.End()

	patch := map[string]any{
		"amount":           t.Amount,
		"type":             string(t.Type),
		"category":         t.Category,
		"description":      t.Description,
		"date":             t.Date.String(),
		"is_recurring":     t.IsRecurring,
		"receipt_url":      t.ReceiptURL,
		"auto_categorized": t.AutoCategorized,
		"updated_at":       c.now(),
	}
	rows, err := fetch[transactionRow](ctx, c, "transactions", http.MethodPatch, byID("transactions", t.UserID, t.ID),
		patch, "return=representation")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: t.ID}
	}
	updated, err := rows[0].toDomain()
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	return &updated, nil
}

func (c *Client) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTransaction")
	defer span.End()

	rows, err := fetch[transactionRow](ctx, c, "transactions", http.MethodDelete, byID("transactions", userID, id),
		nil, "return=representation")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

func (c *Client) Categories(ctx context.Context, userID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Categories")
	defer span.End()

	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("select", "category")

	type categoryRow struct {
		Category string `json:"category"`
	}
	rows, err := fetch[categoryRow](ctx, c, "transactions", http.MethodGet, "transactions?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	out := make([]string, 0)
	for _, r := range rows {
		if r.Category == "" || seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		out = append(out, r.Category)
	}
	sort.Strings(out)
	return out, nil
}

// byID renders the row selector for one record owned by userID.
func byID(table, userID, id string) string {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("user_id", "eq."+userID)
	return table + "?" + q.Encode()
}

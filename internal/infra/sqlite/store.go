// Package sqlite is the embedded store adapter. Amounts are kept as
// decimal strings and summed in Go so no value ever passes through a float.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const driverName = "sqlite"

// timestampLayout is fixed-width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

var tracer = otel.Tracer("sqlite")

// Store implements the transaction and subscription ports on SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open creates the database directory if needed, applies migrations and
// returns a ready store.
func Open(ctx context.Context, dbPath string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := Migrate(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent report reads.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", dbPath))
	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// storeError wraps a database failure. Context errors pass through so the
// service can report cancellation.
func storeError(table string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.ErrExternalService{Service: "sqlite/" + table, Err: err}
}

// --- Transactions (implements port.TransactionStore) ---

const transactionColumns = `id, user_id, amount, type, category, description, date,
	is_recurring, receipt_url, auto_categorized, created_at, updated_at`

// whereClause renders filter as SQL conditions for userID.
func whereClause(userID string, filter domain.TransactionFilter) (string, []any) {
	conds := []string{"user_id = ?"}
	args := []any{userID}

	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Window != nil && !filter.Window.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, filter.Window.From.String())
	}
	if filter.Window != nil && !filter.Window.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, filter.Window.To.String())
	}
	if filter.Uncategorized {
		conds = append(conds, "auto_categorized = 0")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		t                    domain.Transaction
		amount, typ, date    string
		created, updated     string
		recurring, autoCateg bool
	)
	if err := row.Scan(&t.ID, &t.UserID, &amount, &typ, &t.Category, &t.Description, &date,
		&recurring, &t.ReceiptURL, &autoCateg, &created, &updated); err != nil {
		return t, err
	}

	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("transaction %s: bad amount %q: %w", t.ID, amount, err)
	}
	if t.Date, err = domain.ParseDate(date); err != nil {
		return t, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, fmt.Errorf("transaction %s: bad created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, fmt.Errorf("transaction %s: bad updated_at: %w", t.ID, err)
	}
	t.Type = domain.TransactionType(typ)
	t.IsRecurring = recurring
	t.AutoCategorized = autoCateg
	return t, nil
}

func (s *Store) Find(ctx context.Context, userID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.FindTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	where, args := whereClause(userID, filter)
	query := "SELECT " + transactionColumns + " FROM transactions" + where +
		" ORDER BY date DESC, created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("transactions", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storeError("transactions", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("transactions", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, userID string, filter domain.TransactionFilter) (int, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CountTransactions")
	defer span.End()

	where, args := whereClause(userID, filter)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&n); err != nil {
		return 0, storeError("transactions", err)
	}
	return n, nil
}

// Sum totals matching amounts in Go; SQLite's SUM would go through REAL.
func (s *Store) Sum(ctx context.Context, userID string, filter domain.TransactionFilter) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "SQLite.SumTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("type", string(filter.Type)))

	where, args := whereClause(userID, filter)
	rows, err := s.db.QueryContext(ctx, "SELECT amount FROM transactions"+where, args...)
	if err != nil {
		return decimal.Zero, storeError("transactions", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, storeError("transactions", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, storeError("transactions", fmt.Errorf("bad amount %q: %w", raw, err))
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, storeError("transactions", err)
	}
	return total, nil
}

func (s *Store) Get(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetTransaction")
	defer span.End()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if err != nil {
		return nil, storeError("transactions", err)
	}
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.CreateTransaction")
	defer span.End()

	rec := *t
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Amount.String(), string(rec.Type), rec.Category, rec.Description,
		rec.Date.String(), rec.IsRecurring, rec.ReceiptURL, rec.AutoCategorized,
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return nil, storeError("transactions", err)
	}

	s.logger.Debug("transaction saved to sqlite",
		zap.String("id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.String("amount", rec.Amount.String()),
	)
	return &rec, nil
}

func (s *Store) Update(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateTransaction")
	defer span.End()

	rec := *t
	rec.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET amount = ?, type = ?, category = ?, description = ?, date = ?,
			is_recurring = ?, receipt_url = ?, auto_categorized = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		rec.Amount.String(), string(rec.Type), rec.Category, rec.Description, rec.Date.String(),
		rec.IsRecurring, rec.ReceiptURL, rec.AutoCategorized, formatTime(rec.UpdatedAt),
		rec.ID, rec.UserID,
	)
	if err != nil {
		return nil, storeError("transactions", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: rec.ID}
	}
	return s.Get(ctx, rec.UserID, rec.ID)
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteTransaction")
	defer span.End()

	res, err := s.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return storeError("transactions", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
}

func (s *Store) Categories(ctx context.Context, userID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "SQLite.Categories")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT category FROM transactions WHERE user_id = ? ORDER BY category", userID)
	if err != nil {
		return nil, storeError("transactions", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, storeError("transactions", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("transactions", err)
	}
	return out, nil
}

// --- Subscriptions (implements port.SubscriptionStore) ---

func (s *Store) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetSubscription")
	defer span.End()

	var (
		sub        domain.Subscription
		status     string
		start, end string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, provider_customer_id, provider_subscription_id, status, current_period_start, current_period_end
		 FROM subscriptions WHERE user_id = ?`, userID,
	).Scan(&sub.UserID, &sub.ProviderCustomerID, &sub.ProviderSubscriptionID, &status, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("subscriptions", err)
	}

	sub.Status = domain.SubscriptionStatus(status)
	if sub.CurrentPeriodStart, err = parseTime(start); err != nil {
		return nil, storeError("subscriptions", err)
	}
	if sub.CurrentPeriodEnd, err = parseTime(end); err != nil {
		return nil, storeError("subscriptions", err)
	}
	return &sub, nil
}

// PutSubscription upserts a subscription record. Billing webhooks are
// handled elsewhere; this is used for seeding.
func (s *Store) PutSubscription(ctx context.Context, sub domain.Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, provider_customer_id, provider_subscription_id, status, current_period_start, current_period_end)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			provider_customer_id = excluded.provider_customer_id,
			provider_subscription_id = excluded.provider_subscription_id,
			status = excluded.status,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end`,
		sub.UserID, sub.ProviderCustomerID, sub.ProviderSubscriptionID, string(sub.Status),
		formatTime(sub.CurrentPeriodStart), formatTime(sub.CurrentPeriodEnd),
	)
	if err != nil {
		return storeError("subscriptions", err)
	}
	return nil
}

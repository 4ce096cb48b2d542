package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/handler"
	"github.com/financetracker/finance-tracker-go/internal/infra/cache"
	"github.com/financetracker/finance-tracker-go/internal/infra/memory"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testSecret = []byte("test-secret")
	testNow    = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
)

func TestMain(m *testing.M) {
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}

type stubClassifier struct {
	category string
	err      error
}

func (s stubClassifier) Categorize(ctx context.Context, req *domain.ClassificationRequest) (string, error) {
	return s.category, s.err
}

func (s stubClassifier) PredictBudget(ctx context.Context, req *domain.PredictionRequest) (*domain.BudgetPrediction, error) {
	return nil, errors.New("predictor offline")
}

type stubScanner struct{}

func (stubScanner) Scan(ctx context.Context, image []byte, contentType string) (*domain.ReceiptData, error) {
	return &domain.ReceiptData{
		Merchant:          "Corner Cafe",
		Total:             decimal.RequireFromString("12.40"),
		Date:              domain.NewDate(2024, 3, 2),
		SuggestedCategory: "food",
	}, nil
}

type fixture struct {
	store  *memory.Store
	router http.Handler
}

func newFixture(t *testing.T, checks ...handler.HealthCheck) *fixture {
	t.Helper()
	store := memory.NewStore()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	categories := domain.NewCategorySet(domain.DefaultCategories)

	reports := service.NewReportingService(store, store.Budgets(), 6, time.Second, metrics, logger)
	deps := handler.Dependencies{
		Reports:       reports,
		Budgets:       service.NewBudgetService(store.Budgets(), reports, metrics, logger),
		Transactions:  service.NewTransactionService(store, categories, cache.New[[]string](0), metrics, logger),
		AI:            service.NewAIService(stubClassifier{category: "Food & Dining"}, stubScanner{}, store, categories, metrics, logger),
		Subscriptions: service.NewSubscriptionService(store, cache.New[*domain.Subscription](0), metrics, logger),
		JWTSecret:     testSecret,
		Now:           func() time.Time { return testNow },
		Checks:        checks,
	}
	return &fixture{store: store, router: handler.NewRouter(deps, metrics, logger)}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token(t, "u1"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T, amount string, typ domain.TransactionType, category, date string) {
	t.Helper()
	d, err := domain.ParseDate(date)
	require.NoError(t, err)
	_, err = f.store.Create(context.Background(), &domain.Transaction{
		UserID: "u1", Amount: decimal.RequireFromString(amount), Type: typ, Category: category, Date: d,
	})
	require.NoError(t, err)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestOperationalEndpoints(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/ping"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	f := newFixture(t, handler.HealthCheck{
		Name:  "store",
		Check: func(context.Context) error { return errors.New("down") },
	})

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestAuth_RejectsMissingAndForgedTokens(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/reports/dashboard", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("other"))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "3000", domain.TransactionIncome, "Salary", "2024-03-01")
	f.seed(t, "1000", domain.TransactionIncome, "Salary", "2024-02-01")
	f.seed(t, "150.25", domain.TransactionExpense, "Food & Dining", "2024-03-10")
	f.seed(t, "50", domain.TransactionExpense, "Transportation", "2024-02-20")

	rec := f.do(t, http.MethodGet, "/v1/reports/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, 3799.75, body["netBalance"])
	assert.Equal(t, 4000.0, body["totalIncome"])
	assert.Equal(t, 3000.0, body["monthlyIncome"])
	assert.Equal(t, 150.25, body["monthlyExpenses"])
	assert.Len(t, body["recentTransactions"], 4)
}

func TestSpendingByCategory_DefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "20", domain.TransactionExpense, "B", "2024-03-01")
	f.seed(t, "15", domain.TransactionExpense, "A", "2024-03-31")
	f.seed(t, "99", domain.TransactionExpense, "A", "2024-04-01")

	rec := f.do(t, http.MethodGet, "/v1/reports/spending-by-category", "")
	require.Equal(t, http.StatusOK, rec.Code)
	spending := decode(t, rec)["categorySpending"].([]any)
	require.Len(t, spending, 2)
	assert.Equal(t, "B", spending[0].(map[string]any)["category"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/reports/spending-by-category?month=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/reports/calendar?month=13&year=2024", "").Code)
}

func TestMonthlyTrends(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "100", domain.TransactionIncome, "Salary", "2024-01-15")

	rec := f.do(t, http.MethodGet, "/v1/reports/monthly-trends?months=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	trends := decode(t, rec)["trends"].([]any)
	require.Len(t, trends, 3)
	first := trends[0].(map[string]any)
	assert.Equal(t, "Jan 2024", first["month"])
	assert.Equal(t, 100.0, first["net"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/reports/monthly-trends?months=61", "").Code)
}

func TestCalendar(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "10", domain.TransactionExpense, "Food", "2024-03-05")
	f.seed(t, "5", domain.TransactionIncome, "Gift", "2024-03-05")

	rec := f.do(t, http.MethodGet, "/v1/reports/calendar?month=3&year=2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	day := decode(t, rec)["calendarData"].(map[string]any)["2024-03-05"].(map[string]any)
	assert.Equal(t, 5.0, day["income"])
	assert.Equal(t, 10.0, day["expenses"])
}

func TestBudgets_CreateDuplicateAndStatus(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "150", domain.TransactionExpense, "Food & Dining", "2024-03-10")

	body := `{"category":"Food & Dining","amount":120,"month":3,"year":2024}`
	assert.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/v1/budgets", body).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/v1/budgets", body).Code)

	rec := f.do(t, http.MethodGet, "/v1/budgets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	budgets := decode(t, rec)["budgets"].([]any)
	require.Len(t, budgets, 1)
	b := budgets[0].(map[string]any)
	assert.Equal(t, 150.0, b["spent"])
	assert.Equal(t, -30.0, b["remaining"])
	assert.Equal(t, 125.0, b["percentUsed"])
	assert.Equal(t, "over", b["status"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/v1/budgets/missing", "").Code)
}

func TestTransactions_CRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/transactions",
		`{"amount":"42.50","type":"expense","category":"Fuel","date":"2024-03-10","description":"gas"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["transaction"].(map[string]any)["id"].(string)

	rec = f.do(t, http.MethodGet, "/v1/transactions?type=expense&startDate=2024-03-01&endDate=2024-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode(t, rec)
	assert.Len(t, page["transactions"], 1)
	assert.Equal(t, 1.0, page["pagination"].(map[string]any)["total"])

	rec = f.do(t, http.MethodPut, "/v1/transactions/"+id,
		`{"amount":40,"type":"expense","category":"Transportation","date":"2024-03-10"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/transactions/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	categories := decode(t, rec)["categories"].([]any)
	assert.Equal(t, "Transportation", categories[0])

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/v1/transactions/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/v1/transactions/"+id, "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/transactions",
		`{"amount":0,"type":"expense","category":"Fuel","date":"2024-03-10"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/transactions", `{`).Code)
}

func TestTransactions_OneSidedDateRange(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "10", domain.TransactionExpense, "Food", "2024-02-28")
	f.seed(t, "20", domain.TransactionExpense, "Food", "2024-03-01")
	f.seed(t, "30", domain.TransactionExpense, "Food", "2024-03-14")

	tests := []struct {
		name  string
		query string
		total float64
	}{
		{"start only", "startDate=2024-03-01", 2},
		{"end only", "endDate=2024-03-01", 2},
		{"end before everything", "endDate=2024-01-01", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/v1/transactions?"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			page := decode(t, rec)
			assert.Equal(t, tt.total, page["pagination"].(map[string]any)["total"])
		})
	}

	rec := f.do(t, http.MethodGet, "/v1/transactions?startDate=2024-03-10&endDate=2024-03-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAI_RequiresPremium(t *testing.T) {
	f := newFixture(t)
	body := `{"description":"latte","merchant":"STARBUCKS","amount":4.5}`

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/v1/ai/categorize-transaction", body).Code)

	f.store.PutSubscription(domain.Subscription{
		UserID:           "u1",
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: testNow.AddDate(0, 1, 0),
	})

	rec := f.do(t, http.MethodPost, "/v1/ai/categorize-transaction", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Food & Dining", decode(t, rec)["suggestedCategory"])

	rec = f.do(t, http.MethodGet, "/v1/ai/predict-budget", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "Not enough transaction data")
}

func TestAI_ScanReceipt(t *testing.T) {
	f := newFixture(t)
	f.store.PutSubscription(domain.Subscription{
		UserID:           "u1",
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: testNow.AddDate(0, 1, 0),
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="receipt"; filename="r.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/ai/scan-receipt", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token(t, "u1"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["receiptData"].(map[string]any)
	assert.Equal(t, "Corner Cafe", data["merchant"])
	assert.Equal(t, "Food & Dining", data["suggestedCategory"])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/ai/scan-receipt", "").Code)
}

func TestCancelledRequestReports499(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/dashboard", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token(t, "u1"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, 499, rec.Code)
}

func TestServiceMetrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/metrics/service", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "cacheHitRate")
}

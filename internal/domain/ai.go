package domain

import "github.com/shopspring/decimal"

// ============================================================
// AI assistance (external classification / receipt services)
// ============================================================

// CategorizeRequest is the body of POST /v1/ai/categorize-transaction.
type CategorizeRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Merchant    string          `json:"merchant"`
}

// Validate requires at least a description or a merchant.
func (r CategorizeRequest) Validate() error {
	if r.Description == "" && r.Merchant == "" {
		return &ErrValidation{Field: "description", Message: "description or merchant required"}
	}
	return nil
}

// ClassificationRequest is sent to the external classifier.
type ClassificationRequest struct {
	RequestID   string          `json:"requestId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Merchant    string          `json:"merchant"`
	Categories  []string        `json:"categories"`
}

// CategorySuggestion is returned by the categorize endpoint.
type CategorySuggestion struct {
	SuggestedCategory string `json:"suggestedCategory"`
	Source            string `json:"source"` // classifier, merchant, fallback
}

// CategorizedTransaction reports one result of a bulk run.
type CategorizedTransaction struct {
	ID                string `json:"id"`
	OriginalCategory  string `json:"originalCategory"`
	SuggestedCategory string `json:"suggestedCategory"`
}

// BulkCategorizeResult is returned by POST /v1/ai/bulk-categorize.
type BulkCategorizeResult struct {
	Message                 string                   `json:"message"`
	CategorizedTransactions []CategorizedTransaction `json:"categorizedTransactions"`
}

// PredictionRequest is sent to the external budget predictor.
type PredictionRequest struct {
	RequestID       string                     `json:"requestId"`
	Category        string                     `json:"category,omitempty"`
	MonthlySpending map[string]decimal.Decimal `json:"monthlySpending"`
}

// BudgetPrediction is the forecast for next month's spending.
type BudgetPrediction struct {
	PredictedAmount   decimal.Decimal `json:"predictedAmount"`
	Confidence        string          `json:"confidence"` // high, medium, low
	Trend             string          `json:"trend"`      // increasing, decreasing, stable
	Advice            string          `json:"advice"`
	RecommendedBudget decimal.Decimal `json:"recommendedBudget"`
	SeasonalFactors   string          `json:"seasonalFactors"`
}

// PredictionResponse is returned by GET /v1/ai/predict-budget.
type PredictionResponse struct {
	Prediction *BudgetPrediction `json:"prediction"`
	Message    string            `json:"message,omitempty"`
}

// ReceiptItem is a single line recognised on a receipt.
type ReceiptItem struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// ReceiptData is what the receipt scanner extracted from an image.
type ReceiptData struct {
	Merchant          string          `json:"merchant"`
	Total             decimal.Decimal `json:"total"`
	Date              Date            `json:"date"`
	SuggestedCategory string          `json:"suggestedCategory"`
	Items             []ReceiptItem   `json:"items,omitempty"`
}

// ReceiptScanResponse is returned by POST /v1/ai/scan-receipt.
type ReceiptScanResponse struct {
	ReceiptData *ReceiptData `json:"receiptData"`
	Message     string       `json:"message"`
}

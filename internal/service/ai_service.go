package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/aggregation"
	"github.com/financetracker/finance-tracker-go/internal/domain"
	"github.com/financetracker/finance-tracker-go/internal/infra/observability"
	"github.com/financetracker/finance-tracker-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var aiTracer = otel.Tracer("service/ai")

const (
	BulkCategorizeLimit       = 50
	bulkCategorizeConcurrency = 5

	predictionMonths          = 6
	minPredictionTransactions = 3
)

// Suggestion sources.
const (
	SourceClassifier = "classifier"
	SourceMerchant   = "merchant"
	SourceFallback   = "fallback"
)

// merchantPatterns maps merchant keywords onto categories, checked in order.
var merchantPatterns = []struct {
	category string
	keywords []string
}{
	{"Food & Dining", []string{"restaurant", "cafe", "pizza", "burger", "starbucks", "mcdonalds", "subway", "grocery", "market"}},
	{"Transportation", []string{"gas", "fuel", "uber", "lyft", "taxi", "metro", "parking", "shell", "exxon"}},
	{"Shopping", []string{"amazon", "walmart", "target", "mall", "store", "shop", "retail"}},
	{"Entertainment", []string{"netflix", "spotify", "cinema", "theater", "game", "steam"}},
	{"Bills & Utilities", []string{"electric", "water", "internet", "phone", "verizon", "att", "comcast"}},
	{"Healthcare", []string{"pharmacy", "hospital", "doctor", "medical", "cvs", "walgreens"}},
}

var (
	predictionConfidence = map[string]bool{"high": true, "medium": true, "low": true}
	predictionTrend      = map[string]bool{"increasing": true, "decreasing": true, "stable": true}
	fallbackBudgetFactor = decimal.RequireFromString("1.1")
)

// AIService wraps the external classifier and receipt scanner. Every answer
// is normalised against the configured category set before it is returned.
type AIService struct {
	classifier   port.Classifier
	scanner      port.ReceiptScanner
	transactions port.TransactionStore
	categories   domain.CategorySet
	metrics      *observability.Metrics
	logger       *zap.Logger
}

func NewAIService(
	classifier port.Classifier,
	scanner port.ReceiptScanner,
	transactions port.TransactionStore,
	categories domain.CategorySet,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AIService {
	return &AIService{
		classifier:   classifier,
		scanner:      scanner,
		transactions: transactions,
		categories:   categories,
		metrics:      metrics,
		logger:       logger,
	}
}

// MatchMerchant returns the category whose keywords appear in merchant, or
// "" when none does.
func MatchMerchant(merchant string) string {
	lower := strings.ToLower(merchant)
	if lower == "" {
		return ""
	}
	for _, p := range merchantPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.category
			}
		}
	}
	return ""
}

// SuggestCategory asks the classifier for a category. When the classifier
// fails, merchant keywords are tried before falling back to Other.
func (s *AIService) SuggestCategory(ctx context.Context, req *domain.CategorizeRequest) (*domain.CategorySuggestion, error) {
	ctx, span := aiTracer.Start(ctx, "AIService.SuggestCategory")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := s.classifier.Categorize(ctx, &domain.ClassificationRequest{
		RequestID:   uuid.NewString(),
		Description: req.Description,
		Amount:      req.Amount,
		Merchant:    req.Merchant,
		Categories:  s.categories.Names(),
	})
	s.metrics.RecordRequestDuration("classifier", time.Since(start))

	suggestion := &domain.CategorySuggestion{}
	switch {
	case err == nil:
		suggestion.SuggestedCategory = s.categories.Normalize(raw)
		suggestion.Source = SourceClassifier
	default:
		if cerr := contextError(ctx, "categorize"); cerr != nil {
			return nil, cerr
		}
		s.logger.Warn("classifier failed, using merchant patterns",
			zap.String("merchant", req.Merchant),
			zap.Error(err),
		)
		s.metrics.IncrStoreError("classifier")

		if cat := MatchMerchant(req.Merchant + " " + req.Description); cat != "" {
			suggestion.SuggestedCategory = s.categories.Normalize(cat)
			suggestion.Source = SourceMerchant
		} else {
			suggestion.SuggestedCategory = domain.FallbackCategory
			suggestion.Source = SourceFallback
		}
	}

	span.SetAttributes(
		attribute.String("category.suggested", suggestion.SuggestedCategory),
		attribute.String("category.source", suggestion.Source),
	)
	s.metrics.IncrCategorization(suggestion.Source)
	return suggestion, nil
}

// BulkCategorize classifies up to BulkCategorizeLimit of the user's
// transactions that were never auto-categorised. Items that fail are logged
// and left untouched.
func (s *AIService) BulkCategorize(ctx context.Context, userID string) (*domain.BulkCategorizeResult, error) {
	ctx, span := aiTracer.Start(ctx, "AIService.BulkCategorize")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := requireUser(userID); err != nil {
		return nil, err
	}

	pending, err := s.transactions.Find(ctx, userID, domain.TransactionFilter{
		Uncategorized: true,
		Limit:         BulkCategorizeLimit,
	})
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, wrapStoreError(ctx, "bulk categorize", err)
	}

	// Each worker writes only its own slot.
	results := make([]*domain.CategorizedTransaction, len(pending))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(bulkCategorizeConcurrency)

	for i, t := range pending {
		g.Go(func() error {
			suggestion, err := s.SuggestCategory(gCtx, &domain.CategorizeRequest{
				Description: t.Description,
				Amount:      t.Amount,
				Merchant:    t.Category,
			})
			if err != nil {
				if cerr := contextError(ctx, "bulk categorize"); cerr != nil {
					return cerr
				}
				s.logger.Warn("failed to categorize transaction",
					zap.String("transaction_id", t.ID),
					zap.Error(err),
				)
				return nil
			}

			updated := t
			updated.Category = suggestion.SuggestedCategory
			updated.AutoCategorized = true
			if _, err := s.transactions.Update(gCtx, &updated); err != nil {
				if cerr := contextError(ctx, "bulk categorize"); cerr != nil {
					return cerr
				}
				s.logger.Warn("failed to store categorized transaction",
					zap.String("transaction_id", t.ID),
					zap.Error(err),
				)
				s.metrics.IncrStoreError("transactions")
				return nil
			}

			results[i] = &domain.CategorizedTransaction{
				ID:                t.ID,
				OriginalCategory:  t.Category,
				SuggestedCategory: suggestion.SuggestedCategory,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.CategorizedTransaction, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	return &domain.BulkCategorizeResult{
		Message:                 fmt.Sprintf("Successfully categorized %d transactions", len(out)),
		CategorizedTransactions: out,
	}, nil
}

// PredictBudget forecasts next month's spending from the last six months of
// expenses, optionally limited to one category.
func (s *AIService) PredictBudget(ctx context.Context, userID, category string, now time.Time) (*domain.PredictionResponse, error) {
	ctx, span := aiTracer.Start(ctx, "AIService.PredictBudget")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("category", category))

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	window, err := aggregation.TrendWindow(predictionMonths, domain.DateOf(now))
	if err != nil {
		return nil, err
	}

	txns, err := s.transactions.Find(ctx, userID, domain.TransactionFilter{
		Type:     domain.TransactionExpense,
		Category: category,
		Window:   &window,
	})
	if err != nil {
		s.metrics.IncrStoreError("transactions")
		return nil, wrapStoreError(ctx, "predict budget", err)
	}

	if len(txns) < minPredictionTransactions {
		return &domain.PredictionResponse{
			Message: "Not enough transaction data for prediction. Need at least 3 transactions.",
		}, nil
	}

	monthly, err := aggregation.MonthlySpending(txns)
	if err != nil {
		return nil, err
	}

	prediction, err := s.classifier.PredictBudget(ctx, &domain.PredictionRequest{
		RequestID:       uuid.NewString(),
		Category:        category,
		MonthlySpending: monthly,
	})
	if err != nil {
		if cerr := contextError(ctx, "predict budget"); cerr != nil {
			return nil, cerr
		}
		s.logger.Warn("budget predictor failed, using historical average",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrStoreError("classifier")
		prediction = averagePrediction(monthly)
	}

	return &domain.PredictionResponse{Prediction: clampPrediction(prediction)}, nil
}

// averagePrediction builds a forecast from the mean monthly spend.
func averagePrediction(monthly map[string]decimal.Decimal) *domain.BudgetPrediction {
	total := decimal.Zero
	for _, v := range monthly {
		total = total.Add(v)
	}
	avg := decimal.Zero
	if len(monthly) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(monthly))))
	}
	return &domain.BudgetPrediction{
		PredictedAmount:   avg.Round(0),
		Confidence:        "medium",
		Trend:             "stable",
		Advice:            "Based on your historical data, consider maintaining your current spending pattern while looking for optimization opportunities.",
		RecommendedBudget: avg.Mul(fallbackBudgetFactor).Round(0),
		SeasonalFactors:   "No specific seasonal patterns detected.",
	}
}

// clampPrediction forces a forecast into its valid ranges.
func clampPrediction(p *domain.BudgetPrediction) *domain.BudgetPrediction {
	out := *p
	if out.PredictedAmount.IsNegative() {
		out.PredictedAmount = decimal.Zero
	}
	if out.RecommendedBudget.IsNegative() {
		out.RecommendedBudget = decimal.Zero
	}
	if !predictionConfidence[out.Confidence] {
		out.Confidence = "medium"
	}
	if !predictionTrend[out.Trend] {
		out.Trend = "stable"
	}
	if out.Advice == "" {
		out.Advice = "Continue monitoring your spending patterns."
	}
	if out.SeasonalFactors == "" {
		out.SeasonalFactors = "No seasonal factors identified."
	}
	return &out
}

// ScanReceipt forwards an image to the receipt scanner.
func (s *AIService) ScanReceipt(ctx context.Context, image []byte, contentType string) (*domain.ReceiptScanResponse, error) {
	ctx, span := aiTracer.Start(ctx, "AIService.ScanReceipt")
	defer span.End()

	if len(image) == 0 {
		return nil, &domain.ErrValidation{Field: "receipt", Message: "no receipt image provided"}
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, &domain.ErrValidation{Field: "receipt", Message: "only image files are allowed"}
	}

	start := time.Now()
	data, err := s.scanner.Scan(ctx, image, contentType)
	s.metrics.RecordRequestDuration("receipt_scan", time.Since(start))
	if err != nil {
		if cerr := contextError(ctx, "scan receipt"); cerr != nil {
			return nil, cerr
		}
		s.logger.Error("receipt scan failed", zap.Error(err))
		s.metrics.IncrStoreError("receipt")
		return nil, fmt.Errorf("scan receipt: %w", err)
	}

	data.SuggestedCategory = s.categories.Normalize(data.SuggestedCategory)
	if data.Total.IsNegative() {
		data.Total = decimal.Zero
	}
	return &domain.ReceiptScanResponse{
		ReceiptData: data,
		Message:     "Receipt scanned successfully",
	}, nil
}

package aggregation

import (
	"fmt"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Usage thresholds, in percent of the budgeted amount.
const (
	WarningThreshold = 80
	OverThreshold    = 100
)

var hundred = decimal.NewFromInt(100)

// PercentUsed returns round(spent / amount * 100), or 0 when either side is
// zero. Halves round away from zero.
func PercentUsed(spent, amount decimal.Decimal) int64 {
	if amount.IsZero() || spent.IsZero() {
		return 0
	}
	return spent.Mul(hundred).Div(amount).Round(0).IntPart()
}

// Classify maps a usage percentage onto its health bucket.
func Classify(percentUsed int64) (domain.BudgetHealth, error) {
	switch {
	case percentUsed < 0:
		return "", &domain.ErrComputation{
			Operation: "classify",
			Message:   fmt.Sprintf("negative percent used %d", percentUsed),
		}
	case percentUsed >= OverThreshold:
		return domain.BudgetOver, nil
	case percentUsed >= WarningThreshold:
		return domain.BudgetWarning, nil
	default:
		return domain.BudgetGood, nil
	}
}

// BuildStatus derives the status of a single budget from the transactions.
func BuildStatus(b domain.Budget, txns []domain.Transaction) (domain.BudgetStatus, error) {
	window, err := domain.MonthlyWindow(b.Month, b.Year)
	if err != nil {
		return domain.BudgetStatus{}, err
	}

	spent, err := sumWhere(txns, func(t domain.Transaction) bool {
		return t.Type == domain.TransactionExpense && t.Category == b.Category && window.Contains(t.Date)
	})
	if err != nil {
		return domain.BudgetStatus{}, err
	}

	percent := PercentUsed(spent, b.Amount)
	health, err := Classify(percent)
	if err != nil {
		return domain.BudgetStatus{}, fmt.Errorf("budget %s: %w", b.ID, err)
	}

	return domain.BudgetStatus{
		Budget:      b,
		Spent:       spent,
		Remaining:   b.Amount.Sub(spent),
		PercentUsed: percent,
		Status:      health,
	}, nil
}

// AttachSpending pairs every budget with its actual spend. The output has
// exactly one status per input budget, in input order.
func AttachSpending(budgets []domain.Budget, txns []domain.Transaction) ([]domain.BudgetStatus, error) {
	out := make([]domain.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		status, err := BuildStatus(b, txns)
		if err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

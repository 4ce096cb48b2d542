// Package aggregation rolls raw transactions up into report figures.
// Every function is a pure computation over its arguments: no I/O, no clock,
// and input slices are never modified.
package aggregation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/financetracker/finance-tracker-go/internal/domain"

	"github.com/shopspring/decimal"
)

// trendLabelLayout renders a trend point label such as "Mar 2024".
const trendLabelLayout = "Jan 2006"

// validate rejects transactions that cannot take part in a sum.
func validate(t domain.Transaction) error {
	if t.Date.IsZero() {
		return &domain.ErrValidation{Field: "date", Message: fmt.Sprintf("transaction %q has no date", t.ID)}
	}
	if !t.Amount.IsPositive() {
		return &domain.ErrValidation{Field: "amount", Message: fmt.Sprintf("transaction %q has non-positive amount %s", t.ID, t.Amount)}
	}
	if !t.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: fmt.Sprintf("transaction %q has unknown type %q", t.ID, t.Type)}
	}
	return nil
}

// sumWhere adds the amounts of every transaction accepted by keep.
// All transactions are validated, matching or not.
func sumWhere(txns []domain.Transaction, keep func(domain.Transaction) bool) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range txns {
		if err := validate(t); err != nil {
			return decimal.Zero, err
		}
		if keep(t) {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

// SumByType totals the transactions of the given type, restricted to window
// (inclusive) when it is non-nil. An empty input sums to zero.
func SumByType(txns []domain.Transaction, typ domain.TransactionType, window *domain.DateRange) (decimal.Decimal, error) {
	if !typ.Valid() {
		return decimal.Zero, &domain.ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	return sumWhere(txns, func(t domain.Transaction) bool {
		return t.Type == typ && (window == nil || window.Contains(t.Date))
	})
}

// GroupByCategory totals matching transactions per category. The result is
// ordered by total descending, then by category name ascending.
func GroupByCategory(txns []domain.Transaction, typ domain.TransactionType, window domain.DateRange) ([]domain.CategorySpending, error) {
	if !typ.Valid() {
		return nil, &domain.ErrValidation{Field: "type", Message: "must be income or expense"}
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, t := range txns {
		if err := validate(t); err != nil {
			return nil, err
		}
		if t.Type != typ || !window.Contains(t.Date) {
			continue
		}
		if sum, ok := totals[t.Category]; ok {
			totals[t.Category] = sum.Add(t.Amount)
		} else {
			totals[t.Category] = t.Amount
		}
	}

	out := make([]domain.CategorySpending, 0, len(totals))
	for cat, total := range totals {
		out = append(out, domain.CategorySpending{Category: cat, Total: total})
	}
	slices.SortFunc(out, func(a, b domain.CategorySpending) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.Category, b.Category)
	})
	return out, nil
}

// TrendWindow returns the inclusive range spanned by a trend series of
// monthCount months ending at anchor's month.
func TrendWindow(monthCount int, anchor domain.Date) (domain.DateRange, error) {
	if monthCount < 1 {
		return domain.DateRange{}, &domain.ErrValidation{Field: "months", Message: "must be at least 1"}
	}
	if anchor.IsZero() {
		return domain.DateRange{}, &domain.ErrValidation{Field: "anchor", Message: "required"}
	}
	first := domain.NewDate(anchor.Year(), anchor.Month()-time.Month(monthCount-1), 1)
	last := domain.NewDate(anchor.Year(), anchor.Month()+1, 0)
	return domain.DateRange{From: first, To: last}, nil
}

// TrendSeries produces monthCount consecutive monthly points ending at the
// month of anchor, oldest first. Months without activity are zero-valued.
func TrendSeries(txns []domain.Transaction, monthCount int, anchor domain.Date) ([]domain.MonthlyTrendPoint, error) {
	window, err := TrendWindow(monthCount, anchor)
	if err != nil {
		return nil, err
	}

	points := make([]domain.MonthlyTrendPoint, monthCount)
	index := make(map[string]int, monthCount)
	for i := range points {
		first := domain.NewDate(window.From.Year(), window.From.Month()+time.Month(i), 1)
		points[i] = domain.MonthlyTrendPoint{
			Month:    first.Format(trendLabelLayout),
			Period:   first.PeriodKey(),
			Income:   decimal.Zero,
			Expenses: decimal.Zero,
		}
		index[points[i].Period] = i
	}

	for _, t := range txns {
		if err := validate(t); err != nil {
			return nil, err
		}
		i, ok := index[t.Date.PeriodKey()]
		if !ok {
			continue
		}
		if t.Type == domain.TransactionIncome {
			points[i].Income = points[i].Income.Add(t.Amount)
		} else {
			points[i].Expenses = points[i].Expenses.Add(t.Amount)
		}
	}

	for i := range points {
		points[i].Net = points[i].Income.Sub(points[i].Expenses)
	}
	return points, nil
}

// CalendarAggregate buckets the transactions of one month by exact date.
// Only dates with at least one transaction appear in the result.
func CalendarAggregate(txns []domain.Transaction, month, year int) (map[string]domain.CalendarDay, error) {
	window, err := domain.MonthlyWindow(month, year)
	if err != nil {
		return nil, err
	}

	days := make(map[string]domain.CalendarDay)
	for _, t := range txns {
		if err := validate(t); err != nil {
			return nil, err
		}
		if !window.Contains(t.Date) {
			continue
		}
		key := t.Date.String()
		day, ok := days[key]
		if !ok {
			day = domain.CalendarDay{Date: t.Date, Income: decimal.Zero, Expenses: decimal.Zero}
		}
		if t.Type == domain.TransactionIncome {
			day.Income = day.Income.Add(t.Amount)
		} else {
			day.Expenses = day.Expenses.Add(t.Amount)
		}
		days[key] = day
	}
	return days, nil
}

// MonthlySpending totals expense transactions per YYYY-MM period.
func MonthlySpending(txns []domain.Transaction) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, t := range txns {
		if err := validate(t); err != nil {
			return nil, err
		}
		if t.Type != domain.TransactionExpense {
			continue
		}
		key := t.Date.PeriodKey()
		if sum, ok := out[key]; ok {
			out[key] = sum.Add(t.Amount)
		} else {
			out[key] = t.Amount
		}
	}
	return out, nil
}

// Recent returns up to n transactions ordered by domain.CompareRecency.
// The input slice is left untouched.
func Recent(txns []domain.Transaction, n int) []domain.Transaction {
	if n <= 0 {
		return []domain.Transaction{}
	}
	sorted := slices.Clone(txns)
	slices.SortFunc(sorted, domain.CompareRecency)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		return []domain.Transaction{}
	}
	return sorted
}

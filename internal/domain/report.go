package domain

import "github.com/shopspring/decimal"

// ============================================================
// Reports (derived, never persisted)
// ============================================================

// CategorySpending is the total spent in one category over a window.
type CategorySpending struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// MonthlyTrendPoint is the income/expense rollup of one calendar month.
type MonthlyTrendPoint struct {
	Month    string          `json:"month"`  // display label, e.g. "Mar 2024"
	Period   string          `json:"period"` // YYYY-MM
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// CalendarDay accumulates the income and expenses of a single date.
type CalendarDay struct {
	Date     Date            `json:"-"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// DashboardSummary is returned by GET /v1/reports/dashboard.
type DashboardSummary struct {
	NetBalance         decimal.Decimal `json:"netBalance"`
	TotalIncome        decimal.Decimal `json:"totalIncome"`
	TotalExpenses      decimal.Decimal `json:"totalExpenses"`
	MonthlyIncome      decimal.Decimal `json:"monthlyIncome"`
	MonthlyExpenses    decimal.Decimal `json:"monthlyExpenses"`
	RecentTransactions []Transaction   `json:"recentTransactions"`
}

// CategoryBreakdown is returned by GET /v1/reports/spending-by-category.
type CategoryBreakdown struct {
	CategorySpending []CategorySpending `json:"categorySpending"`
}

// MonthlyTrends is returned by GET /v1/reports/monthly-trends.
type MonthlyTrends struct {
	Trends []MonthlyTrendPoint `json:"trends"`
}

// CalendarView is returned by GET /v1/reports/calendar.
type CalendarView struct {
	CalendarData map[string]CalendarDay `json:"calendarData"`
}

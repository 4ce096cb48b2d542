package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// ServiceMetrics is returned by GET /v1/metrics/service.
type ServiceMetrics struct {
	StoreErrors          float64            `json:"storeErrors"`
	CacheHitRate         float64            `json:"cacheHitRate"`
	BudgetClassification map[string]float64 `json:"budgetClassification"`
	Categorizations      map[string]float64 `json:"categorizations"`
	Period               string             `json:"period"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// TransactionResponse wraps a created or updated transaction.
type TransactionResponse struct {
	Message     string       `json:"message"`
	Transaction *Transaction `json:"transaction"`
}

// BudgetResponse wraps a created or updated budget.
type BudgetResponse struct {
	Message string  `json:"message"`
	Budget  *Budget `json:"budget"`
}

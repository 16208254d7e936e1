package models

// OrderStatus is the lifecycle stage of one copy attempt.
type OrderStatus string

const (
	StatusDetected   OrderStatus = "DETECTED"
	StatusValidating OrderStatus = "VALIDATING"
	StatusSkipped    OrderStatus = "SKIPPED"
	StatusPlacing    OrderStatus = "PLACING"
	StatusFilled     OrderStatus = "FILLED"
	StatusFailed     OrderStatus = "FAILED"
)

// Skip reason codes. Skips are routine business-rule outcomes, never errors.
const (
	ReasonSellTrade      = "sell_trade"
	ReasonStale          = "stale"
	ReasonMarketClosed   = "market_closed"
	ReasonResolved       = "resolved"
	ReasonPriceDrift     = "price_drift"
	ReasonZeroOrder      = "zero_order"
	ReasonCircuitBreaker = "circuit_breaker"
)

// Engine states broadcast to observers.
const (
	EngineActive = "ACTIVE"
	EnginePaused = "PAUSED"
)

// StatusEvent reports one stage of a copy attempt's lifecycle. Events are
// append-only, fire-and-forget broadcasts; delivery is never retried.
type StatusEvent struct {
	Type        string       `json:"type"` // always "status"
	OrderID     *string      `json:"orderId"`
	Status      OrderStatus  `json:"status"`
	Message     string       `json:"message"`
	Reason      string       `json:"reason,omitempty"`
	Error       string       `json:"error,omitempty"`
	Timestamp   int64        `json:"timestamp"`
	WalletLabel string       `json:"walletLabel,omitempty"`
	Trade       *TradeSignal `json:"trade,omitempty"`
}

// BalanceEvent carries the latest sampled USDC.e balance.
type BalanceEvent struct {
	Type      string  `json:"type"` // always "balance"
	USDCe     float64 `json:"usdce"`
	Timestamp int64   `json:"timestamp"`
}

// EngineEvent announces circuit-breaker state changes.
type EngineEvent struct {
	Type    string `json:"type"` // always "engine"
	Status  string `json:"status"`
	Message string `json:"message"`
}

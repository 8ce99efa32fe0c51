package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the per-agent cash account. One account per agent, created once
// at provisioning and mutated only through ledger operations.
type Account struct {
	AgentID string `json:"agent_id"`
	// CashBalance is non-negative at all times.
	CashBalance decimal.Decimal `json:"cash_balance"`
	// InitialCash is the recorded starting value, the baseline for
	// performance reporting.
	InitialCash decimal.Decimal `json:"initial_cash"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Holding is a position in one symbol under average-cost accounting.
// Quantity is strictly positive while the holding exists; the row is removed
// when it reaches exactly zero.
type Holding struct {
	AgentID  string          `json:"agent_id"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
}

// HoldingValue is a holding priced at a supplied current price.
type HoldingValue struct {
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	MarketValue decimal.Decimal `json:"market_value"`
}

// PortfolioSnapshot is a consistent point-in-time read of an account.
type PortfolioSnapshot struct {
	AgentID     string          `json:"agent_id"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	Holdings    []HoldingValue  `json:"holdings"`
	TotalValue  decimal.Decimal `json:"total_value"`
	TradeCount  int             `json:"trade_count"`
}

// PerformancePoint is one sample in an account's portfolio value series,
// replayed deterministically from the trade log.
type PerformancePoint struct {
	Timestamp      time.Time       `json:"timestamp"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	ProfitLoss     decimal.Decimal `json:"profit_loss"`
	ReturnPercent  decimal.Decimal `json:"return_percent"`
}

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide indicates the direction of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// TradeStatus indicates whether a trade was applied to the account or
// rejected during validation. Rejected trades are kept for audit and never
// touch balances or holdings.
type TradeStatus string

const (
	TradeStatusFilled   TradeStatus = "FILLED"
	TradeStatusRejected TradeStatus = "REJECTED"
)

// Trade is one entry in an account's append-only trade log. The trade log is
// the sole source of truth for trade history and realized P&L.
type Trade struct {
	ID       string          `json:"id"`
	AgentID  string          `json:"agent_id"`
	Symbol   string          `json:"symbol"`
	Side     TradeSide       `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	// Total is Quantity × Price at execution time.
	Total decimal.Decimal `json:"total"`
	// RealizedPnL is Quantity × (Price − avg cost) for FILLED sells, zero otherwise.
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	// Rationale is the free-text reasoning supplied by the advisor, stored verbatim.
	Rationale string      `json:"rationale"`
	Status    TradeStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// TradeIntent is the action emitted by the external reasoning service.
// The rationale is opaque to this system; only the structured fields are
// validated before execution.
type TradeIntent struct {
	Symbol    string  `json:"symbol" validate:"required"`
	Side      string  `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price" validate:"required,gt=0"`
	Rationale string  `json:"rationale"`
}

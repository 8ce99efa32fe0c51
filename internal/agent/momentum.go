package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-desk/internal/types"
)

// MomentumAdvisor is a built-in advisor used when no external reasoning
// service is wired in. It reads the closing prices from a bar payload and
// follows the last move: buy on an uptick, sell on a downtick. Sells against
// an empty position come back as rejections, which the runner tolerates.
type MomentumAdvisor struct {
	// Quantity is the fixed order size for every intent.
	Quantity float64
}

// NewMomentumAdvisor creates a MomentumAdvisor with the given order size.
func NewMomentumAdvisor(quantity float64) *MomentumAdvisor {
	return &MomentumAdvisor{
		Quantity: quantity,
	}
}

type closeBar struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

// Consult implements Advisor.
func (a *MomentumAdvisor) Consult(_ context.Context, _ string, market types.CacheResult) (optional.Option[types.TradeIntent], error) {
	var bars []closeBar
	if err := json.Unmarshal(market.Payload, &bars); err != nil || len(bars) < 2 {
		// Not a bar series, or too short to read a direction.
		return optional.None[types.TradeIntent](), nil
	}

	prev := bars[len(bars)-2].Close
	last := bars[len(bars)-1].Close
	symbol := bars[len(bars)-1].Symbol

	if last <= 0 || prev <= 0 || symbol == "" || last == prev {
		return optional.None[types.TradeIntent](), nil
	}

	side := types.TradeSideBuy
	if last < prev {
		side = types.TradeSideSell
	}

	return optional.Some(types.TradeIntent{
		Symbol:    symbol,
		Side:      string(side),
		Quantity:  a.Quantity,
		Price:     last,
		Rationale: fmt.Sprintf("close moved %.4f -> %.4f", prev, last),
	}), nil
}

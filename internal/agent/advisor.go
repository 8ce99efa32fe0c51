package agent

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-desk/internal/types"
)

// Advisor is the external reasoning service, consumed as a black box. Given
// the latest market data it emits a trade intent or no action; its rationale
// is stored verbatim and never interpreted.
type Advisor interface {
	Consult(ctx context.Context, agentID string, market types.CacheResult) (optional.Option[types.TradeIntent], error)
}

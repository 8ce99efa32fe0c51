// Package desk is the consumer-facing surface of the trading desk: cached
// market data, briefing lineage, portfolio accounting, and trade execution,
// all correlated by session id and instrumented with best-effort telemetry.
package desk

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-desk/internal/ledger"
	"github.com/rxtech-lab/argo-desk/internal/lineage"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/marketcache"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/internal/session"
	"github.com/rxtech-lab/argo-desk/internal/telemetry"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"github.com/shopspring/decimal"
)

// Desk wires the cache store, ledger, lineage tracker, session registry, and
// tool-usage recorder behind one API.
type Desk struct {
	cache    *marketcache.Store
	ledger   *ledger.Ledger
	lineage  *lineage.Tracker
	sessions *session.Registry
	recorder *telemetry.Recorder
	validate *validator.Validate
	logger   *logger.Logger
}

// New assembles a Desk over one repository backend and one fetcher.
func New(repo repository.Repository, fetcher marketcache.Fetcher, cacheConfig marketcache.Config, log *logger.Logger) *Desk {
	return &Desk{
		cache:    marketcache.NewStore(repo, fetcher, cacheConfig, log),
		ledger:   ledger.New(repo, log),
		lineage:  lineage.NewTracker(repo, repo, log),
		sessions: session.NewRegistry(repo, log),
		recorder: telemetry.NewRecorder(repo, log),
		validate: validator.New(),
		logger:   log,
	}
}

// ProvisionAccount creates an agent's account if it does not exist yet.
func (d *Desk) ProvisionAccount(ctx context.Context, agentID string, initialCash decimal.Decimal) (types.Account, error) {
	return d.ledger.CreateAccount(ctx, agentID, initialCash)
}

// GetMarketData returns cached-or-fresh market data for the session,
// recording the lookup in the session history and the telemetry log.
func (d *Desk) GetMarketData(ctx context.Context, sessionID, provider, function string, params map[string]string) (types.CacheResult, error) {
	if _, err := d.sessions.Ensure(ctx, sessionID, ""); err != nil {
		return types.CacheResult{}, err
	}

	args := argsJSON(map[string]any{"provider": provider, "function": function, "params": params})

	var result types.CacheResult

	_, err := d.recorder.Instrument(ctx, sessionID, "get_market_data", args, func() ([]byte, error) {
		var fetchErr error
		result, fetchErr = d.cache.GetOrFetch(ctx, provider, function, params)

		return result.Payload, fetchErr
	})
	if err != nil {
		return types.CacheResult{}, err
	}

	d.appendEvent(ctx, sessionID, "cache_lookup", map[string]any{
		"provider":   provider,
		"function":   function,
		"was_cached": result.WasCached,
		"degraded":   result.Degraded,
		"entry_id":   result.EntryID,
	})

	return result, nil
}

// RecordBriefing persists a briefing with lineage links back to the cache
// entries it consumed.
func (d *Desk) RecordBriefing(ctx context.Context, sessionID, query, content string, usedCacheEntryIDs []string) (types.Briefing, error) {
	if _, err := d.sessions.Ensure(ctx, sessionID, query); err != nil {
		return types.Briefing{}, err
	}

	briefing, err := d.lineage.RecordBriefing(ctx, sessionID, query, content, usedCacheEntryIDs)
	if err != nil {
		return types.Briefing{}, err
	}

	d.appendEvent(ctx, sessionID, "briefing_recorded", map[string]any{
		"briefing_id": briefing.ID,
		"sources":     len(usedCacheEntryIDs),
	})

	return briefing, nil
}

// ExecuteTrade validates and executes a trade intent against the agent's
// account. Validation and business-rule failures come back to the caller;
// the reasoning loop decides whether to retry.
func (d *Desk) ExecuteTrade(ctx context.Context, sessionID, agentID, symbol, side string, quantity, price float64, rationale string) (types.Trade, error) {
	if _, err := d.sessions.Ensure(ctx, sessionID, ""); err != nil {
		return types.Trade{}, err
	}

	intent := types.TradeIntent{
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Rationale: rationale,
	}

	if err := d.validate.Struct(intent); err != nil {
		return types.Trade{}, errors.Wrap(errors.ErrCodeInvalidIntent, "invalid trade intent", err)
	}

	args := argsJSON(map[string]any{"agent_id": agentID, "symbol": symbol, "side": side, "quantity": quantity, "price": price})

	var trade types.Trade

	_, err := d.recorder.Instrument(ctx, sessionID, "execute_trade", args, func() ([]byte, error) {
		qty := decimal.NewFromFloat(quantity)
		px := decimal.NewFromFloat(price)

		var tradeErr error

		switch types.TradeSide(side) {
		case types.TradeSideBuy:
			trade, tradeErr = d.ledger.Buy(ctx, agentID, symbol, qty, px, rationale)
		case types.TradeSideSell:
			trade, tradeErr = d.ledger.Sell(ctx, agentID, symbol, qty, px, rationale)
		default:
			tradeErr = errors.Newf(errors.ErrCodeInvalidSide, "unknown trade side %q", side)
		}

		if tradeErr != nil {
			return nil, tradeErr
		}

		payload, _ := json.Marshal(trade)

		return payload, nil
	})
	if err != nil {
		return types.Trade{}, err
	}

	d.appendEvent(ctx, sessionID, "trade_executed", map[string]any{
		"trade_id": trade.ID,
		"agent_id": agentID,
		"symbol":   symbol,
		"side":     side,
	})

	return trade, nil
}

// GetPortfolio returns a consistent snapshot of the account, valued at the
// supplied current prices.
func (d *Desk) GetPortfolio(ctx context.Context, agentID string, currentPrices map[string]decimal.Decimal) (types.PortfolioSnapshot, error) {
	return d.ledger.Snapshot(ctx, agentID, currentPrices)
}

// GetTrades returns the agent's trade log, most recent first.
func (d *Desk) GetTrades(ctx context.Context, agentID string, limit int) ([]types.Trade, error) {
	return d.ledger.Trades(ctx, agentID, limit)
}

// GetPerformance returns the agent's portfolio value series replayed from
// the trade log.
func (d *Desk) GetPerformance(ctx context.Context, agentID string) ([]types.PerformancePoint, error) {
	return d.ledger.PerformanceHistory(ctx, agentID)
}

// FreshnessStats aggregates lineage freshness over a time range.
func (d *Desk) FreshnessStats(ctx context.Context, from, to time.Time) (types.FreshnessStats, error) {
	return d.lineage.FreshnessStats(ctx, from, to)
}

// SessionHistory returns a session's recorded interaction history.
func (d *Desk) SessionHistory(ctx context.Context, sessionID string) ([]types.SessionEvent, error) {
	return d.sessions.History(ctx, sessionID)
}

// appendEvent is best-effort: correlation must never fail an operation that
// already succeeded.
func (d *Desk) appendEvent(ctx context.Context, sessionID, kind string, detail map[string]any) {
	if err := d.sessions.AppendEvent(ctx, sessionID, kind, detail); err != nil {
		d.logger.Warn("failed to append session event")
	}
}

func argsJSON(args map[string]any) string {
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}

	return string(data)
}

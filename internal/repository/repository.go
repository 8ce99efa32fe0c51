// Package repository persists the desk's logical schema over either an
// embedded DuckDB file or a networked PostgreSQL database. Callers depend
// only on the repository interfaces; the backend is selected once at startup
// and never branched on elsewhere.
package repository

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-desk/internal/config"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/shopspring/decimal"
)

// CacheRepository stores external market-data call results.
type CacheRepository interface {
	// InsertCacheEntry appends one entry. Entries are immutable once written.
	InsertCacheEntry(ctx context.Context, entry types.CacheEntry) error
	// LatestCacheEntry returns the newest entry for a key regardless of outcome.
	LatestCacheEntry(ctx context.Context, provider, function, paramHash string) (optional.Option[types.CacheEntry], error)
	// LatestSuccessfulCacheEntry returns the newest successful entry for a key,
	// used for stale-if-error fallback.
	LatestSuccessfulCacheEntry(ctx context.Context, provider, function, paramHash string) (optional.Option[types.CacheEntry], error)
	// GetCacheEntries resolves entries by id.
	GetCacheEntries(ctx context.Context, ids []string) ([]types.CacheEntry, error)
}

// SessionRepository stores interaction sessions and their histories.
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (optional.Option[types.Session], error)
	CreateSession(ctx context.Context, session types.Session) error
	// AppendSessionEvent appends one event to the session's ordered history.
	AppendSessionEvent(ctx context.Context, sessionID string, event types.SessionEvent) error
}

// LineageRepository stores briefings and their links back to cache entries.
type LineageRepository interface {
	InsertBriefing(ctx context.Context, briefing types.Briefing) error
	InsertLineageLinks(ctx context.Context, links []types.LineageLink) error
	LineageForBriefing(ctx context.Context, briefingID string) ([]types.LineageLink, error)
	// FreshnessInRange returns the freshness values of all links created in
	// [from, to], for aggregate statistics.
	FreshnessInRange(ctx context.Context, from, to time.Time) ([]float64, error)
}

// ToolUsageRepository stores best-effort telemetry records.
type ToolUsageRepository interface {
	InsertToolCall(ctx context.Context, record types.ToolCallRecord) error
}

// TradeApplication is one atomic ledger mutation: the trade-log append, the
// new cash balance, and the resulting holding. All three take effect in a
// single transaction or not at all.
type TradeApplication struct {
	Trade      types.Trade
	NewBalance decimal.Decimal
	// Holding is the post-trade holding; None means the row is removed
	// (quantity reached exactly zero).
	Holding optional.Option[types.Holding]
}

// LedgerRepository stores accounts, holdings, and the trade log.
type LedgerRepository interface {
	CreateAccount(ctx context.Context, account types.Account) error
	GetAccount(ctx context.Context, agentID string) (optional.Option[types.Account], error)
	GetHolding(ctx context.Context, agentID, symbol string) (optional.Option[types.Holding], error)
	ListHoldings(ctx context.Context, agentID string) ([]types.Holding, error)
	// ApplyTrade applies a filled trade atomically; the caller is acknowledged
	// only after the transaction is durably committed.
	ApplyTrade(ctx context.Context, application TradeApplication) error
	// InsertRejectedTrade appends an audit row without touching balances.
	InsertRejectedTrade(ctx context.Context, trade types.Trade) error
	// ListTrades returns trades most recent first; limit <= 0 means no limit.
	ListTrades(ctx context.Context, agentID string, limit int) ([]types.Trade, error)
	// ListFilledTradesAsc returns filled trades in execution order for
	// deterministic performance replay.
	ListFilledTradesAsc(ctx context.Context, agentID string) ([]types.Trade, error)
	CountTrades(ctx context.Context, agentID string) (int, error)
}

// Repository is the full persistence surface behind one backend.
type Repository interface {
	CacheRepository
	SessionRepository
	LineageRepository
	ToolUsageRepository
	LedgerRepository

	// Initialize creates the schema if it does not exist.
	Initialize(ctx context.Context) error
	Close() error
}

// New opens the backend selected by the database configuration: PostgreSQL
// when a connection URL is present, the embedded DuckDB file otherwise.
func New(cfg config.DatabaseConfig, log *logger.Logger) (Repository, error) {
	if cfg.PostgresURL != "" {
		return NewPostgres(cfg.PostgresURL, log)
	}

	return NewDuckDB(cfg.DuckDBPath, log)
}

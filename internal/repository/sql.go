package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"github.com/shopspring/decimal"
)

// sqlRepository realizes the full Repository over database/sql. Both
// backends share this implementation; only the driver and placeholder
// format differ, fixed at construction.
type sqlRepository struct {
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
}

var _ Repository = (*sqlRepository)(nil)

// Initialize creates the schema if it does not exist.
func (r *sqlRepository) Initialize(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, statement); err != nil {
			return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to create schema", err)
		}
	}

	return nil
}

// Close releases the underlying database handle.
func (r *sqlRepository) Close() error {
	return r.db.Close()
}

// InsertCacheEntry implements CacheRepository.
func (r *sqlRepository) InsertCacheEntry(ctx context.Context, entry types.CacheEntry) error {
	return withRetry(ctx, r.logger, "insert cache entry", func() error {
		_, err := r.sq.Insert("cache_entries").
			Columns("id", "provider", "function", "param_hash", "params", "payload", "success", "error", "created_at").
			Values(entry.ID, entry.Provider, entry.Function, entry.ParamHash, entry.Params,
				string(entry.Payload), entry.Success, entry.Error, entry.CreatedAt.UTC()).
			RunWith(r.db).ExecContext(ctx)

		return err
	})
}

// LatestCacheEntry implements CacheRepository.
func (r *sqlRepository) LatestCacheEntry(ctx context.Context, provider, function, paramHash string) (optional.Option[types.CacheEntry], error) {
	return r.latestCacheEntry(ctx, squirrel.Eq{
		"provider":   provider,
		"function":   function,
		"param_hash": paramHash,
	})
}

// LatestSuccessfulCacheEntry implements CacheRepository.
func (r *sqlRepository) LatestSuccessfulCacheEntry(ctx context.Context, provider, function, paramHash string) (optional.Option[types.CacheEntry], error) {
	return r.latestCacheEntry(ctx, squirrel.Eq{
		"provider":   provider,
		"function":   function,
		"param_hash": paramHash,
		"success":    true,
	})
}

func (r *sqlRepository) latestCacheEntry(ctx context.Context, where squirrel.Eq) (optional.Option[types.CacheEntry], error) {
	result := optional.None[types.CacheEntry]()

	err := withRetry(ctx, r.logger, "query latest cache entry", func() error {
		row := r.sq.Select("id", "provider", "function", "param_hash", "params", "payload", "success", "error", "created_at").
			From("cache_entries").
			Where(where).
			OrderBy("created_at DESC").
			Limit(1).
			RunWith(r.db).QueryRowContext(ctx)

		entry, err := scanCacheEntry(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = optional.None[types.CacheEntry]()

				return nil
			}

			return err
		}

		result = optional.Some(entry)

		return nil
	})
	if err != nil {
		return optional.None[types.CacheEntry](), err
	}

	return result, nil
}

// GetCacheEntries implements CacheRepository.
func (r *sqlRepository) GetCacheEntries(ctx context.Context, ids []string) ([]types.CacheEntry, error) {
	if len(ids) == 0 {
		return []types.CacheEntry{}, nil
	}

	var entries []types.CacheEntry

	err := withRetry(ctx, r.logger, "query cache entries", func() error {
		rows, err := r.sq.Select("id", "provider", "function", "param_hash", "params", "payload", "success", "error", "created_at").
			From("cache_entries").
			Where(squirrel.Eq{"id": ids}).
			RunWith(r.db).QueryContext(ctx)
		if err != nil {
			return err
		}
		defer rows.Close()

		entries = entries[:0]

		for rows.Next() {
			entry, err := scanCacheEntry(rows)
			if err != nil {
				return err
			}

			entries = append(entries, entry)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// GetSession implements SessionRepository.
func (r *sqlRepository) GetSession(ctx context.Context, sessionID string) (optional.Option[types.Session], error) {
	result := optional.None[types.Session]()

	err := withRetry(ctx, r.logger, "query session", func() error {
		row := r.sq.Select("id", "query", "history", "created_at", "updated_at").
			From("sessions").
			Where(squirrel.Eq{"id": sessionID}).
			RunWith(r.db).QueryRowContext(ctx)

		session, err := scanSession(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = optional.None[types.Session]()

				return nil
			}

			return err
		}

		result = optional.Some(session)

		return nil
	})
	if err != nil {
		return optional.None[types.Session](), err
	}

	return result, nil
}

// CreateSession implements SessionRepository.
func (r *sqlRepository) CreateSession(ctx context.Context, session types.Session) error {
	history, err := json.Marshal(session.History)
	if err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFailed, "failed to encode session history", err)
	}

	return withRetry(ctx, r.logger, "create session", func() error {
		_, err := r.sq.Insert("sessions").
			Columns("id", "query", "history", "created_at", "updated_at").
			Values(session.ID, session.Query, string(history), session.CreatedAt.UTC(), session.UpdatedAt.UTC()).
			RunWith(r.db).ExecContext(ctx)
		if isUniqueViolation(err) {
			return backoffPermanent(errors.Newf(errors.ErrCodeSessionExists, "session %s already exists", session.ID))
		}

		return err
	})
}

// AppendSessionEvent implements SessionRepository. The read-modify-write of
// the history column happens inside one transaction.
func (r *sqlRepository) AppendSessionEvent(ctx context.Context, sessionID string, event types.SessionEvent) error {
	return withRetry(ctx, r.logger, "append session event", func() error {
		return r.inTx(ctx, func(tx *sql.Tx) error {
			row := r.sq.Select("history").
				From("sessions").
				Where(squirrel.Eq{"id": sessionID}).
				RunWith(tx).QueryRowContext(ctx)

			var rawHistory string
			if err := row.Scan(&rawHistory); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return backoffPermanent(errors.Newf(errors.ErrCodeSessionNotFound, "session %s not found", sessionID))
				}

				return err
			}

			var history []types.SessionEvent
			if err := json.Unmarshal([]byte(rawHistory), &history); err != nil {
				return err
			}

			history = append(history, event)

			encoded, err := json.Marshal(history)
			if err != nil {
				return err
			}

			_, err = r.sq.Update("sessions").
				Set("history", string(encoded)).
				Set("updated_at", event.Timestamp.UTC()).
				Where(squirrel.Eq{"id": sessionID}).
				RunWith(tx).ExecContext(ctx)

			return err
		})
	})
}

// InsertBriefing implements LineageRepository.
func (r *sqlRepository) InsertBriefing(ctx context.Context, briefing types.Briefing) error {
	return withRetry(ctx, r.logger, "insert briefing", func() error {
		_, err := r.sq.Insert("briefings").
			Columns("id", "session_id", "query", "content", "created_at").
			Values(briefing.ID, briefing.SessionID, briefing.Query, briefing.Content, briefing.CreatedAt.UTC()).
			RunWith(r.db).ExecContext(ctx)

		return err
	})
}

// InsertLineageLinks implements LineageRepository.
func (r *sqlRepository) InsertLineageLinks(ctx context.Context, links []types.LineageLink) error {
	if len(links) == 0 {
		return nil
	}

	return withRetry(ctx, r.logger, "insert lineage links", func() error {
		insert := r.sq.Insert("lineage_links").
			Columns("briefing_id", "cache_entry_id", "freshness_seconds", "created_at")

		for _, link := range links {
			insert = insert.Values(link.BriefingID, link.CacheEntryID, link.FreshnessSeconds, link.CreatedAt.UTC())
		}

		_, err := insert.RunWith(r.db).ExecContext(ctx)

		return err
	})
}

// LineageForBriefing implements LineageRepository.
func (r *sqlRepository) LineageForBriefing(ctx context.Context, briefingID string) ([]types.LineageLink, error) {
	var links []types.LineageLink

	err := withRetry(ctx, r.logger, "query lineage", func() error {
		rows, err := r.sq.Select("briefing_id", "cache_entry_id", "freshness_seconds", "created_at").
			From("lineage_links").
			Where(squirrel.Eq{"briefing_id": briefingID}).
			RunWith(r.db).QueryContext(ctx)
		if err != nil {
			return err
		}
		defer rows.Close()

		links = links[:0]

		for rows.Next() {
			var link types.LineageLink
			if err := rows.Scan(&link.BriefingID, &link.CacheEntryID, &link.FreshnessSeconds, &link.CreatedAt); err != nil {
				return err
			}

			links = append(links, link)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return links, nil
}

// FreshnessInRange implements LineageRepository.
func (r *sqlRepository) FreshnessInRange(ctx context.Context, from, to time.Time) ([]float64, error) {
	var values []float64

	err := withRetry(ctx, r.logger, "query freshness", func() error {
		rows, err := r.sq.Select("freshness_seconds").
			From("lineage_links").
			Where(squirrel.GtOrEq{"created_at": from.UTC()}).
			Where(squirrel.LtOrEq{"created_at": to.UTC()}).
			OrderBy("freshness_seconds ASC").
			RunWith(r.db).QueryContext(ctx)
		if err != nil {
			return err
		}
		defer rows.Close()

		values = values[:0]

		for rows.Next() {
			var v float64
			if err := rows.Scan(&v); err != nil {
				return err
			}

			values = append(values, v)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}

// InsertToolCall implements ToolUsageRepository.
func (r *sqlRepository) InsertToolCall(ctx context.Context, record types.ToolCallRecord) error {
	return withRetry(ctx, r.logger, "insert tool call", func() error {
		_, err := r.sq.Insert("tool_calls").
			Columns("id", "session_id", "tool", "args", "response_size", "elapsed_ms", "success", "error", "created_at").
			Values(record.ID, record.SessionID, record.Tool, record.Args, record.ResponseSize,
				record.Elapsed.Milliseconds(), record.Success, record.Error, record.CreatedAt.UTC()).
			RunWith(r.db).ExecContext(ctx)

		return err
	})
}

// CreateAccount implements LedgerRepository.
func (r *sqlRepository) CreateAccount(ctx context.Context, account types.Account) error {
	return withRetry(ctx, r.logger, "create account", func() error {
		_, err := r.sq.Insert("accounts").
			Columns("agent_id", "cash_balance", "initial_cash", "created_at").
			Values(account.AgentID, account.CashBalance.String(), account.InitialCash.String(), account.CreatedAt.UTC()).
			RunWith(r.db).ExecContext(ctx)
		if isUniqueViolation(err) {
			return backoffPermanent(errors.Newf(errors.ErrCodeAccountExists, "account %s already exists", account.AgentID))
		}

		return err
	})
}

// GetAccount implements LedgerRepository.
func (r *sqlRepository) GetAccount(ctx context.Context, agentID string) (optional.Option[types.Account], error) {
	result := optional.None[types.Account]()

	err := withRetry(ctx, r.logger, "query account", func() error {
		row := r.sq.Select("agent_id", "cash_balance", "initial_cash", "created_at").
			From("accounts").
			Where(squirrel.Eq{"agent_id": agentID}).
			RunWith(r.db).QueryRowContext(ctx)

		var (
			account     types.Account
			cash        string
			initialCash string
		)

		if err := row.Scan(&account.AgentID, &cash, &initialCash, &account.CreatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = optional.None[types.Account]()

				return nil
			}

			return err
		}

		var err error
		if account.CashBalance, err = decimal.NewFromString(cash); err != nil {
			return err
		}

		if account.InitialCash, err = decimal.NewFromString(initialCash); err != nil {
			return err
		}

		result = optional.Some(account)

		return nil
	})
	if err != nil {
		return optional.None[types.Account](), err
	}

	return result, nil
}

// GetHolding implements LedgerRepository.
func (r *sqlRepository) GetHolding(ctx context.Context, agentID, symbol string) (optional.Option[types.Holding], error) {
	result := optional.None[types.Holding]()

	err := withRetry(ctx, r.logger, "query holding", func() error {
		row := r.sq.Select("agent_id", "symbol", "quantity", "avg_cost").
			From("holdings").
			Where(squirrel.Eq{"agent_id": agentID, "symbol": symbol}).
			RunWith(r.db).QueryRowContext(ctx)

		holding, err := scanHolding(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = optional.None[types.Holding]()

				return nil
			}

			return err
		}

		result = optional.Some(holding)

		return nil
	})
	if err != nil {
		return optional.None[types.Holding](), err
	}

	return result, nil
}

// ListHoldings implements LedgerRepository.
func (r *sqlRepository) ListHoldings(ctx context.Context, agentID string) ([]types.Holding, error) {
	var holdings []types.Holding

	err := withRetry(ctx, r.logger, "query holdings", func() error {
		rows, err := r.sq.Select("agent_id", "symbol", "quantity", "avg_cost").
			From("holdings").
			Where(squirrel.Eq{"agent_id": agentID}).
			OrderBy("symbol ASC").
			RunWith(r.db).QueryContext(ctx)
		if err != nil {
			return err
		}
		defer rows.Close()

		holdings = holdings[:0]

		for rows.Next() {
			holding, err := scanHolding(rows)
			if err != nil {
				return err
			}

			holdings = append(holdings, holding)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return holdings, nil
}

// ApplyTrade implements LedgerRepository. The balance update, holding upsert
// or removal, and the trade-log append commit as one transaction; a crash
// before commit leaves no trace of the trade.
func (r *sqlRepository) ApplyTrade(ctx context.Context, application TradeApplication) error {
	return withRetry(ctx, r.logger, "apply trade", func() error {
		return r.inTx(ctx, func(tx *sql.Tx) error {
			trade := application.Trade

			_, err := r.sq.Update("accounts").
				Set("cash_balance", application.NewBalance.String()).
				Where(squirrel.Eq{"agent_id": trade.AgentID}).
				RunWith(tx).ExecContext(ctx)
			if err != nil {
				return err
			}

			if application.Holding.IsSome() {
				holding := application.Holding.Unwrap()

				_, err = r.sq.Insert("holdings").
					Columns("agent_id", "symbol", "quantity", "avg_cost").
					Values(holding.AgentID, holding.Symbol, holding.Quantity.String(), holding.AvgCost.String()).
					Suffix("ON CONFLICT (agent_id, symbol) DO UPDATE SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost").
					RunWith(tx).ExecContext(ctx)
			} else {
				_, err = r.sq.Delete("holdings").
					Where(squirrel.Eq{"agent_id": trade.AgentID, "symbol": trade.Symbol}).
					RunWith(tx).ExecContext(ctx)
			}

			if err != nil {
				return err
			}

			return r.insertTrade(ctx, tx, trade)
		})
	})
}

// InsertRejectedTrade implements LedgerRepository.
func (r *sqlRepository) InsertRejectedTrade(ctx context.Context, trade types.Trade) error {
	return withRetry(ctx, r.logger, "insert rejected trade", func() error {
		return r.inTx(ctx, func(tx *sql.Tx) error {
			return r.insertTrade(ctx, tx, trade)
		})
	})
}

// ListTrades implements LedgerRepository.
func (r *sqlRepository) ListTrades(ctx context.Context, agentID string, limit int) ([]types.Trade, error) {
	query := r.sq.Select(tradeColumns...).
		From("trades").
		Where(squirrel.Eq{"agent_id": agentID}).
		OrderBy("seq DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	return r.queryTrades(ctx, query)
}

// ListFilledTradesAsc implements LedgerRepository.
func (r *sqlRepository) ListFilledTradesAsc(ctx context.Context, agentID string) ([]types.Trade, error) {
	query := r.sq.Select(tradeColumns...).
		From("trades").
		Where(squirrel.Eq{"agent_id": agentID, "status": string(types.TradeStatusFilled)}).
		OrderBy("seq ASC")

	return r.queryTrades(ctx, query)
}

// CountTrades implements LedgerRepository.
func (r *sqlRepository) CountTrades(ctx context.Context, agentID string) (int, error) {
	var count int

	err := withRetry(ctx, r.logger, "count trades", func() error {
		return r.sq.Select("COUNT(*)").
			From("trades").
			Where(squirrel.Eq{"agent_id": agentID}).
			RunWith(r.db).QueryRowContext(ctx).Scan(&count)
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

var tradeColumns = []string{
	"id", "agent_id", "symbol", "side", "quantity", "price",
	"total", "realized_pnl", "rationale", "status", "created_at",
}

// insertTrade appends one trade row, assigning the next per-account sequence
// number inside the caller's transaction.
func (r *sqlRepository) insertTrade(ctx context.Context, tx *sql.Tx, trade types.Trade) error {
	nextSeq := squirrel.Expr("(SELECT COALESCE(MAX(seq), 0) + 1 FROM trades WHERE agent_id = ?)", trade.AgentID)

	_, err := r.sq.Insert("trades").
		Columns("id", "seq", "agent_id", "symbol", "side", "quantity", "price", "total",
			"realized_pnl", "rationale", "status", "created_at").
		Values(trade.ID, nextSeq, trade.AgentID, trade.Symbol, string(trade.Side),
			trade.Quantity.String(), trade.Price.String(), trade.Total.String(),
			trade.RealizedPnL.String(), trade.Rationale, string(trade.Status), trade.CreatedAt.UTC()).
		RunWith(tx).ExecContext(ctx)

	return err
}

func (r *sqlRepository) queryTrades(ctx context.Context, query squirrel.SelectBuilder) ([]types.Trade, error) {
	var trades []types.Trade

	err := withRetry(ctx, r.logger, "query trades", func() error {
		rows, err := query.RunWith(r.db).QueryContext(ctx)
		if err != nil {
			return err
		}
		defer rows.Close()

		trades = trades[:0]

		for rows.Next() {
			trade, err := scanTrade(rows)
			if err != nil {
				return err
			}

			trades = append(trades, trade)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return trades, nil
}

// inTx runs fn in a transaction, rolling back on error.
func (r *sqlRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("failed to roll back transaction")
		}

		return err
	}

	return tx.Commit()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCacheEntry(row scanner) (types.CacheEntry, error) {
	var (
		entry   types.CacheEntry
		payload string
	)

	err := row.Scan(&entry.ID, &entry.Provider, &entry.Function, &entry.ParamHash,
		&entry.Params, &payload, &entry.Success, &entry.Error, &entry.CreatedAt)
	if err != nil {
		return types.CacheEntry{}, err
	}

	entry.Payload = []byte(payload)

	return entry, nil
}

func scanSession(row scanner) (types.Session, error) {
	var (
		session    types.Session
		rawHistory string
	)

	err := row.Scan(&session.ID, &session.Query, &rawHistory, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return types.Session{}, err
	}

	if err := json.Unmarshal([]byte(rawHistory), &session.History); err != nil {
		return types.Session{}, err
	}

	return session, nil
}

func scanHolding(row scanner) (types.Holding, error) {
	var (
		holding  types.Holding
		quantity string
		avgCost  string
	)

	if err := row.Scan(&holding.AgentID, &holding.Symbol, &quantity, &avgCost); err != nil {
		return types.Holding{}, err
	}

	var err error
	if holding.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return types.Holding{}, err
	}

	if holding.AvgCost, err = decimal.NewFromString(avgCost); err != nil {
		return types.Holding{}, err
	}

	return holding, nil
}

func scanTrade(row scanner) (types.Trade, error) {
	var (
		trade    types.Trade
		side     string
		status   string
		decimals [4]string
	)

	err := row.Scan(&trade.ID, &trade.AgentID, &trade.Symbol, &side,
		&decimals[0], &decimals[1], &decimals[2], &decimals[3],
		&trade.Rationale, &status, &trade.CreatedAt)
	if err != nil {
		return types.Trade{}, err
	}

	trade.Side = types.TradeSide(side)
	trade.Status = types.TradeStatus(status)

	if trade.Quantity, err = decimal.NewFromString(decimals[0]); err != nil {
		return types.Trade{}, err
	}

	if trade.Price, err = decimal.NewFromString(decimals[1]); err != nil {
		return types.Trade{}, err
	}

	if trade.Total, err = decimal.NewFromString(decimals[2]); err != nil {
		return types.Trade{}, err
	}

	if trade.RealizedPnL, err = decimal.NewFromString(decimals[3]); err != nil {
		return types.Trade{}, err
	}

	return trade, nil
}

// Package ledger maintains each agent's account: cash balance, average-cost
// holdings, and the append-only trade log. Every buy or sell commits as one
// atomic unit; mutations on the same account are serialized while different
// accounts proceed in parallel.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the per-agent account state machine.
type Ledger struct {
	repo   repository.LedgerRepository
	logger *logger.Logger

	// locks holds one mutex per account, created on first use. The
	// concurrency granularity is per account, never global.
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// clock is swappable in tests.
	clock func() time.Time
}

// New creates a Ledger over the given repository.
func New(repo repository.LedgerRepository, log *logger.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: log,
		mu:     sync.Mutex{},
		locks:  make(map[string]*sync.Mutex),
		clock:  time.Now,
	}
}

// CreateAccount provisions an account with the given starting cash. It is
// idempotent: an existing account is returned unchanged.
func (l *Ledger) CreateAccount(ctx context.Context, agentID string, initialCash decimal.Decimal) (types.Account, error) {
	if agentID == "" {
		return types.Account{}, errors.New(errors.ErrCodeInvalidParameter, "agent id is required")
	}

	if initialCash.IsNegative() {
		return types.Account{}, errors.New(errors.ErrCodeInvalidParameter, "initial cash must not be negative")
	}

	unlock := l.lockAccount(agentID)
	defer unlock()

	existing, err := l.repo.GetAccount(ctx, agentID)
	if err != nil {
		return types.Account{}, err
	}

	if existing.IsSome() {
		return existing.Unwrap(), nil
	}

	account := types.Account{
		AgentID:     agentID,
		CashBalance: initialCash,
		InitialCash: initialCash,
		CreatedAt:   l.clock(),
	}

	if err := l.repo.CreateAccount(ctx, account); err != nil {
		// Lost a cross-process insert race; the stored account stands.
		if errors.HasCode(err, errors.ErrCodeAccountExists) {
			winner, readErr := l.repo.GetAccount(ctx, agentID)
			if readErr != nil {
				return types.Account{}, readErr
			}

			if winner.IsSome() {
				return winner.Unwrap(), nil
			}
		}

		return types.Account{}, err
	}

	l.logger.Info("account provisioned",
		zap.String("agent_id", agentID),
		zap.String("initial_cash", initialCash.String()),
	)

	return account, nil
}

// Buy purchases quantity × price of a symbol. On success the cash balance
// decreases by the total, the holding's weighted-average cost absorbs the
// purchase, and a FILLED trade is appended, all atomically. Insufficient
// funds leave all state unchanged apart from a REJECTED audit row.
func (l *Ledger) Buy(ctx context.Context, agentID, symbol string, quantity, price decimal.Decimal, rationale string) (types.Trade, error) {
	if err := validateOrder(symbol, quantity, price); err != nil {
		return types.Trade{}, err
	}

	unlock := l.lockAccount(agentID)
	defer unlock()

	account, err := l.getAccount(ctx, agentID)
	if err != nil {
		return types.Trade{}, err
	}

	total := quantity.Mul(price)
	trade := l.newTrade(agentID, symbol, types.TradeSideBuy, quantity, price, rationale)

	if account.CashBalance.LessThan(total) {
		l.recordRejection(ctx, trade)

		return types.Trade{}, errors.Newf(errors.ErrCodeInsufficientFunds,
			"agent %s has %s cash, trade requires %s", agentID, account.CashBalance.String(), total.String())
	}

	holding, err := l.repo.GetHolding(ctx, agentID, symbol)
	if err != nil {
		return types.Trade{}, err
	}

	oldQty := decimal.Zero
	oldAvg := decimal.Zero

	if holding.IsSome() {
		oldQty = holding.Unwrap().Quantity
		oldAvg = holding.Unwrap().AvgCost
	}

	newQty := oldQty.Add(quantity)
	// new_avg = (old_qty × old_avg + quantity × price) / (old_qty + quantity)
	newAvg := oldQty.Mul(oldAvg).Add(total).Div(newQty)

	application := repository.TradeApplication{
		Trade:      trade,
		NewBalance: account.CashBalance.Sub(total),
		Holding: optional.Some(types.Holding{
			AgentID:  agentID,
			Symbol:   symbol,
			Quantity: newQty,
			AvgCost:  newAvg,
		}),
	}

	if err := l.repo.ApplyTrade(ctx, application); err != nil {
		return types.Trade{}, err
	}

	l.logger.Info("trade filled",
		zap.String("agent_id", agentID),
		zap.String("symbol", symbol),
		zap.String("side", string(types.TradeSideBuy)),
		zap.String("quantity", quantity.String()),
		zap.String("price", price.String()),
	)

	return trade, nil
}

// Sell disposes quantity × price of a held symbol. The cost basis is
// unchanged under average-cost accounting; realized P&L =
// quantity × (price − avg_cost) is stored on the trade. The holding row is
// removed when its quantity reaches exactly zero. Overselling leaves all
// state unchanged apart from a REJECTED audit row.
func (l *Ledger) Sell(ctx context.Context, agentID, symbol string, quantity, price decimal.Decimal, rationale string) (types.Trade, error) {
	if err := validateOrder(symbol, quantity, price); err != nil {
		return types.Trade{}, err
	}

	unlock := l.lockAccount(agentID)
	defer unlock()

	account, err := l.getAccount(ctx, agentID)
	if err != nil {
		return types.Trade{}, err
	}

	trade := l.newTrade(agentID, symbol, types.TradeSideSell, quantity, price, rationale)

	holding, err := l.repo.GetHolding(ctx, agentID, symbol)
	if err != nil {
		return types.Trade{}, err
	}

	if holding.IsNone() || holding.Unwrap().Quantity.LessThan(quantity) {
		held := decimal.Zero
		if holding.IsSome() {
			held = holding.Unwrap().Quantity
		}

		l.recordRejection(ctx, trade)

		return types.Trade{}, errors.Newf(errors.ErrCodeInsufficientHoldings,
			"agent %s holds %s of %s, trade requires %s", agentID, held.String(), symbol, quantity.String())
	}

	current := holding.Unwrap()
	trade.RealizedPnL = quantity.Mul(price.Sub(current.AvgCost))

	remaining := current.Quantity.Sub(quantity)

	newHolding := optional.None[types.Holding]()
	if remaining.IsPositive() {
		newHolding = optional.Some(types.Holding{
			AgentID:  agentID,
			Symbol:   symbol,
			Quantity: remaining,
			AvgCost:  current.AvgCost,
		})
	}

	application := repository.TradeApplication{
		Trade:      trade,
		NewBalance: account.CashBalance.Add(trade.Total),
		Holding:    newHolding,
	}

	if err := l.repo.ApplyTrade(ctx, application); err != nil {
		return types.Trade{}, err
	}

	l.logger.Info("trade filled",
		zap.String("agent_id", agentID),
		zap.String("symbol", symbol),
		zap.String("side", string(types.TradeSideSell)),
		zap.String("quantity", quantity.String()),
		zap.String("price", price.String()),
		zap.String("realized_pnl", trade.RealizedPnL.String()),
	)

	return trade, nil
}

// Snapshot returns a consistent point-in-time view of the account: cash,
// holdings priced at the supplied current prices, total portfolio value, and
// trade count. Symbols without a supplied price are valued at their cost
// basis.
func (l *Ledger) Snapshot(ctx context.Context, agentID string, currentPrices map[string]decimal.Decimal) (types.PortfolioSnapshot, error) {
	unlock := l.lockAccount(agentID)
	defer unlock()

	account, err := l.getAccount(ctx, agentID)
	if err != nil {
		return types.PortfolioSnapshot{}, err
	}

	holdings, err := l.repo.ListHoldings(ctx, agentID)
	if err != nil {
		return types.PortfolioSnapshot{}, err
	}

	tradeCount, err := l.repo.CountTrades(ctx, agentID)
	if err != nil {
		return types.PortfolioSnapshot{}, err
	}

	snapshot := types.PortfolioSnapshot{
		AgentID:     agentID,
		CashBalance: account.CashBalance,
		Holdings:    make([]types.HoldingValue, 0, len(holdings)),
		TotalValue:  account.CashBalance,
		TradeCount:  tradeCount,
	}

	for _, holding := range holdings {
		price, ok := currentPrices[holding.Symbol]
		if !ok {
			price = holding.AvgCost
		}

		marketValue := holding.Quantity.Mul(price)
		snapshot.Holdings = append(snapshot.Holdings, types.HoldingValue{
			Symbol:      holding.Symbol,
			Quantity:    holding.Quantity,
			AvgCost:     holding.AvgCost,
			MarketValue: marketValue,
		})
		snapshot.TotalValue = snapshot.TotalValue.Add(marketValue)
	}

	return snapshot, nil
}

// PerformanceHistory replays the filled trade log and yields the portfolio
// value after every trade, valuing each held symbol at its most recent trade
// price. The series is deterministic given the same trade log.
func (l *Ledger) PerformanceHistory(ctx context.Context, agentID string) ([]types.PerformancePoint, error) {
	unlock := l.lockAccount(agentID)
	defer unlock()

	account, err := l.getAccount(ctx, agentID)
	if err != nil {
		return nil, err
	}

	trades, err := l.repo.ListFilledTradesAsc(ctx, agentID)
	if err != nil {
		return nil, err
	}

	cash := account.InitialCash
	quantities := make(map[string]decimal.Decimal)
	lastPrices := make(map[string]decimal.Decimal)
	points := make([]types.PerformancePoint, 0, len(trades)+1)

	points = append(points, types.PerformancePoint{
		Timestamp:      account.CreatedAt,
		PortfolioValue: account.InitialCash,
		ProfitLoss:     decimal.Zero,
		ReturnPercent:  decimal.Zero,
	})

	for _, trade := range trades {
		switch trade.Side {
		case types.TradeSideBuy:
			cash = cash.Sub(trade.Total)
			quantities[trade.Symbol] = quantities[trade.Symbol].Add(trade.Quantity)
		case types.TradeSideSell:
			cash = cash.Add(trade.Total)
			quantities[trade.Symbol] = quantities[trade.Symbol].Sub(trade.Quantity)
		}

		lastPrices[trade.Symbol] = trade.Price

		value := cash
		for symbol, quantity := range quantities {
			value = value.Add(quantity.Mul(lastPrices[symbol]))
		}

		profitLoss := value.Sub(account.InitialCash)

		returnPercent := decimal.Zero
		if account.InitialCash.IsPositive() {
			returnPercent = profitLoss.Div(account.InitialCash).Mul(decimal.NewFromInt(100))
		}

		points = append(points, types.PerformancePoint{
			Timestamp:      trade.CreatedAt,
			PortfolioValue: value,
			ProfitLoss:     profitLoss,
			ReturnPercent:  returnPercent,
		})
	}

	return points, nil
}

// Trades returns the account's trade log, most recent first; limit <= 0
// returns everything.
func (l *Ledger) Trades(ctx context.Context, agentID string, limit int) ([]types.Trade, error) {
	if _, err := l.getAccount(ctx, agentID); err != nil {
		return nil, err
	}

	return l.repo.ListTrades(ctx, agentID, limit)
}

// lockAccount acquires the per-account mutex, creating it on first use, and
// returns the release function.
func (l *Ledger) lockAccount(agentID string) func() {
	l.mu.Lock()

	lock, ok := l.locks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[agentID] = lock
	}

	l.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}

func (l *Ledger) getAccount(ctx context.Context, agentID string) (types.Account, error) {
	account, err := l.repo.GetAccount(ctx, agentID)
	if err != nil {
		return types.Account{}, err
	}

	if account.IsNone() {
		return types.Account{}, errors.Newf(errors.ErrCodeAccountNotFound, "no account for agent %s", agentID)
	}

	return account.Unwrap(), nil
}

func (l *Ledger) newTrade(agentID, symbol string, side types.TradeSide, quantity, price decimal.Decimal, rationale string) types.Trade {
	return types.Trade{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		Total:       quantity.Mul(price),
		RealizedPnL: decimal.Zero,
		Rationale:   rationale,
		Status:      types.TradeStatusFilled,
		CreatedAt:   l.clock(),
	}
}

// recordRejection appends a REJECTED audit row. The rejection itself is the
// caller's error; a failure to record it is only logged.
func (l *Ledger) recordRejection(ctx context.Context, trade types.Trade) {
	trade.Status = types.TradeStatusRejected

	if err := l.repo.InsertRejectedTrade(ctx, trade); err != nil {
		l.logger.Warn("failed to record rejected trade",
			zap.String("agent_id", trade.AgentID),
			zap.String("symbol", trade.Symbol),
			zap.Error(err),
		)
	}
}

func validateOrder(symbol string, quantity, price decimal.Decimal) error {
	if symbol == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "symbol is required")
	}

	if !quantity.IsPositive() {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "quantity must be positive, got %s", quantity.String())
	}

	if !price.IsPositive() {
		return errors.Newf(errors.ErrCodeInvalidPrice, "price must be positive, got %s", price.String())
	}

	return nil
}

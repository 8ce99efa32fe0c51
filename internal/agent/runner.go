// Package agent runs the autonomous agent workers. Each worker owns exactly
// one account, cycles on its own schedule, and goes through the desk for
// market data, trade execution, and briefing lineage.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/pkg/desk"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config tunes a Runner.
type Config struct {
	// AgentIDs are the workers to run; each owns the same-named account.
	AgentIDs []string
	// InitialCash provisions accounts that do not exist yet.
	InitialCash decimal.Decimal
	// Provider, Function, and Symbol describe the market data each cycle
	// consults.
	Provider string
	Function string
	Symbol   string
	// Interval is the pause between cycles; zero runs cycles back to back.
	Interval time.Duration
	// Cycles bounds the run; zero or negative means run until cancelled.
	Cycles int
}

// Runner drives N agent workers concurrently.
type Runner struct {
	desk    *desk.Desk
	advisor Advisor
	config  Config
	logger  *logger.Logger
}

// NewRunner creates a Runner.
func NewRunner(d *desk.Desk, advisor Advisor, config Config, log *logger.Logger) *Runner {
	return &Runner{
		desk:    d,
		advisor: advisor,
		config:  config,
		logger:  log,
	}
}

// Run provisions each agent's account and runs all workers until their
// cycles complete or the context is cancelled. The first worker error stops
// the run.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.config.AgentIDs) == 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "no agents configured")
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for _, agentID := range r.config.AgentIDs {
		if _, err := r.desk.ProvisionAccount(ctx, agentID, r.config.InitialCash); err != nil {
			return err
		}

		group.Go(func() error {
			return r.runWorker(groupCtx, agentID)
		})
	}

	return group.Wait()
}

func (r *Runner) runWorker(ctx context.Context, agentID string) error {
	runID := uuid.NewString()[:8]

	for cycle := 0; r.config.Cycles <= 0 || cycle < r.config.Cycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return nil
		}

		sessionID := fmt.Sprintf("%s-%s-%d", agentID, runID, cycle)

		if err := r.runCycle(ctx, agentID, sessionID); err != nil {
			// Cancellation mid-cycle is a shutdown, not a failure.
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		if r.config.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.config.Interval):
			}
		}
	}

	return nil
}

// runCycle is one reasoning cycle: market data, advisor consult, optional
// trade, briefing. Rejected trades are expected behavior for an aggressive
// advisor and do not stop the worker.
func (r *Runner) runCycle(ctx context.Context, agentID, sessionID string) error {
	market, err := r.desk.GetMarketData(ctx, sessionID, r.config.Provider, r.config.Function,
		map[string]string{"symbol": r.config.Symbol})
	if err != nil {
		return err
	}

	intent, err := r.advisor.Consult(ctx, agentID, market)
	if err != nil {
		return err
	}

	if intent.IsNone() {
		r.logger.Debug("advisor recommends no action",
			zap.String("agent_id", agentID),
			zap.String("session_id", sessionID),
		)

		return nil
	}

	action := intent.Unwrap()

	trade, err := r.desk.ExecuteTrade(ctx, sessionID, agentID,
		action.Symbol, action.Side, action.Quantity, action.Price, action.Rationale)
	if err != nil {
		if isBusinessRejection(err) {
			r.logger.Info("trade rejected",
				zap.String("agent_id", agentID),
				zap.String("symbol", action.Symbol),
				zap.Error(err),
			)

			return nil
		}

		return err
	}

	content := fmt.Sprintf("%s %s %v %s @ %v: %s",
		agentID, action.Side, action.Quantity, action.Symbol, action.Price, action.Rationale)

	if _, err := r.desk.RecordBriefing(ctx, sessionID, "", content, []string{market.EntryID}); err != nil {
		return err
	}

	r.logger.Info("cycle complete",
		zap.String("agent_id", agentID),
		zap.String("trade_id", trade.ID),
		zap.String("session_id", sessionID),
	)

	return nil
}

func isBusinessRejection(err error) bool {
	return errors.HasCode(err, errors.ErrCodeInsufficientFunds) ||
		errors.HasCode(err, errors.ErrCodeInsufficientHoldings) ||
		errors.HasCode(err, errors.ErrCodeInvalidIntent)
}

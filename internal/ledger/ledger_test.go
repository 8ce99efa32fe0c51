package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type LedgerTestSuite struct {
	suite.Suite
	repo   repository.Repository
	ledger *Ledger
	logger *logger.Logger
	ctx    context.Context
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) SetupSuite() {
	s.logger = logger.NewNopLogger()
	s.ctx = context.Background()
}

func (s *LedgerTestSuite) SetupTest() {
	repo, err := repository.NewDuckDB(":memory:", s.logger)
	s.Require().NoError(err)
	s.Require().NoError(repo.Initialize(s.ctx))
	s.repo = repo
	s.ledger = New(repo, s.logger)
}

func (s *LedgerTestSuite) TearDownTest() {
	s.Require().NoError(s.repo.Close())
}

func (s *LedgerTestSuite) provision(agentID string, cash int64) {
	_, err := s.ledger.CreateAccount(s.ctx, agentID, decimal.NewFromInt(cash))
	s.Require().NoError(err)
}

func (s *LedgerTestSuite) TestCreateAccountIsIdempotent() {
	first, err := s.ledger.CreateAccount(s.ctx, "warren", decimal.NewFromInt(100000))
	s.Require().NoError(err)

	_, err = s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(1), decimal.NewFromInt(10), "probe")
	s.Require().NoError(err)

	// Re-provisioning must not reset the balance.
	again, err := s.ledger.CreateAccount(s.ctx, "warren", decimal.NewFromInt(100000))
	s.Require().NoError(err)
	s.True(again.CashBalance.Equal(first.CashBalance.Sub(decimal.NewFromInt(10))))
}

func (s *LedgerTestSuite) TestValidationRejectsBeforeStore() {
	s.provision("warren", 1000)

	_, err := s.ledger.Buy(s.ctx, "warren", "X", decimal.Zero, decimal.NewFromInt(10), "")
	s.True(errors.HasCode(err, errors.ErrCodeInvalidQuantity))

	_, err = s.ledger.Sell(s.ctx, "warren", "X", decimal.NewFromInt(1), decimal.NewFromInt(-5), "")
	s.True(errors.HasCode(err, errors.ErrCodeInvalidPrice))

	// Pre-store validation failures leave no audit rows.
	trades, err := s.ledger.Trades(s.ctx, "warren", 0)
	s.Require().NoError(err)
	s.Empty(trades)
}

func (s *LedgerTestSuite) TestEndToEndScenario() {
	s.provision("warren", 100000)

	buy, err := s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(100), decimal.NewFromInt(50), "value")
	s.Require().NoError(err)
	s.True(buy.Total.Equal(decimal.NewFromInt(5000)))

	snapshot, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)
	s.True(snapshot.CashBalance.Equal(decimal.NewFromInt(95000)))
	s.Require().Len(snapshot.Holdings, 1)
	s.True(snapshot.Holdings[0].Quantity.Equal(decimal.NewFromInt(100)))
	s.True(snapshot.Holdings[0].AvgCost.Equal(decimal.NewFromInt(50)))

	sell, err := s.ledger.Sell(s.ctx, "warren", "X", decimal.NewFromInt(40), decimal.NewFromInt(60), "trim")
	s.Require().NoError(err)
	s.True(sell.RealizedPnL.Equal(decimal.NewFromInt(400)), "realized P&L = 40×(60−50)")

	snapshot, err = s.ledger.Snapshot(s.ctx, "warren", map[string]decimal.Decimal{"X": decimal.NewFromInt(55)})
	s.Require().NoError(err)
	s.True(snapshot.CashBalance.Equal(decimal.NewFromInt(97400)))
	s.Require().Len(snapshot.Holdings, 1)
	s.True(snapshot.Holdings[0].Quantity.Equal(decimal.NewFromInt(60)))
	s.True(snapshot.Holdings[0].AvgCost.Equal(decimal.NewFromInt(50)))
	s.True(snapshot.Holdings[0].MarketValue.Equal(decimal.NewFromInt(3300)))
	s.True(snapshot.TotalValue.Equal(decimal.NewFromInt(100700)))
	s.Equal(2, snapshot.TradeCount)
}

func (s *LedgerTestSuite) TestAverageCostExactness() {
	s.provision("warren", 100000)

	_, err := s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(3), decimal.NewFromInt(100), "")
	s.Require().NoError(err)

	_, err = s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(1), decimal.NewFromInt(200), "")
	s.Require().NoError(err)

	snapshot, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)

	// avg = (3×100 + 1×200) / 4 = 125 exactly
	s.True(snapshot.Holdings[0].AvgCost.Equal(decimal.NewFromInt(125)),
		"got %s", snapshot.Holdings[0].AvgCost.String())
}

func (s *LedgerTestSuite) TestInsufficientFundsLeavesStateUnchanged() {
	s.provision("warren", 100)

	before, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)

	_, err = s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(10), decimal.NewFromInt(50), "greed")
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInsufficientFunds))

	after, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)
	s.True(after.CashBalance.Equal(before.CashBalance))
	s.Empty(after.Holdings)

	// The attempt is kept for audit.
	trades, err := s.ledger.Trades(s.ctx, "warren", 1)
	s.Require().NoError(err)
	s.Require().Len(trades, 1)
	s.Equal(types.TradeStatusRejected, trades[0].Status)
	s.Equal("greed", trades[0].Rationale)
}

func (s *LedgerTestSuite) TestOversellLeavesStateUnchanged() {
	s.provision("warren", 10000)

	_, err := s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(10), decimal.NewFromInt(10), "")
	s.Require().NoError(err)

	before, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)

	_, err = s.ledger.Sell(s.ctx, "warren", "X", decimal.NewFromInt(11), decimal.NewFromInt(10), "")
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrCodeInsufficientHoldings))

	after, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)
	s.True(after.CashBalance.Equal(before.CashBalance))
	s.Require().Len(after.Holdings, 1)
	s.True(after.Holdings[0].Quantity.Equal(before.Holdings[0].Quantity))
	s.True(after.Holdings[0].AvgCost.Equal(before.Holdings[0].AvgCost))
}

func (s *LedgerTestSuite) TestSellingAllRemovesHolding() {
	s.provision("warren", 10000)

	_, err := s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(5), decimal.NewFromInt(20), "")
	s.Require().NoError(err)

	_, err = s.ledger.Sell(s.ctx, "warren", "X", decimal.NewFromInt(5), decimal.NewFromInt(25), "")
	s.Require().NoError(err)

	snapshot, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)
	s.Empty(snapshot.Holdings)
	s.True(snapshot.CashBalance.Equal(decimal.NewFromInt(10025)))
}

// TestConservation checks that cash + Σ(qty × avg_cost) only moves by the
// realized P&L of sells across an arbitrary buy/sell sequence.
func (s *LedgerTestSuite) TestConservation() {
	initial := decimal.NewFromInt(100000)
	s.provision("warren", 100000)

	type step struct {
		side  types.TradeSide
		qty   int64
		price int64
	}

	steps := []step{
		{types.TradeSideBuy, 100, 50},
		{types.TradeSideBuy, 50, 62},
		{types.TradeSideSell, 30, 70},
		{types.TradeSideBuy, 60, 45},
		{types.TradeSideSell, 140, 58},
		{types.TradeSideBuy, 10, 56},
	}

	realized := decimal.Zero

	for _, st := range steps {
		qty := decimal.NewFromInt(st.qty)
		price := decimal.NewFromInt(st.price)

		if st.side == types.TradeSideBuy {
			_, err := s.ledger.Buy(s.ctx, "warren", "X", qty, price, "")
			s.Require().NoError(err)
		} else {
			trade, err := s.ledger.Sell(s.ctx, "warren", "X", qty, price, "")
			s.Require().NoError(err)
			realized = realized.Add(trade.RealizedPnL)
		}
	}

	snapshot, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)

	bookValue := snapshot.CashBalance
	for _, holding := range snapshot.Holdings {
		bookValue = bookValue.Add(holding.Quantity.Mul(holding.AvgCost))
	}

	s.True(bookValue.Equal(initial.Add(realized)),
		"book value %s != initial %s + realized %s", bookValue.String(), initial.String(), realized.String())
}

func (s *LedgerTestSuite) TestConcurrentBuysOnOneAccount() {
	const workers = 10

	s.provision("warren", 1000)

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(1), decimal.NewFromInt(10), "")
			s.NoError(err)
		}()
	}

	wg.Wait()

	snapshot, err := s.ledger.Snapshot(s.ctx, "warren", nil)
	s.Require().NoError(err)
	s.True(snapshot.CashBalance.Equal(decimal.NewFromInt(900)), "no lost updates: got %s", snapshot.CashBalance.String())
	s.True(snapshot.Holdings[0].Quantity.Equal(decimal.NewFromInt(10)))
}

func (s *LedgerTestSuite) TestConcurrentAccountsProceedIndependently() {
	const accounts = 4

	for i := 0; i < accounts; i++ {
		s.provision(fmt.Sprintf("agent-%d", i), 10000)
	}

	var wg sync.WaitGroup

	for i := 0; i < accounts; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			agentID := fmt.Sprintf("agent-%d", i)
			for j := 0; j < 5; j++ {
				_, err := s.ledger.Buy(s.ctx, agentID, "X", decimal.NewFromInt(1), decimal.NewFromInt(100), "")
				s.NoError(err)
			}
		}(i)
	}

	wg.Wait()

	for i := 0; i < accounts; i++ {
		snapshot, err := s.ledger.Snapshot(s.ctx, fmt.Sprintf("agent-%d", i), nil)
		s.Require().NoError(err)
		s.True(snapshot.CashBalance.Equal(decimal.NewFromInt(9500)))
	}
}

func (s *LedgerTestSuite) TestPerformanceHistory() {
	s.provision("warren", 100000)

	_, err := s.ledger.Buy(s.ctx, "warren", "X", decimal.NewFromInt(100), decimal.NewFromInt(50), "")
	s.Require().NoError(err)

	_, err = s.ledger.Sell(s.ctx, "warren", "X", decimal.NewFromInt(40), decimal.NewFromInt(60), "")
	s.Require().NoError(err)

	points, err := s.ledger.PerformanceHistory(s.ctx, "warren")
	s.Require().NoError(err)
	s.Require().Len(points, 3)

	// Baseline sample.
	s.True(points[0].PortfolioValue.Equal(decimal.NewFromInt(100000)))
	s.True(points[0].ProfitLoss.IsZero())

	// After the buy: cash 95000 + 100×50 = 100000.
	s.True(points[1].PortfolioValue.Equal(decimal.NewFromInt(100000)))

	// After the sell: cash 97400 + 60×60 = 101000, P&L 1000, return 1%.
	s.True(points[2].PortfolioValue.Equal(decimal.NewFromInt(101000)))
	s.True(points[2].ProfitLoss.Equal(decimal.NewFromInt(1000)))
	s.True(points[2].ReturnPercent.Equal(decimal.NewFromInt(1)))

	// Deterministic on replay.
	again, err := s.ledger.PerformanceHistory(s.ctx, "warren")
	s.Require().NoError(err)
	s.Require().Len(again, 3)

	for i := range points {
		s.True(points[i].PortfolioValue.Equal(again[i].PortfolioValue))
	}
}

func (s *LedgerTestSuite) TestUnknownAccount() {
	_, err := s.ledger.Buy(s.ctx, "ghost", "X", decimal.NewFromInt(1), decimal.NewFromInt(1), "")
	s.True(errors.HasCode(err, errors.ErrCodeAccountNotFound))

	_, err = s.ledger.Snapshot(s.ctx, "ghost", nil)
	s.True(errors.HasCode(err, errors.ErrCodeAccountNotFound))
}

package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
	repo     repository.Repository
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) SetupTest() {
	log := logger.NewNopLogger()
	s.ctx = context.Background()

	repo, err := repository.NewDuckDB(":memory:", log)
	s.Require().NoError(err)
	s.Require().NoError(repo.Initialize(s.ctx))
	s.repo = repo
	s.registry = NewRegistry(repo, log)
}

func (s *RegistryTestSuite) TearDownTest() {
	s.Require().NoError(s.repo.Close())
}

func (s *RegistryTestSuite) TestEnsureCreatesOnFirstUse() {
	session, err := s.registry.Ensure(s.ctx, "session-1", "what moved tech today?")
	s.Require().NoError(err)
	s.Equal("session-1", session.ID)
	s.Equal("what moved tech today?", session.Query)
	s.Empty(session.History)
}

func (s *RegistryTestSuite) TestEnsureKeepsOriginalQuery() {
	_, err := s.registry.Ensure(s.ctx, "session-1", "first query")
	s.Require().NoError(err)

	session, err := s.registry.Ensure(s.ctx, "session-1", "second query")
	s.Require().NoError(err)
	s.Equal("first query", session.Query)
}

func (s *RegistryTestSuite) TestEnsureConcurrentFirstUse() {
	const callers = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []types.Session
		errs     []error
	)

	queries := make(map[string]bool, callers)

	for i := 0; i < callers; i++ {
		query := fmt.Sprintf("query-%d", i)
		queries[query] = true

		wg.Add(1)

		go func() {
			defer wg.Done()

			session, err := s.registry.Ensure(s.ctx, "shared-session", query)

			mu.Lock()
			defer mu.Unlock()
			sessions = append(sessions, session)
			errs = append(errs, err)
		}()
	}

	wg.Wait()

	for _, err := range errs {
		s.Require().NoError(err, "losing the create race must not surface an error")
	}

	for _, session := range sessions {
		s.Equal("shared-session", session.ID)
	}

	// Exactly one create won; every caller sees its query.
	stored, err := s.registry.Ensure(s.ctx, "shared-session", "latecomer")
	s.Require().NoError(err)
	s.True(queries[stored.Query], "stored query %q must come from one of the racing callers", stored.Query)
}

func (s *RegistryTestSuite) TestEnsureRejectsEmptyID() {
	_, err := s.registry.Ensure(s.ctx, "", "query")
	s.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (s *RegistryTestSuite) TestAppendEventOrdering() {
	_, err := s.registry.Ensure(s.ctx, "session-1", "query")
	s.Require().NoError(err)

	s.Require().NoError(s.registry.AppendEvent(s.ctx, "session-1", "cache_lookup", map[string]any{"function": "GLOBAL_QUOTE"}))
	s.Require().NoError(s.registry.AppendEvent(s.ctx, "session-1", "trade_executed", map[string]any{"symbol": "AAPL"}))

	history, err := s.registry.History(s.ctx, "session-1")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("cache_lookup", history[0].Kind)
	s.Equal("trade_executed", history[1].Kind)
}

func (s *RegistryTestSuite) TestHistoryOfUnknownSession() {
	_, err := s.registry.History(s.ctx, "ghost")
	s.True(errors.HasCode(err, errors.ErrCodeSessionNotFound))
}

// Package session correlates the tool calls, cache lookups, and trades of
// one interaction under a single session identifier. The identifier is a
// pass-through for analytics, never a lock.
package session

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
)

// Registry creates sessions on first use and appends to their histories.
type Registry struct {
	repo   repository.SessionRepository
	logger *logger.Logger
	clock  func() time.Time
}

// NewRegistry creates a Registry over the given repository.
func NewRegistry(repo repository.SessionRepository, log *logger.Logger) *Registry {
	return &Registry{
		repo:   repo,
		logger: log,
		clock:  time.Now,
	}
}

// Ensure creates the session if it does not exist yet. Existing sessions are
// returned unchanged; the query of the first invocation wins.
func (r *Registry) Ensure(ctx context.Context, sessionID, query string) (types.Session, error) {
	if sessionID == "" {
		return types.Session{}, errors.New(errors.ErrCodeInvalidParameter, "session id is required")
	}

	existing, err := r.repo.GetSession(ctx, sessionID)
	if err != nil {
		return types.Session{}, err
	}

	if existing.IsSome() {
		return existing.Unwrap(), nil
	}

	now := r.clock()
	session := types.Session{
		ID:        sessionID,
		Query:     query,
		History:   []types.SessionEvent{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.repo.CreateSession(ctx, session); err != nil {
		// A concurrent first use won the insert; their session stands.
		if errors.HasCode(err, errors.ErrCodeSessionExists) {
			winner, readErr := r.repo.GetSession(ctx, sessionID)
			if readErr != nil {
				return types.Session{}, readErr
			}

			if winner.IsSome() {
				return winner.Unwrap(), nil
			}
		}

		return types.Session{}, err
	}

	return session, nil
}

// AppendEvent appends one event to the session's ordered history.
func (r *Registry) AppendEvent(ctx context.Context, sessionID string, kind string, detail map[string]any) error {
	event := types.SessionEvent{
		Kind:      kind,
		Detail:    detail,
		Timestamp: r.clock(),
	}

	return r.repo.AppendSessionEvent(ctx, sessionID, event)
}

// History returns the session's recorded history for analytics.
func (r *Registry) History(ctx context.Context, sessionID string) ([]types.SessionEvent, error) {
	session, err := r.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.IsNone() {
		return nil, errors.Newf(errors.ErrCodeSessionNotFound, "session %s not found", sessionID)
	}

	return session.Unwrap().History, nil
}

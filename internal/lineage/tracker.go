// Package lineage links generated market briefings back to the cache entries
// they were built from, recording how fresh each input was at the moment of
// use. The links are the audit trail for downstream training-data integrity.
package lineage

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"go.uber.org/zap"
)

// Tracker records briefings and their data lineage.
type Tracker struct {
	repo   repository.LineageRepository
	cache  repository.CacheRepository
	logger *logger.Logger
	clock  func() time.Time
}

// NewTracker creates a Tracker over the given repositories.
func NewTracker(repo repository.LineageRepository, cache repository.CacheRepository, log *logger.Logger) *Tracker {
	return &Tracker{
		repo:   repo,
		cache:  cache,
		logger: log,
		clock:  time.Now,
	}
}

// RecordBriefing persists the briefing and one lineage link per consumed
// cache entry, with freshness fixed at call time. Unknown entry ids are
// rejected so lineage can never point at data that was not recorded.
func (t *Tracker) RecordBriefing(ctx context.Context, sessionID, query, content string, entryIDs []string) (types.Briefing, error) {
	now := t.clock()
	briefing := types.Briefing{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Query:     query,
		Content:   content,
		CreatedAt: now,
	}

	entries, err := t.cache.GetCacheEntries(ctx, entryIDs)
	if err != nil {
		return types.Briefing{}, err
	}

	if len(entries) != len(unique(entryIDs)) {
		return types.Briefing{}, errors.Newf(errors.ErrCodeDataNotFound,
			"lineage references %d cache entries, found %d", len(unique(entryIDs)), len(entries))
	}

	links := make([]types.LineageLink, 0, len(entries))

	for _, entry := range entries {
		freshness := now.Sub(entry.CreatedAt).Seconds()
		if freshness < 0 {
			freshness = 0
		}

		links = append(links, types.LineageLink{
			BriefingID:       briefing.ID,
			CacheEntryID:     entry.ID,
			FreshnessSeconds: freshness,
			CreatedAt:        now,
		})
	}

	if err := t.repo.InsertBriefing(ctx, briefing); err != nil {
		return types.Briefing{}, err
	}

	if err := t.repo.InsertLineageLinks(ctx, links); err != nil {
		return types.Briefing{}, err
	}

	t.logger.Debug("briefing lineage recorded",
		zap.String("briefing_id", briefing.ID),
		zap.Int("sources", len(links)),
	)

	return briefing, nil
}

// Lineage returns the recorded links of one briefing.
func (t *Tracker) Lineage(ctx context.Context, briefingID string) ([]types.LineageLink, error) {
	return t.repo.LineageForBriefing(ctx, briefingID)
}

// FreshnessStats aggregates freshness across all links created in
// [from, to]: how old the underlying market data was when briefings used it.
func (t *Tracker) FreshnessStats(ctx context.Context, from, to time.Time) (types.FreshnessStats, error) {
	values, err := t.repo.FreshnessInRange(ctx, from, to)
	if err != nil {
		return types.FreshnessStats{}, err
	}

	if len(values) == 0 {
		return types.FreshnessStats{
			Count:       0,
			MeanSeconds: 0,
			P50Seconds:  0,
			P95Seconds:  0,
			MaxSeconds:  0,
		}, nil
	}

	// Values arrive sorted ascending from the repository.
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return types.FreshnessStats{
		Count:       len(values),
		MeanSeconds: sum / float64(len(values)),
		P50Seconds:  percentile(values, 0.50),
		P95Seconds:  percentile(values, 0.95),
		MaxSeconds:  values[len(values)-1],
	}, nil
}

// percentile picks the nearest-rank percentile from ascending values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}

	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}

	return sorted[rank]
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}

		result = append(result, id)
	}

	return result
}

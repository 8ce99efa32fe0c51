// Package marketcache deduplicates and caches calls to external market-data
// providers. Results are content-addressed by (provider, function,
// canonicalized params); per-function TTLs decide how long a successful
// result stays valid, and concurrent identical requests share one in-flight
// fetch.
package marketcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/internal/repository"
	"github.com/rxtech-lab/argo-desk/internal/types"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher performs one opaque call against an external market-data provider.
// Provider-specific wire formats stay behind this contract.
type Fetcher interface {
	Fetch(ctx context.Context, provider, function string, params map[string]string) ([]byte, error)
}

// Config tunes a Store.
type Config struct {
	// FetchTimeout bounds one external fetch; a timed-out fetch is recorded
	// as a failure.
	FetchTimeout time.Duration
	// StaleIfError serves the newest expired successful entry when a fresh
	// fetch fails, marked degraded, instead of propagating the error.
	StaleIfError bool
	TTLOverrides map[string]time.Duration
}

// Store is the cache front of all external market-data access.
type Store struct {
	repo    repository.CacheRepository
	fetcher Fetcher
	policy  TTLPolicy
	group   singleflight.Group
	config  Config
	logger  *logger.Logger
	// clock is swappable in tests.
	clock func() time.Time
}

// NewStore creates a Store over the given repository and fetcher.
func NewStore(repo repository.CacheRepository, fetcher Fetcher, config Config, log *logger.Logger) *Store {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 15 * time.Second
	}

	return &Store{
		repo:    repo,
		fetcher: fetcher,
		policy:  NewTTLPolicy(config.TTLOverrides),
		group:   singleflight.Group{},
		config:  config,
		logger:  log,
		clock:   time.Now,
	}
}

// GetOrFetch returns the newest valid cached result for the key, or invokes
// the fetcher exactly once per key across concurrent callers. Both successful
// and failed fetches are persisted; failed entries never count as hits.
func (s *Store) GetOrFetch(ctx context.Context, provider, function string, params map[string]string) (types.CacheResult, error) {
	canonical, hash, err := CanonicalizeParams(params)
	if err != nil {
		return types.CacheResult{}, err
	}

	key := provider + "/" + function + "/" + hash

	// DoChan instead of Do so a cancelled caller can stop waiting without
	// tearing down the shared fetch.
	resultCh := s.group.DoChan(key, func() (any, error) {
		return s.lookupOrFetch(ctx, provider, function, canonical, hash)
	})

	select {
	case <-ctx.Done():
		// A timeout is ErrCodeFetchTimeout; a plain cancellation is not.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return types.CacheResult{}, errors.Wrap(errors.ErrCodeFetchTimeout, "market data request timed out", ctx.Err())
		}

		return types.CacheResult{}, errors.Wrap(errors.ErrCodeExternalFetch, "market data request cancelled", ctx.Err())
	case shared := <-resultCh:
		if shared.Err != nil {
			return types.CacheResult{}, shared.Err
		}

		result, ok := shared.Val.(types.CacheResult)
		if !ok {
			return types.CacheResult{}, errors.New(errors.ErrCodeUnknown, "unexpected coalesced result type")
		}

		return result, nil
	}
}

// TTLFor exposes the effective TTL for a function.
func (s *Store) TTLFor(function string) time.Duration {
	return s.policy.TTLFor(function)
}

func (s *Store) lookupOrFetch(ctx context.Context, provider, function, canonical, hash string) (types.CacheResult, error) {
	now := s.clock()
	ttl := s.policy.TTLFor(function)

	newest, err := s.repo.LatestCacheEntry(ctx, provider, function, hash)
	if err != nil {
		return types.CacheResult{}, err
	}

	if newest.IsSome() {
		entry := newest.Unwrap()
		if entry.Success && entry.Age(now) < ttl {
			s.logger.Debug("cache hit",
				zap.String("provider", provider),
				zap.String("function", function),
				zap.Duration("age", entry.Age(now)),
			)

			return types.CacheResult{
				EntryID:   entry.ID,
				Payload:   entry.Payload,
				WasCached: true,
				CacheAge:  entry.Age(now),
				Degraded:  false,
			}, nil
		}
	}

	return s.fetch(ctx, provider, function, canonical, hash)
}

// fetch invokes the external provider under a bounded timeout and persists
// the outcome either way. The fetch context is detached from the caller so
// one caller's cancellation cannot corrupt the shared in-flight result.
func (s *Store) fetch(ctx context.Context, provider, function, canonical, hash string) (types.CacheResult, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.FetchTimeout)
	defer cancel()

	payload, fetchErr := s.fetcher.Fetch(fetchCtx, provider, function, paramsFromCanonical(canonical))

	now := s.clock()
	entry := types.CacheEntry{
		ID:        uuid.NewString(),
		Provider:  provider,
		Function:  function,
		ParamHash: hash,
		Params:    canonical,
		Payload:   payload,
		Success:   fetchErr == nil,
		Error:     "",
		CreatedAt: now,
	}

	if fetchErr != nil {
		entry.Error = fetchErr.Error()
		entry.Payload = nil
	}

	if err := s.repo.InsertCacheEntry(context.WithoutCancel(ctx), entry); err != nil {
		return types.CacheResult{}, err
	}

	if fetchErr != nil {
		s.logger.Warn("external fetch failed",
			zap.String("provider", provider),
			zap.String("function", function),
			zap.Error(fetchErr),
		)

		if s.config.StaleIfError {
			if stale, ok := s.staleFallback(ctx, provider, function, hash, now); ok {
				return stale, nil
			}
		}

		code := errors.ErrCodeExternalFetch
		if errors.Is(fetchErr, context.DeadlineExceeded) {
			code = errors.ErrCodeFetchTimeout
		}

		return types.CacheResult{}, errors.Wrapf(code, fetchErr, "fetch %s/%s failed", provider, function)
	}

	return types.CacheResult{
		EntryID:   entry.ID,
		Payload:   entry.Payload,
		WasCached: false,
		CacheAge:  0,
		Degraded:  false,
	}, nil
}

// staleFallback returns the newest successful entry for the key, even an
// expired one, marked degraded.
func (s *Store) staleFallback(ctx context.Context, provider, function, hash string, now time.Time) (types.CacheResult, bool) {
	prior, err := s.repo.LatestSuccessfulCacheEntry(ctx, provider, function, hash)
	if err != nil || prior.IsNone() {
		return types.CacheResult{}, false
	}

	entry := prior.Unwrap()

	s.logger.Warn("serving stale cache entry after failed fetch",
		zap.String("provider", provider),
		zap.String("function", function),
		zap.Duration("age", entry.Age(now)),
	)

	return types.CacheResult{
		EntryID:   entry.ID,
		Payload:   entry.Payload,
		WasCached: true,
		CacheAge:  entry.Age(now),
		Degraded:  true,
	}, true
}

// CanonicalizeParams encodes params as canonical JSON (keys sorted) and
// returns the encoding together with its SHA-256 hex digest.
func CanonicalizeParams(params map[string]string) (canonical string, hash string, err error) {
	if params == nil {
		params = map[string]string{}
	}

	// encoding/json sorts map keys, which makes the encoding canonical.
	data, err := json.Marshal(params)
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeInvalidParameter, "failed to canonicalize params", err)
	}

	digest := sha256.Sum256(data)

	return string(data), hex.EncodeToString(digest[:]), nil
}

func paramsFromCanonical(canonical string) map[string]string {
	params := map[string]string{}
	// The canonical form was produced by json.Marshal above; decoding cannot
	// fail on it.
	_ = json.Unmarshal([]byte(canonical), &params)

	return params
}

package queries

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "oikos/contexts/governance/voting-engine/application"
	"oikos/contexts/governance/voting-engine/domain/entities"
	"oikos/contexts/governance/voting-engine/ports"
)

const defaultResultTTL = 3 * time.Second

// ResultFeed is the read model serving tallies to many concurrent readers
// (assembly control panel, kiosk banner, resident app). It caches the last
// computed result for a short TTL per question; ballot and lifecycle writes
// invalidate the entry, and refresh forces a recompute for facilitator
// tooling.
type ResultFeed struct {
	Tally  TallyUseCase
	Cache  ports.TallyCache
	Clock  ports.Clock
	TTL    time.Duration
	Logger *slog.Logger
}

func (f ResultFeed) QuestionResults(ctx context.Context, questionID string, refresh bool) (entities.TallyResult, error) {
	logger := application.ResolveLogger(f.Logger)
	questionID = strings.TrimSpace(questionID)
	now := f.now()

	if !refresh && f.Cache != nil {
		if cached, found, err := f.Cache.Get(ctx, questionID, now); err != nil {
			return entities.TallyResult{}, err
		} else if found {
			logger.Debug("tally served from cache",
				"event", "governance_tally_cache_hit",
				"module", "governance/voting-engine",
				"layer", "application",
				"question_id", questionID,
			)
			return cached, nil
		}
	}

	result, err := f.Tally.QuestionTally(ctx, questionID)
	if err != nil {
		return entities.TallyResult{}, err
	}
	if f.Cache != nil {
		if err := f.Cache.Put(ctx, result, now.Add(f.resolveTTL())); err != nil {
			return entities.TallyResult{}, err
		}
	}
	return result, nil
}

func (f ResultFeed) resolveTTL() time.Duration {
	if f.TTL <= 0 {
		return defaultResultTTL
	}
	return f.TTL
}

func (f ResultFeed) now() time.Time {
	now := time.Now().UTC()
	if f.Clock != nil {
		now = f.Clock.Now().UTC()
	}
	return now
}

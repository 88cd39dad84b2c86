// Package cache is the persistent per-entity store behind the supervisor's
// cache short-circuit. Each entity carries three independent data tiers
// (basic, detail, sentiment); presence alone answers "do we need to call the
// tool", there is no expiry.
package cache

import (
	"context"
	"errors"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

var ErrEmptyEntityID = errors.New("entity id is empty")

// EntitySummary is the short listing form of a cached entity.
type EntitySummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Rating   float64 `json:"rating"`
	Location string  `json:"location,omitempty"`
}

// Store is the entity cache contract. Writes are idempotent upserts per
// entity and tier; each put is independently committed, there is no
// transaction spanning tiers.
type Store interface {
	PutBasic(ctx context.Context, info contractx.BasicInfo) error
	PutDetail(ctx context.Context, entityID string, info contractx.DetailInfo) error
	PutSentiment(ctx context.Context, entityID string, info contractx.SentimentInfo) error

	GetBasic(ctx context.Context, entityID string) (contractx.BasicInfo, bool, error)
	GetDetail(ctx context.Context, entityID string) (contractx.DetailInfo, bool, error)
	GetSentiment(ctx context.Context, entityID string) (contractx.SentimentInfo, bool, error)

	Has(ctx context.Context, entityID string, tier contractx.Tier) (bool, error)
	ListKnownEntities(ctx context.Context) ([]EntitySummary, error)
}

// HasAll reports whether every listed entity has the given tier cached.
// Vacuously false for an empty id list so callers never skip a live search.
func HasAll(ctx context.Context, s Store, entityIDs []string, tier contractx.Tier) (bool, error) {
	if len(entityIDs) == 0 {
		return false, nil
	}
	for _, id := range entityIDs {
		ok, err := s.Has(ctx, id, tier)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

// MemoryStore is an in-process Store used when no database is configured
// and as a deterministic double in tests. It keeps the same presence-only
// semantics as the durable store.
type MemoryStore struct {
	mu         sync.RWMutex
	basics     map[string]contractx.BasicInfo
	details    map[string]contractx.DetailInfo
	sentiments map[string]contractx.SentimentInfo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		basics:     make(map[string]contractx.BasicInfo),
		details:    make(map[string]contractx.DetailInfo),
		sentiments: make(map[string]contractx.SentimentInfo),
	}
}

func (m *MemoryStore) PutBasic(ctx context.Context, info contractx.BasicInfo) error {
	if strings.TrimSpace(info.ID) == "" {
		return ErrEmptyEntityID
	}
	m.mu.Lock()
	m.basics[info.ID] = info
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PutDetail(ctx context.Context, entityID string, info contractx.DetailInfo) error {
	if strings.TrimSpace(entityID) == "" {
		return ErrEmptyEntityID
	}
	m.mu.Lock()
	m.details[entityID] = info
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) PutSentiment(ctx context.Context, entityID string, info contractx.SentimentInfo) error {
	if strings.TrimSpace(entityID) == "" {
		return ErrEmptyEntityID
	}
	m.mu.Lock()
	m.sentiments[entityID] = info
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetBasic(ctx context.Context, entityID string) (contractx.BasicInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.basics[entityID]
	return info, ok, nil
}

func (m *MemoryStore) GetDetail(ctx context.Context, entityID string) (contractx.DetailInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.details[entityID]
	return info, ok, nil
}

func (m *MemoryStore) GetSentiment(ctx context.Context, entityID string) (contractx.SentimentInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.sentiments[entityID]
	return info, ok, nil
}

func (m *MemoryStore) Has(ctx context.Context, entityID string, tier contractx.Tier) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch tier {
	case contractx.TierBasic:
		_, ok := m.basics[entityID]
		return ok, nil
	case contractx.TierDetail:
		_, ok := m.details[entityID]
		return ok, nil
	case contractx.TierSentiment:
		_, ok := m.sentiments[entityID]
		return ok, nil
	default:
		return false, fmt.Errorf("unknown tier %q", tier)
	}
}

func (m *MemoryStore) ListKnownEntities(ctx context.Context) ([]EntitySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EntitySummary, 0, len(m.basics))
	for _, info := range m.basics {
		out = append(out, EntitySummary{
			ID:       info.ID,
			Name:     info.Name,
			Rating:   info.Rating,
			Location: info.Location,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

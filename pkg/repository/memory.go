package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/threatlens/pkg/domain/interfaces"
	"github.com/secmon-lab/threatlens/pkg/domain/model"
)

// DefaultFeedCapacity is the number of threats kept in the live feed
const DefaultFeedCapacity = 8

// Memory implements FeedRepository with in-memory storage
type Memory struct {
	mu       sync.RWMutex
	capacity int
	threats  []*model.Threat // newest first
}

// NewMemory creates a new memory repository holding at most capacity threats.
// capacity <= 0 uses DefaultFeedCapacity.
func NewMemory(capacity int) interfaces.FeedRepository {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Memory{
		capacity: capacity,
	}
}

// PushThreats adds threats to the head of the feed
func (m *Memory) PushThreats(ctx context.Context, threats ...*model.Threat) error {
	if err := checkThreats(threats); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	threats = dedupe(threats)
	pushed := make(map[string]struct{}, len(threats))
	merged := make([]*model.Threat, 0, len(threats)+len(m.threats))
	for _, t := range threats {
		c := *t
		merged = append(merged, &c)
		pushed[t.ID] = struct{}{}
	}
	// An entry pushed again moves to the head
	for _, t := range m.threats {
		if _, ok := pushed[t.ID]; !ok {
			merged = append(merged, t)
		}
	}

	if len(merged) > m.capacity {
		merged = merged[:m.capacity]
	}
	m.threats = merged
	return nil
}

// ReplaceThreats replaces the whole feed
func (m *Memory) ReplaceThreats(ctx context.Context, threats []*model.Threat) error {
	if err := checkThreats(threats); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	threats = dedupe(threats)
	n := min(len(threats), m.capacity)
	replaced := make([]*model.Threat, 0, n)
	for _, t := range threats[:n] {
		c := *t
		replaced = append(replaced, &c)
	}
	m.threats = replaced
	return nil
}

// ListThreats lists threats newest first
func (m *Memory) ListThreats(ctx context.Context, limit int) ([]*model.Threat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.threats)
	if limit > 0 && limit < n {
		n = limit
	}

	// Return copies to prevent external modification
	result := make([]*model.Threat, 0, n)
	for _, t := range m.threats[:n] {
		c := *t
		result = append(result, &c)
	}
	return result, nil
}

// Close closes the memory repository (no-op)
func (m *Memory) Close() error {
	return nil
}

func checkThreats(threats []*model.Threat) error {
	for i, t := range threats {
		if t == nil {
			return goerr.New("threat is nil", goerr.V("index", i))
		}
		if t.ID == "" {
			return goerr.New("threat ID is empty", goerr.V("index", i))
		}
	}
	return nil
}

// dedupe keeps the first occurrence of each threat ID
func dedupe(threats []*model.Threat) []*model.Threat {
	seen := make(map[string]struct{}, len(threats))
	result := make([]*model.Threat, 0, len(threats))
	for _, t := range threats {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		result = append(result, t)
	}
	return result
}

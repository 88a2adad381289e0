package audit

import (
	"context"
	"sync"
	"time"

	"leadline.org/internal/ids"
)

// MemoryActivityStore keeps activity entries in process memory. Used by tests
// and dev mode.
type MemoryActivityStore struct {
	mu      sync.RWMutex
	entries []Activity
}

// NewMemoryActivityStore creates an empty store.
func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{}
}

var _ ActivityStore = (*MemoryActivityStore)(nil)

func (s *MemoryActivityStore) Insert(ctx context.Context, a *Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = ids.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, *a)
	return nil
}

func (s *MemoryActivityStore) Recent(ctx context.Context, actorID string, limit int) ([]Activity, error) {
	if limit < 1 {
		limit = 10
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Activity
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if actorID != "" && s.entries[i].ActorID != actorID {
			continue
		}
		out = append(out, s.entries[i])
	}
	return out, nil
}

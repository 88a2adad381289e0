package audit

import (
	"context"
	"time"
)

// Activity is one recorded state-changing action: who did what to which
// record. Entries are append-only and surfaced newest-first.
type Activity struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityStore persists activity entries. Recent returns the newest entries
// first; an empty actorID means no actor restriction (admin view).
type ActivityStore interface {
	Insert(ctx context.Context, a *Activity) error
	Recent(ctx context.Context, actorID string, limit int) ([]Activity, error)
}

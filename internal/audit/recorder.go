package audit

import (
	"context"
	"time"
)

// Publisher fans an activity entry out to live subscribers. The event stream
// satisfies this.
type Publisher interface {
	Publish(a Activity)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Activity) {}

// Recorder persists activity entries and fans them out to live subscribers.
// Record is fire-and-forget: storage failures are logged and swallowed so the
// triggering operation never fails because of its audit trail.
type Recorder struct {
	store   ActivityStore
	pub     Publisher
	now     func() time.Time
	timeout time.Duration
}

// RecorderOption configures Recorder behavior.
type RecorderOption func(*Recorder)

// WithPublisher installs the live fan-out sink.
func WithPublisher(p Publisher) RecorderOption {
	return func(r *Recorder) {
		if p != nil {
			r.pub = p
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a recorder over the given store.
func NewRecorder(store ActivityStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:   store,
		pub:     nopPublisher{},
		now:     time.Now,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record writes one activity entry. The write is detached from the caller's
// context so a cancelled request still leaves its trail.
func (r *Recorder) Record(ctx context.Context, actorID, action, entity, entityID string) {
	a := Activity{
		ActorID:   actorID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		CreatedAt: r.now().UTC(),
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.store.Insert(storeCtx, &a); err != nil {
		_ = LogEvent(ctx, "audit.store_failed", map[string]any{"error": err.Error(), "action": action})
		return
	}

	r.pub.Publish(a)
	_ = LogEvent(ctx, "activity.recorded", map[string]any{
		"action":    action,
		"entity":    entity,
		"entity_id": entityID,
	})
}

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadline.org/internal/ids"
)

const activityColumns = "id, actor_id, action, entity, entity_id, created_at"

// PGActivityStore persists activity entries in PostgreSQL.
type PGActivityStore struct {
	db *sql.DB
}

// NewPGActivityStore wraps an open database handle.
func NewPGActivityStore(db *sql.DB) *PGActivityStore {
	return &PGActivityStore{db: db}
}

var _ ActivityStore = (*PGActivityStore)(nil)

func (s *PGActivityStore) Insert(ctx context.Context, a *Activity) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activities (id, actor_id, action, entity, entity_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.ActorID, a.Action, a.Entity, a.EntityID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PGActivityStore) Recent(ctx context.Context, actorID string, limit int) ([]Activity, error) {
	if limit < 1 {
		limit = 10
	}
	query := `SELECT ` + activityColumns + ` FROM activities`
	args := []any{}
	if actorID != "" {
		query += ` WHERE actor_id = $1`
		args = append(args, actorID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &a.Entity, &a.EntityID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

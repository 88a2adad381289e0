package crm

import (
	"context"
	"time"
)

// Page is a 1-based pagination request.
type Page struct {
	Number int
	Limit  int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 || p.Limit > 100 {
		p.Limit = 10
	}
	return p
}

// Offset returns the number of records to skip.
func (p Page) Offset() int {
	p = p.normalize()
	return (p.Number - 1) * p.Limit
}

// LeadFilter narrows lead listings. Zero values mean "no restriction".
type LeadFilter struct {
	Status LeadStatus
}

// LeadUpdate carries optional field changes; nil fields are left untouched.
type LeadUpdate struct {
	Name   *string
	Email  *string
	Phone  *string
	Source *string
	Status *LeadStatus
}

// TaskFilter narrows task listings. Zero values mean "no restriction".
type TaskFilter struct {
	Status    TaskStatus
	Priority  TaskPriority
	RelatedTo TaskRelation
	DueBefore time.Time
}

// TaskUpdate carries optional field changes; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Status      *TaskStatus
	Priority    *TaskPriority
}

// CustomerUpdate carries optional field changes; nil fields are left
// untouched.
type CustomerUpdate struct {
	Name    *string
	Company *string
	Email   *string
	Phone   *string
	Tags    []string
}

// LeadStore persists leads. List applies the scope at query time; Find does
// not, because mutation paths must distinguish Forbidden from NotFound.
type LeadStore interface {
	Create(ctx context.Context, l *Lead) error
	Find(ctx context.Context, id string) (*Lead, error)
	Update(ctx context.Context, id string, upd LeadUpdate) (*Lead, error)
	Archive(ctx context.Context, id string) error
	List(ctx context.Context, scope Scope, f LeadFilter, p Page) ([]Lead, int, error)
}

// CustomerStore persists customers.
type CustomerStore interface {
	Create(ctx context.Context, c *Customer) error
	Find(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, id string, upd CustomerUpdate) (*Customer, error)
	Archive(ctx context.Context, id string) error
	AddNote(ctx context.Context, id string, note Note) (*Customer, error)
	List(ctx context.Context, scope Scope, p Page) ([]Customer, int, error)
	Count(ctx context.Context, scope Scope) (int, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, id string) (*Task, error)
	Update(ctx context.Context, id string, upd TaskUpdate) (*Task, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, scope Scope, f TaskFilter, p Page) ([]Task, int, error)
	CountOpen(ctx context.Context, scope Scope) (int, error)
}

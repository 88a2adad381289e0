package crm

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadline.org/internal/ids"
)

// MemoryStore holds all three resource collections in process memory with
// in-process concurrency safety. Used by tests and by dev mode when no
// database is configured. Access the typed store views through Leads,
// Customers, and Tasks.
type MemoryStore struct {
	mu        sync.RWMutex
	leads     map[string]*Lead
	customers map[string]*Customer
	tasks     map[string]*Task
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:     make(map[string]*Lead),
		customers: make(map[string]*Customer),
		tasks:     make(map[string]*Task),
		now:       time.Now,
	}
}

// SetClock overrides the time source (useful for tests).
func (s *MemoryStore) SetClock(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Leads returns the lead store view.
func (s *MemoryStore) Leads() LeadStore { return &memLeadStore{s} }

// Customers returns the customer store view.
func (s *MemoryStore) Customers() CustomerStore { return &memCustomerStore{s} }

// Tasks returns the task store view.
func (s *MemoryStore) Tasks() TaskStore { return &memTaskStore{s} }

func paginate[T any](items []T, p Page) []T {
	p = p.normalize()
	off := p.Offset()
	if off >= len(items) {
		return nil
	}
	end := off + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}

// Lead store ----------------------------------------------------------------

type memLeadStore struct{ s *MemoryStore }

var _ LeadStore = (*memLeadStore)(nil)

func (m *memLeadStore) Create(ctx context.Context, l *Lead) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if l.ID == "" {
		l.ID = ids.New()
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	now := m.s.now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	cp := *l
	m.s.leads[l.ID] = &cp
	return nil
}

func (m *memLeadStore) Find(ctx context.Context, id string) (*Lead, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	l, ok := m.s.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeadStore) Update(ctx context.Context, id string, upd LeadUpdate) (*Lead, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	l, ok := m.s.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		l.Name = *upd.Name
	}
	if upd.Email != nil {
		l.Email = *upd.Email
	}
	if upd.Phone != nil {
		l.Phone = *upd.Phone
	}
	if upd.Source != nil {
		l.Source = *upd.Source
	}
	if upd.Status != nil {
		l.Status = *upd.Status
	}
	l.UpdatedAt = m.s.now().UTC()
	cp := *l
	return &cp, nil
}

func (m *memLeadStore) Archive(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	l, ok := m.s.leads[id]
	if !ok {
		return ErrNotFound
	}
	l.Archived = true
	l.UpdatedAt = m.s.now().UTC()
	return nil
}

func (m *memLeadStore) List(ctx context.Context, scope Scope, f LeadFilter, p Page) ([]Lead, int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var all []Lead
	for _, l := range m.s.leads {
		if l.Archived {
			continue
		}
		if scope.Restricted() && l.AssignedAgent != scope.OwnerID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		all = append(all, *l)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, p), len(all), nil
}

// Customer store ------------------------------------------------------------

type memCustomerStore struct{ s *MemoryStore }

var _ CustomerStore = (*memCustomerStore)(nil)

func (m *memCustomerStore) Create(ctx context.Context, c *Customer) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c.ID == "" {
		c.ID = ids.New()
	}
	now := m.s.now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	m.s.customers[c.ID] = &cp
	return nil
}

func (m *memCustomerStore) Find(ctx context.Context, id string) (*Customer, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	c, ok := m.s.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCustomerStore) Update(ctx context.Context, id string, upd CustomerUpdate) (*Customer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Company != nil {
		c.Company = *upd.Company
	}
	if upd.Email != nil {
		c.Email = *upd.Email
	}
	if upd.Phone != nil {
		c.Phone = *upd.Phone
	}
	if upd.Tags != nil {
		c.Tags = append([]string(nil), upd.Tags...)
	}
	c.UpdatedAt = m.s.now().UTC()
	cp := *c
	return &cp, nil
}

func (m *memCustomerStore) Archive(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.customers[id]
	if !ok {
		return ErrNotFound
	}
	c.Archived = true
	c.UpdatedAt = m.s.now().UTC()
	return nil
}

func (m *memCustomerStore) AddNote(ctx context.Context, id string, note Note) (*Customer, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Notes = append(c.Notes, note)
	c.UpdatedAt = m.s.now().UTC()
	cp := *c
	return &cp, nil
}

func (m *memCustomerStore) List(ctx context.Context, scope Scope, p Page) ([]Customer, int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var all []Customer
	for _, c := range m.s.customers {
		if c.Archived {
			continue
		}
		if scope.Restricted() && c.Owner != scope.OwnerID {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, p), len(all), nil
}

func (m *memCustomerStore) Count(ctx context.Context, scope Scope) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	n := 0
	for _, c := range m.s.customers {
		if c.Archived {
			continue
		}
		if scope.Restricted() && c.Owner != scope.OwnerID {
			continue
		}
		n++
	}
	return n, nil
}

// Task store ----------------------------------------------------------------

type memTaskStore struct{ s *MemoryStore }

var _ TaskStore = (*memTaskStore)(nil)

func (m *memTaskStore) Create(ctx context.Context, t *Task) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t.ID == "" {
		t.ID = ids.New()
	}
	now := m.s.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	cp := *t
	m.s.tasks[t.ID] = &cp
	return nil
}

func (m *memTaskStore) Find(ctx context.Context, id string) (*Task, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	t, ok := m.s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTaskStore) Update(ctx context.Context, id string, upd TaskUpdate) (*Task, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.DueDate != nil {
		t.DueDate = *upd.DueDate
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	t.UpdatedAt = m.s.now().UTC()
	cp := *t
	return &cp, nil
}

func (m *memTaskStore) Delete(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.tasks, id)
	return nil
}

func (m *memTaskStore) List(ctx context.Context, scope Scope, f TaskFilter, p Page) ([]Task, int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var all []Task
	for _, t := range m.s.tasks {
		if scope.Restricted() && t.Owner != scope.OwnerID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.RelatedTo != "" && t.RelatedTo != f.RelatedTo {
			continue
		}
		if !f.DueBefore.IsZero() {
			// Overdue listings exclude finished tasks.
			if t.DueDate.After(f.DueBefore) || t.Status == TaskStatusDone {
				continue
			}
		}
		all = append(all, *t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DueDate.Before(all[j].DueDate) })
	return paginate(all, p), len(all), nil
}

func (m *memTaskStore) CountOpen(ctx context.Context, scope Scope) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	n := 0
	for _, t := range m.s.tasks {
		if t.Status == TaskStatusDone {
			continue
		}
		if scope.Restricted() && t.Owner != scope.OwnerID {
			continue
		}
		n++
	}
	return n, nil
}

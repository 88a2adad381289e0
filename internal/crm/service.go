package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadline.org/internal/auth"
)

// Recorder is the fire-and-forget activity sink invoked after state-changing
// operations. Implementations must never fail the calling operation.
type Recorder interface {
	Record(ctx context.Context, actorID, action, entity, entityID string)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, string, string, string) {}

// Service implements the CRM operations. Every operation takes the verified
// caller identity and applies the same visibility rule: list/count paths
// filter at query time via Scope, single-record mutation paths look the
// record up and then check ownership via Authorize.
type Service struct {
	leads     LeadStore
	customers CustomerStore
	tasks     TaskStore
	recorder  Recorder
	now       func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRecorder installs the activity recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the CRM service.
func NewService(leads LeadStore, customers CustomerStore, tasks TaskStore, opts ...ServiceOption) *Service {
	s := &Service{
		leads:     leads,
		customers: customers,
		tasks:     tasks,
		recorder:  nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, identity auth.Identity, action, entity, entityID string) {
	s.recorder.Record(ctx, identity.ID, action, entity, entityID)
}

// Leads ---------------------------------------------------------------------

// LeadPage is one page of a scoped lead listing.
type LeadPage struct {
	Items      []Lead `json:"items"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

// CreateLeadInput carries the fields accepted at lead creation.
type CreateLeadInput struct {
	Name   string
	Email  string
	Phone  string
	Source string
}

func (s *Service) ListLeads(ctx context.Context, identity auth.Identity, f LeadFilter, p Page) (LeadPage, error) {
	p = p.normalize()
	items, total, err := s.leads.List(ctx, ScopeFor(identity), f, p)
	if err != nil {
		return LeadPage{}, err
	}
	return LeadPage{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, p.Limit),
		Page:       p.Number,
		Limit:      p.Limit,
	}, nil
}

func (s *Service) CreateLead(ctx context.Context, identity auth.Identity, in CreateLeadInput) (*Lead, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Email == "" || in.Phone == "" {
		return nil, fmt.Errorf("%w: name, email, and phone are required", ErrInvalidInput)
	}
	lead := &Lead{
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Source:        strings.TrimSpace(in.Source),
		Status:        LeadStatusNew,
		AssignedAgent: identity.ID,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, err
	}
	s.record(ctx, identity, "created lead", "lead", lead.ID)
	return lead, nil
}

func (s *Service) UpdateLead(ctx context.Context, identity auth.Identity, id string, upd LeadUpdate) (*Lead, error) {
	lead, err := s.leads.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(identity, lead.AssignedAgent); err != nil {
		return nil, err
	}
	updated, err := s.leads.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "updated lead", "lead", id)
	return updated, nil
}

// ArchiveLead soft-deletes a lead; archived leads drop out of listings but
// remain recoverable in storage.
func (s *Service) ArchiveLead(ctx context.Context, identity auth.Identity, id string) error {
	lead, err := s.leads.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(identity, lead.AssignedAgent); err != nil {
		return err
	}
	if err := s.leads.Archive(ctx, id); err != nil {
		return err
	}
	s.record(ctx, identity, "archived lead", "lead", id)
	return nil
}

// ConvertLead turns a lead into a customer owned by the lead's assigned
// agent. The lead itself is left in place.
func (s *Service) ConvertLead(ctx context.Context, identity auth.Identity, id string) (*Customer, error) {
	lead, err := s.leads.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(identity, lead.AssignedAgent); err != nil {
		return nil, err
	}
	customer := &Customer{
		Name:  lead.Name,
		Email: lead.Email,
		Phone: lead.Phone,
		Owner: lead.AssignedAgent,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	s.record(ctx, identity, "converted lead to customer", "lead", id)
	return customer, nil
}

// Customers -----------------------------------------------------------------

// CustomerPage is one page of a scoped customer listing.
type CustomerPage struct {
	Items      []Customer `json:"items"`
	Total      int        `json:"total"`
	TotalPages int        `json:"total_pages"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
}

// CreateCustomerInput carries the fields accepted at customer creation.
type CreateCustomerInput struct {
	Name    string
	Company string
	Email   string
	Phone   string
	Tags    []string
}

func (s *Service) ListCustomers(ctx context.Context, identity auth.Identity, p Page) (CustomerPage, error) {
	p = p.normalize()
	items, total, err := s.customers.List(ctx, ScopeFor(identity), p)
	if err != nil {
		return CustomerPage{}, err
	}
	return CustomerPage{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, p.Limit),
		Page:       p.Number,
		Limit:      p.Limit,
	}, nil
}

func (s *Service) GetCustomer(ctx context.Context, identity auth.Identity, id string) (*Customer, error) {
	customer, err := s.customers.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(identity, customer.Owner); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Service) CreateCustomer(ctx context.Context, identity auth.Identity, in CreateCustomerInput) (*Customer, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Name == "" || in.Email == "" || in.Phone == "" {
		return nil, fmt.Errorf("%w: name, email, and phone are required", ErrInvalidInput)
	}
	customer := &Customer{
		Name:    in.Name,
		Company: strings.TrimSpace(in.Company),
		Email:   in.Email,
		Phone:   in.Phone,
		Tags:    in.Tags,
		Owner:   identity.ID,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	s.record(ctx, identity, "created customer", "customer", customer.ID)
	return customer, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, identity auth.Identity, id string, upd CustomerUpdate) (*Customer, error) {
	customer, err := s.customers.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(identity, customer.Owner); err != nil {
		return nil, err
	}
	updated, err := s.customers.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "updated customer", "customer", id)
	return updated, nil
}

// ArchiveCustomer soft-deletes a customer.
func (s *Service) ArchiveCustomer(ctx context.Context, identity auth.Identity, id string) error {
	customer, err := s.customers.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(identity, customer.Owner); err != nil {
		return err
	}
	if err := s.customers.Archive(ctx, id); err != nil {
		return err
	}
	s.record(ctx, identity, "archived customer", "customer", id)
	return nil
}

func (s *Service) AddCustomerNote(ctx context.Context, identity auth.Identity, id, body string) (*Customer, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: note body cannot be empty", ErrInvalidInput)
	}
	customer, err := s.customers.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(identity, customer.Owner); err != nil {
		return nil, err
	}
	updated, err := s.customers.AddNote(ctx, id, Note{Body: body, CreatedAt: s.now().UTC()})
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "added note to customer", "customer", id)
	return updated, nil
}

func (s *Service) CountCustomers(ctx context.Context, identity auth.Identity) (int, error) {
	return s.customers.Count(ctx, ScopeFor(identity))
}

// Tasks ---------------------------------------------------------------------

// TaskPage is one page of a scoped task listing.
type TaskPage struct {
	Items      []Task `json:"items"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

// CreateTaskInput carries the fields accepted at task creation.
type CreateTaskInput struct {
	Title       string
	Description string
	DueDate     time.Time
	Status      TaskStatus
	Priority    TaskPriority
	RelatedTo   TaskRelation
}

func (s *Service) ListTasks(ctx context.Context, identity auth.Identity, f TaskFilter, p Page) (TaskPage, error) {
	p = p.normalize()
	items, total, err := s.tasks.List(ctx, ScopeFor(identity), f, p)
	if err != nil {
		return TaskPage{}, err
	}
	return TaskPage{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, p.Limit),
		Page:       p.Number,
		Limit:      p.Limit,
	}, nil
}

func (s *Service) CreateTask(ctx context.Context, identity auth.Identity, in CreateTaskInput) (*Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrInvalidInput)
	}
	if in.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", ErrInvalidInput)
	}
	if in.RelatedTo == "" {
		return nil, fmt.Errorf("%w: related entity type is required", ErrInvalidInput)
	}
	if _, err := ParseTaskRelation(string(in.RelatedTo)); err != nil {
		return nil, err
	}
	if in.Status == "" {
		in.Status = TaskStatusOpen
	} else if _, err := ParseTaskStatus(string(in.Status)); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = TaskPriorityMedium
	} else if _, err := ParseTaskPriority(string(in.Priority)); err != nil {
		return nil, err
	}
	task := &Task{
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		Status:      in.Status,
		Priority:    in.Priority,
		RelatedTo:   in.RelatedTo,
		Owner:       identity.ID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	s.record(ctx, identity, "created task", "task", task.ID)
	return task, nil
}

func (s *Service) UpdateTask(ctx context.Context, identity auth.Identity, id string, upd TaskUpdate) (*Task, error) {
	task, err := s.tasks.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(identity, task.Owner); err != nil {
		return nil, err
	}
	if upd.Status != nil {
		if _, err := ParseTaskStatus(string(*upd.Status)); err != nil {
			return nil, err
		}
	}
	if upd.Priority != nil {
		if _, err := ParseTaskPriority(string(*upd.Priority)); err != nil {
			return nil, err
		}
	}
	updated, err := s.tasks.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "updated task", "task", id)
	return updated, nil
}

func (s *Service) DeleteTask(ctx context.Context, identity auth.Identity, id string) error {
	task, err := s.tasks.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(identity, task.Owner); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, identity, "deleted task", "task", id)
	return nil
}

// OverdueTasks lists unfinished tasks whose due date has passed, scoped to
// the caller.
func (s *Service) OverdueTasks(ctx context.Context, identity auth.Identity, p Page) (TaskPage, error) {
	return s.ListTasks(ctx, identity, TaskFilter{DueBefore: s.now().UTC()}, p)
}

// CountOpenTasks counts unfinished tasks, scoped to the caller.
func (s *Service) CountOpenTasks(ctx context.Context, identity auth.Identity) (int, error) {
	return s.tasks.CountOpen(ctx, ScopeFor(identity))
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

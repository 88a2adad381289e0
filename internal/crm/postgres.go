package crm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"leadline.org/internal/ids"
)

var (
	_ LeadStore     = (*PGLeadStore)(nil)
	_ CustomerStore = (*PGCustomerStore)(nil)
	_ TaskStore     = (*PGTaskStore)(nil)
)

// filterBuilder accumulates where clauses with numbered placeholders.
type filterBuilder struct {
	clauses []string
	args    []any
}

func (f *filterBuilder) add(expr string, arg any) {
	f.args = append(f.args, arg)
	f.clauses = append(f.clauses, fmt.Sprintf(expr, len(f.args)))
}

func (f *filterBuilder) addExpr(expr string) {
	f.clauses = append(f.clauses, expr)
}

func (f *filterBuilder) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " where " + strings.Join(f.clauses, " and ")
}

// Lead store ----------------------------------------------------------------

// PGLeadStore implements LeadStore using PostgreSQL.
type PGLeadStore struct {
	db *sql.DB
}

func NewPGLeadStore(db *sql.DB) *PGLeadStore { return &PGLeadStore{db: db} }

const leadColumns = `id, name, email, phone, status, source, assigned_agent, archived, created_at, updated_at`

func (s *PGLeadStore) Create(ctx context.Context, l *Lead) error {
	if l.ID == "" {
		l.ID = ids.New()
	}
	if l.Status == "" {
		l.Status = LeadStatusNew
	}
	return s.db.QueryRowContext(ctx,
		`insert into leads(id, name, email, phone, status, source, assigned_agent)
		 values($1,$2,$3,$4,$5,$6,$7) returning created_at, updated_at`,
		l.ID, l.Name, l.Email, l.Phone, string(l.Status), l.Source, l.AssignedAgent,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
}

func (s *PGLeadStore) Find(ctx context.Context, id string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, `select `+leadColumns+` from leads where id=$1`, id)
	return scanLead(row)
}

func (s *PGLeadStore) Update(ctx context.Context, id string, upd LeadUpdate) (*Lead, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Source != nil {
		add("source", *upd.Source)
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if len(sets) == 0 {
		return s.Find(ctx, id)
	}
	sets = append(sets, "updated_at=now()")
	args = append(args, id)
	row := s.db.QueryRowContext(ctx,
		`update leads set `+strings.Join(sets, ", ")+
			fmt.Sprintf(` where id=$%d returning `, len(args))+leadColumns,
		args...,
	)
	return scanLead(row)
}

func (s *PGLeadStore) Archive(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update leads set archived=true, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGLeadStore) List(ctx context.Context, scope Scope, f LeadFilter, p Page) ([]Lead, int, error) {
	p = p.normalize()
	var fb filterBuilder
	fb.addExpr("archived=false")
	if scope.Restricted() {
		fb.add("assigned_agent=$%d", scope.OwnerID)
	}
	if f.Status != "" {
		fb.add("status=$%d", string(f.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from leads`+fb.where(), fb.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, fb.args...), p.Limit, p.Offset())
	rows, err := s.db.QueryContext(ctx,
		`select `+leadColumns+` from leads`+fb.where()+
			fmt.Sprintf(` order by created_at desc limit $%d offset $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, *l)
	}
	return leads, total, rows.Err()
}

func scanLead(row rowScanner) (*Lead, error) {
	var (
		l      Lead
		status string
	)
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &status, &l.Source,
		&l.AssignedAgent, &l.Archived, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	l.Status = LeadStatus(status)
	return &l, nil
}

// Customer store ------------------------------------------------------------

// PGCustomerStore implements CustomerStore using PostgreSQL. Notes and tags
// are stored as JSONB documents.
type PGCustomerStore struct {
	db *sql.DB
}

func NewPGCustomerStore(db *sql.DB) *PGCustomerStore { return &PGCustomerStore{db: db} }

const customerColumns = `id, name, company, email, phone, notes, tags, owner, archived, created_at, updated_at`

func (s *PGCustomerStore) Create(ctx context.Context, c *Customer) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	notes, _ := json.Marshal(c.Notes)
	tags, _ := json.Marshal(c.Tags)
	return s.db.QueryRowContext(ctx,
		`insert into customers(id, name, company, email, phone, notes, tags, owner)
		 values($1,$2,$3,$4,$5,$6,$7,$8) returning created_at, updated_at`,
		c.ID, c.Name, c.Company, c.Email, c.Phone, notes, tags, c.Owner,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *PGCustomerStore) Find(ctx context.Context, id string) (*Customer, error) {
	row := s.db.QueryRowContext(ctx, `select `+customerColumns+` from customers where id=$1`, id)
	return scanCustomer(row)
}

func (s *PGCustomerStore) Update(ctx context.Context, id string, upd CustomerUpdate) (*Customer, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Company != nil {
		add("company", *upd.Company)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.Tags != nil {
		tags, _ := json.Marshal(upd.Tags)
		add("tags", tags)
	}
	if len(sets) == 0 {
		return s.Find(ctx, id)
	}
	sets = append(sets, "updated_at=now()")
	args = append(args, id)
	row := s.db.QueryRowContext(ctx,
		`update customers set `+strings.Join(sets, ", ")+
			fmt.Sprintf(` where id=$%d returning `, len(args))+customerColumns,
		args...,
	)
	return scanCustomer(row)
}

func (s *PGCustomerStore) Archive(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update customers set archived=true, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGCustomerStore) AddNote(ctx context.Context, id string, note Note) (*Customer, error) {
	doc, _ := json.Marshal(note)
	row := s.db.QueryRowContext(ctx,
		`update customers set notes = notes || $1::jsonb, updated_at=now()
		 where id=$2 returning `+customerColumns,
		doc, id,
	)
	return scanCustomer(row)
}

func (s *PGCustomerStore) List(ctx context.Context, scope Scope, p Page) ([]Customer, int, error) {
	p = p.normalize()
	var fb filterBuilder
	fb.addExpr("archived=false")
	if scope.Restricted() {
		fb.add("owner=$%d", scope.OwnerID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from customers`+fb.where(), fb.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, fb.args...), p.Limit, p.Offset())
	rows, err := s.db.QueryContext(ctx,
		`select `+customerColumns+` from customers`+fb.where()+
			fmt.Sprintf(` order by created_at desc limit $%d offset $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, *c)
	}
	return customers, total, rows.Err()
}

func (s *PGCustomerStore) Count(ctx context.Context, scope Scope) (int, error) {
	var fb filterBuilder
	fb.addExpr("archived=false")
	if scope.Restricted() {
		fb.add("owner=$%d", scope.OwnerID)
	}
	var total int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from customers`+fb.where(), fb.args...).Scan(&total)
	return total, err
}

func scanCustomer(row rowScanner) (*Customer, error) {
	var (
		c     Customer
		notes []byte
		tags  []byte
	)
	err := row.Scan(&c.ID, &c.Name, &c.Company, &c.Email, &c.Phone, &notes, &tags,
		&c.Owner, &c.Archived, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(notes, &c.Notes)
	_ = json.Unmarshal(tags, &c.Tags)
	return &c, nil
}

// Task store ----------------------------------------------------------------

// PGTaskStore implements TaskStore using PostgreSQL.
type PGTaskStore struct {
	db *sql.DB
}

func NewPGTaskStore(db *sql.DB) *PGTaskStore { return &PGTaskStore{db: db} }

const taskColumns = `id, title, description, due_date, status, priority, related_to, owner, created_at, updated_at`

func (s *PGTaskStore) Create(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = ids.New()
	}
	return s.db.QueryRowContext(ctx,
		`insert into tasks(id, title, description, due_date, status, priority, related_to, owner)
		 values($1,$2,$3,$4,$5,$6,$7,$8) returning created_at, updated_at`,
		t.ID, t.Title, t.Description, t.DueDate, string(t.Status), string(t.Priority),
		string(t.RelatedTo), t.Owner,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (s *PGTaskStore) Find(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `select `+taskColumns+` from tasks where id=$1`, id)
	return scanTask(row)
}

func (s *PGTaskStore) Update(ctx context.Context, id string, upd TaskUpdate) (*Task, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.DueDate != nil {
		add("due_date", *upd.DueDate)
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.Priority != nil {
		add("priority", string(*upd.Priority))
	}
	if len(sets) == 0 {
		return s.Find(ctx, id)
	}
	sets = append(sets, "updated_at=now()")
	args = append(args, id)
	row := s.db.QueryRowContext(ctx,
		`update tasks set `+strings.Join(sets, ", ")+
			fmt.Sprintf(` where id=$%d returning `, len(args))+taskColumns,
		args...,
	)
	return scanTask(row)
}

func (s *PGTaskStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from tasks where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGTaskStore) List(ctx context.Context, scope Scope, f TaskFilter, p Page) ([]Task, int, error) {
	p = p.normalize()
	var fb filterBuilder
	if scope.Restricted() {
		fb.add("owner=$%d", scope.OwnerID)
	}
	if f.Status != "" {
		fb.add("status=$%d", string(f.Status))
	}
	if f.Priority != "" {
		fb.add("priority=$%d", string(f.Priority))
	}
	if f.RelatedTo != "" {
		fb.add("related_to=$%d", string(f.RelatedTo))
	}
	if !f.DueBefore.IsZero() {
		// Overdue listings exclude finished tasks.
		fb.add("due_date<=$%d", f.DueBefore)
		fb.addExpr("status<>'" + string(TaskStatusDone) + "'")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from tasks`+fb.where(), fb.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args := append(append([]any{}, fb.args...), p.Limit, p.Offset())
	rows, err := s.db.QueryContext(ctx,
		`select `+taskColumns+` from tasks`+fb.where()+
			fmt.Sprintf(` order by due_date asc limit $%d offset $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, total, rows.Err()
}

func (s *PGTaskStore) CountOpen(ctx context.Context, scope Scope) (int, error) {
	var fb filterBuilder
	fb.addExpr("status<>'" + string(TaskStatusDone) + "'")
	if scope.Restricted() {
		fb.add("owner=$%d", scope.OwnerID)
	}
	var total int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from tasks`+fb.where(), fb.args...).Scan(&total)
	return total, err
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t        Task
		status   string
		priority string
		related  string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.DueDate, &status, &priority,
		&related, &t.Owner, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Status = TaskStatus(status)
	t.Priority = TaskPriority(priority)
	t.RelatedTo = TaskRelation(related)
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

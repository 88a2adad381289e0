package crm

import (
	"fmt"
	"strings"
	"time"
)

// LeadStatus tracks a lead through the pipeline.
type LeadStatus string

const (
	LeadStatusNew        LeadStatus = "New"
	LeadStatusInProgress LeadStatus = "In Progress"
	LeadStatusClosedWon  LeadStatus = "Closed Won"
	LeadStatusClosedLost LeadStatus = "Closed Lost"
)

func ParseLeadStatus(s string) (LeadStatus, error) {
	switch v := LeadStatus(strings.TrimSpace(s)); v {
	case LeadStatusNew, LeadStatusInProgress, LeadStatusClosedWon, LeadStatusClosedLost:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown lead status %q", ErrInvalidInput, s)
	}
}

// Lead is an unconverted prospect. AssignedAgent is the owning field used by
// the ownership filter.
type Lead struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Status        LeadStatus `json:"status"`
	Source        string     `json:"source,omitempty"`
	AssignedAgent string     `json:"assigned_agent"`
	Archived      bool       `json:"archived"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Note is a timestamped annotation on a customer.
type Note struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer is a converted or directly created account. Owner is the owning
// field used by the ownership filter.
type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Notes     []Note    `json:"notes,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Owner     string    `json:"owner"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskStatus tracks task progress.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "Open"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch v := TaskStatus(strings.TrimSpace(s)); v {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusDone:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, s)
	}
}

// TaskPriority orders tasks for the dashboard.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

func ParseTaskPriority(s string) (TaskPriority, error) {
	switch v := TaskPriority(strings.TrimSpace(s)); v {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown task priority %q", ErrInvalidInput, s)
	}
}

// TaskRelation names the entity type a task is attached to.
type TaskRelation string

const (
	TaskRelationLead     TaskRelation = "Lead"
	TaskRelationCustomer TaskRelation = "Customer"
)

func ParseTaskRelation(s string) (TaskRelation, error) {
	switch v := TaskRelation(strings.TrimSpace(s)); v {
	case TaskRelationLead, TaskRelationCustomer:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown task relation %q", ErrInvalidInput, s)
	}
}

// Task is a follow-up item. Owner is the owning field used by the ownership
// filter.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	DueDate     time.Time    `json:"due_date"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	RelatedTo   TaskRelation `json:"related_to"`
	Owner       string       `json:"owner"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

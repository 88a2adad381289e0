package httpapi

import (
	"net/http"
	"strings"
	"time"

	"leadline.org/internal/crm"
)

type createTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	RelatedTo   string    `json:"related_to"`
}

type updateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
}

func (a *API) handleTasksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listTasks(w, r)
	case http.MethodPost:
		a.createTask(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTaskResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if path == "overdue" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.listOverdueTasks(w, r)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		a.updateTask(w, r, path)
	case http.MethodDelete:
		a.deleteTask(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var filter crm.TaskFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status, err := crm.ParseTaskStatus(s)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		filter.Status = status
	}
	if s := q.Get("priority"); s != "" {
		priority, err := crm.ParseTaskPriority(s)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		filter.Priority = priority
	}
	if s := q.Get("related_to"); s != "" {
		relation, err := crm.ParseTaskRelation(s)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		filter.RelatedTo = relation
	}
	page, err := a.crm.ListTasks(r.Context(), identity, filter, parsePage(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) listOverdueTasks(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	page, err := a.crm.OverdueTasks(r.Context(), identity, parsePage(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	task, err := a.crm.CreateTask(r.Context(), identity, crm.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      crm.TaskStatus(req.Status),
		Priority:    crm.TaskPriority(req.Priority),
		RelatedTo:   crm.TaskRelation(req.RelatedTo),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *API) updateTask(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := crm.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Status != nil {
		status := crm.TaskStatus(*req.Status)
		upd.Status = &status
	}
	if req.Priority != nil {
		priority := crm.TaskPriority(*req.Priority)
		upd.Priority = &priority
	}
	task, err := a.crm.UpdateTask(r.Context(), identity, id, upd)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := a.crm.DeleteTask(r.Context(), identity, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

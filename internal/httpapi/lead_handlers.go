package httpapi

import (
	"net/http"
	"strings"

	"leadline.org/internal/crm"
)

type createLeadRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
}

type updateLeadRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Phone  *string `json:"phone"`
	Source *string `json:"source"`
	Status *string `json:"status"`
}

func (a *API) handleLeadsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listLeads(w, r)
	case http.MethodPost:
		a.createLead(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleLeadResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/leads/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/convert") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/convert"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "lead not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.convertLead(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		a.updateLead(w, r, path)
	case http.MethodDelete:
		a.archiveLead(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listLeads(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var filter crm.LeadFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := crm.ParseLeadStatus(s)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		filter.Status = status
	}
	page, err := a.crm.ListLeads(r.Context(), identity, filter, parsePage(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) createLead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req createLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	lead, err := a.crm.CreateLead(r.Context(), identity, crm.CreateLeadInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Source: req.Source,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (a *API) updateLead(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req updateLeadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	upd := crm.LeadUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Source: req.Source,
	}
	if req.Status != nil {
		status, err := crm.ParseLeadStatus(*req.Status)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		upd.Status = &status
	}
	lead, err := a.crm.UpdateLead(r.Context(), identity, id, upd)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (a *API) archiveLead(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := a.crm.ArchiveLead(r.Context(), identity, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "archived"})
}

func (a *API) convertLead(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	customer, err := a.crm.ConvertLead(r.Context(), identity, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

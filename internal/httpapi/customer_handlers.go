package httpapi

import (
	"net/http"
	"strings"

	"leadline.org/internal/crm"
)

type createCustomerRequest struct {
	Name    string   `json:"name"`
	Company string   `json:"company"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone"`
	Tags    []string `json:"tags"`
}

type updateCustomerRequest struct {
	Name    *string  `json:"name"`
	Company *string  `json:"company"`
	Email   *string  `json:"email"`
	Phone   *string  `json:"phone"`
	Tags    []string `json:"tags"`
}

type addNoteRequest struct {
	Body string `json:"body"`
}

func (a *API) handleCustomersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCustomers(w, r)
	case http.MethodPost:
		a.createCustomer(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCustomerResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/customers/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/notes") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/notes"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "customer not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.addCustomerNote(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getCustomer(w, r, path)
	case http.MethodPut:
		a.updateCustomer(w, r, path)
	case http.MethodDelete:
		a.archiveCustomer(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listCustomers(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	page, err := a.crm.ListCustomers(r.Context(), identity, parsePage(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) getCustomer(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	customer, err := a.crm.GetCustomer(r.Context(), identity, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) createCustomer(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req createCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := a.crm.CreateCustomer(r.Context(), identity, crm.CreateCustomerInput{
		Name:    req.Name,
		Company: req.Company,
		Email:   req.Email,
		Phone:   req.Phone,
		Tags:    req.Tags,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

func (a *API) updateCustomer(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req updateCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := a.crm.UpdateCustomer(r.Context(), identity, id, crm.CustomerUpdate{
		Name:    req.Name,
		Company: req.Company,
		Email:   req.Email,
		Phone:   req.Phone,
		Tags:    req.Tags,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (a *API) archiveCustomer(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if err := a.crm.ArchiveCustomer(r.Context(), identity, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "archived"})
}

func (a *API) addCustomerNote(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	var req addNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	customer, err := a.crm.AddCustomerNote(r.Context(), identity, id, req.Body)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, customer)
}

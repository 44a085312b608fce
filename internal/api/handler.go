package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kitedata/kite/internal/dberr"
	"github.com/kitedata/kite/internal/domain"
	"github.com/kitedata/kite/internal/repository"
	"github.com/kitedata/kite/internal/session"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	factory *session.Factory
	version string
}

// NewHandler creates a new API handler.
func NewHandler(factory *session.Factory, version string) *Handler {
	return &Handler{
		factory: factory,
		version: version,
	}
}

// CompanyRequest is the request body for POST and PUT /companies.
type CompanyRequest struct {
	Name      string `json:"name"`
	Country   string `json:"country"`
	Employees int64  `json:"employees"`

	// Version is the version the caller last saw. Updates against an older
	// version are rejected as conflicts. Ignored on create.
	Version *int64 `json:"version,omitempty"`
}

// Health handles GET /health requests.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready requests. Ready means the pool answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.factory.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ListConstraints handles GET /constraints: the constraint metadata the
// translator disambiguates against.
func (h *Handler) ListConstraints(w http.ResponseWriter, r *http.Request) {
	constraints := h.factory.Constraints()
	writeJSON(w, http.StatusOK, map[string]any{
		"constraints": constraints,
		"count":       len(constraints),
	})
}

// GetAuditTrail handles GET /audit?entity=&id= requests.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	id := r.URL.Query().Get("id")
	if entity == "" || id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "entity and id query parameters are required",
		})
		return
	}

	records, err := h.factory.AuditTrail(r.Context(), entity, id)
	if err != nil {
		writeDataError(w, err)
		return
	}
	if records == nil {
		records = []*domain.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// CreateCompany handles POST /companies requests.
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}

	company := domain.Company{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Country:   req.Country,
		Employees: req.Employees,
	}

	err := h.factory.Do(ctx, func(s *session.Session) error {
		return s.Insert(ctx, &company)
	})
	if err != nil {
		writeDataError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, company)
}

// GetCompany handles GET /companies/{id} requests.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var company domain.Company
	err := h.factory.Do(ctx, func(s *session.Session) error {
		return s.Get(ctx, &company, id)
	})
	if err != nil {
		writeDataError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, company)
}

// UpdateCompany handles PUT /companies/{id} requests. The stored row is
// loaded first so the audit trail records exactly the properties that
// changed; the caller's version gates the write optimistically.
func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req CompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}

	var company domain.Company
	err := h.factory.Do(ctx, func(s *session.Session) error {
		if err := s.Get(ctx, &company, id); err != nil {
			return err
		}
		company.Name = req.Name
		company.Country = req.Country
		company.Employees = req.Employees
		if req.Version != nil {
			company.Version = *req.Version
		}
		return s.Update(ctx, &company)
	})
	if err != nil {
		writeDataError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, company)
}

// DeleteCompany handles DELETE /companies/{id} requests.
func (h *Handler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	err := h.factory.Do(ctx, func(s *session.Session) error {
		var company domain.Company
		if err := s.Get(ctx, &company, id); err != nil {
			return err
		}
		return s.Delete(ctx, &company)
	})
	if err != nil {
		writeDataError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeDataError maps the data layer's error taxonomy onto HTTP statuses.
func writeDataError(w http.ResponseWriter, err error) {
	if ce, ok := dberr.AsConstraint(err); ok {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":      ce.Error(),
			"kind":       string(ce.Kind),
			"constraint": ce.ConstraintName,
		})
		return
	}

	var stale *dberr.StaleObjectError
	if errors.As(err, &stale) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  stale.Error(),
			"entity": stale.EntityName,
			"id":     stale.EntityID,
		})
		return
	}

	var pe *dberr.ProgrammingError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": pe.Error(),
		})
		return
	}

	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "not found",
		})
		return
	}

	slog.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

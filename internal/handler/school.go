package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/classledger/classledger/internal/billing"
	"github.com/classledger/classledger/internal/store"
)

type SchoolHandler struct {
	schools *store.SchoolStore
	engine  *billing.Engine
	logger  *slog.Logger
}

func NewSchoolHandler(schools *store.SchoolStore, engine *billing.Engine, logger *slog.Logger) *SchoolHandler {
	return &SchoolHandler{schools: schools, engine: engine, logger: logger}
}

// Create provisions a tenant record. Admin only.
func (h *SchoolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "name_and_email_required")
		return
	}

	existing, err := h.schools.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("lookup school", "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email_taken")
		return
	}

	school, err := h.schools.Create(req.Name, req.Email)
	if err != nil {
		h.logger.Error("create school", "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	h.logger.Info("school created", "school_id", school.ID, "name", school.Name)
	writeJSON(w, http.StatusCreated, school)
}

// Get returns a tenant record, including the entitlement pointer. Admin only.
func (h *SchoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r)
	if !ok {
		return
	}
	school, err := h.schools.GetByID(schoolID)
	if err != nil {
		h.logger.Error("get school", "school_id", schoolID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	if school == nil {
		writeError(w, http.StatusNotFound, "school_not_found")
		return
	}
	writeJSON(w, http.StatusOK, school)
}

// EnrollStudent adds a roster member, gated by the current entitlement's
// billable-student ceiling.
func (h *SchoolHandler) EnrollStudent(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	student, err := h.engine.EnrollStudent(schoolID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrNoActiveSubscription):
			writeError(w, http.StatusPaymentRequired, "no_active_subscription")
		case errors.Is(err, billing.ErrCapacityExceeded):
			writeError(w, http.StatusUnprocessableEntity, "capacity_exceeded")
		default:
			h.logger.Error("enroll student", "school_id", schoolID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}
	writeJSON(w, http.StatusCreated, student)
}

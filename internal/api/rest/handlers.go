// Package rest exposes the onboarding core over JSON HTTP. Handlers accept
// structured input and return structured results or errors; rendering and
// navigation belong to whatever sits in front of this API.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clintrovert/onboarder/internal/onboarding"
	"github.com/clintrovert/onboarder/internal/roster"
	"github.com/clintrovert/onboarder/internal/store"
	"github.com/clintrovert/onboarder/pkg/types"
)

// Handler handles REST API requests.
type Handler struct {
	orchestrator *onboarding.Orchestrator
	roster       *roster.Service
	logger       *zap.Logger
}

// NewHandler creates a new REST handler.
func NewHandler(orchestrator *onboarding.Orchestrator, rs *roster.Service, logger *zap.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		roster:       rs,
		logger:       logger,
	}
}

// RegisterRoutes registers REST API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/newhires", h.SubmitNewHire)

	r.Get("/roles", h.ListRoles)
	r.Post("/roles", h.SaveRole)
	r.Delete("/roles/{name}", h.DeleteRole)

	r.Get("/tasks", h.ListTasks)
	r.Post("/tasks", h.SaveTask)
	r.Delete("/tasks/{subject}", h.DeleteTask)

	r.Get("/taskmaps", h.ListTaskMaps)
	r.Post("/taskmaps", h.CreateTaskMap)
	r.Delete("/taskmaps/{name}", h.DeleteTaskMap)
	r.Put("/tasktable", h.ReplaceTaskTable)

	r.Get("/config", h.GetConfig)
	r.Put("/config", h.SetConfig)
}

// NewHireAttachment is one file submitted with a new-hire request.
type NewHireAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// NewHireSubmission represents a request to onboard a new hire.
type NewHireSubmission struct {
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	Department  string              `json:"department"`
	StartYear   string              `json:"start_year"`
	StartMonth  string              `json:"start_month"`
	StartDay    string              `json:"start_day"`
	Attachments []NewHireAttachment `json:"attachments,omitempty"`
}

type errorResponse struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// SubmitNewHire handles POST /newhires.
func (h *Handler) SubmitNewHire(w http.ResponseWriter, r *http.Request) {
	var sub NewHireSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}

	req := types.NewHireRequest{
		FirstName:  sub.FirstName,
		LastName:   sub.LastName,
		Department: sub.Department,
		StartYear:  sub.StartYear,
		StartMonth: sub.StartMonth,
		StartDay:   sub.StartDay,
	}
	for _, att := range sub.Attachments {
		req.Attachments = append(req.Attachments, types.Attachment{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Data:        att.Data,
		})
	}

	result, err := h.orchestrator.ValidateAndSubmit(r.Context(), req)
	if err != nil {
		var verr *onboarding.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Code, verr.Message)
			return
		}
		// Nothing was created; the tracker or its configuration is at
		// fault. The tracker's own message passes through verbatim.
		h.logger.Error("onboarding run failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListRoles handles GET /roles.
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roster.Roles(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	if roles == nil {
		roles = []types.Role{}
	}
	writeJSON(w, http.StatusOK, roles)
}

// SaveRole handles POST /roles. Saving a role whose name already exists
// replaces it.
func (h *Handler) SaveRole(w http.ResponseWriter, r *http.Request) {
	var role types.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	if err := h.roster.SaveRole(r.Context(), role); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// DeleteRole handles DELETE /roles/{name}. Deletion is rejected with 409
// while any task still references the role.
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteRole(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTasks handles GET /tasks.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.roster.Tasks(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// SaveTask handles POST /tasks.
func (h *Handler) SaveTask(w http.ResponseWriter, r *http.Request) {
	var task types.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	if err := h.roster.SaveTask(r.Context(), task); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /tasks/{subject}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteTask(r.Context(), chi.URLParam(r, "subject")); err != nil {
		h.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTaskMaps handles GET /taskmaps.
func (h *Handler) ListTaskMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := h.roster.TaskMaps(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	if maps == nil {
		maps = []types.TaskMap{}
	}
	writeJSON(w, http.StatusOK, maps)
}

// CreateTaskMapRequest represents a request to add a department.
type CreateTaskMapRequest struct {
	Name string `json:"name"`
}

// CreateTaskMap handles POST /taskmaps. Duplicate departments are rejected
// with 409.
func (h *Handler) CreateTaskMap(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	if err := h.roster.SaveTaskMap(r.Context(), req.Name); err != nil {
		h.domainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.TaskMap{Name: req.Name, Tasks: []string{}})
}

// DeleteTaskMap handles DELETE /taskmaps/{name}.
func (h *Handler) DeleteTaskMap(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.DeleteTaskMap(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceTaskTableRequest carries the full department -> ordered subjects
// mapping the task table is rewritten from.
type ReplaceTaskTableRequest struct {
	Memberships map[string][]string `json:"memberships"`
}

// ReplaceTaskTable handles PUT /tasktable. The entire membership of every
// department is replaced in one transaction.
func (h *Handler) ReplaceTaskTable(w http.ResponseWriter, r *http.Request) {
	var req ReplaceTaskTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	if err := h.roster.ReplaceTaskTable(r.Context(), req.Memberships); err != nil {
		h.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConfigResponse carries the scalar settings the pipeline depends on.
type ConfigResponse struct {
	DefaultRedmineProject string `json:"default_redmine_project"`
	HiringManager         string `json:"hiring_manager"`
}

// GetConfig handles GET /config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	project, err := h.roster.Config(r.Context(), store.ConfigDefaultProject)
	if err != nil {
		h.serverError(w, err)
		return
	}
	manager, err := h.roster.Config(r.Context(), store.ConfigHiringManager)
	if err != nil {
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfigResponse{
		DefaultRedmineProject: project,
		HiringManager:         manager,
	})
}

// SetConfig handles PUT /config.
func (h *Handler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	if err := h.roster.SetConfig(r.Context(), store.ConfigDefaultProject, req.DefaultRedmineProject); err != nil {
		h.serverError(w, err)
		return
	}
	if err := h.roster.SetConfig(r.Context(), store.ConfigHiringManager, req.HiringManager); err != nil {
		h.serverError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) domainError(w http.ResponseWriter, err error) {
	var conflict *roster.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "", conflict.Message)
	case errors.Is(err, roster.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "", err.Error())
	default:
		h.serverError(w, err)
	}
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Error: message})
}

package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

type progressRequest struct {
	Notes  string  `json:"notes"`
	Status *string `json:"status"`
}

type escalateRequest struct {
	Notes string `json:"notes"`
}

type assignmentRequest struct {
	Role   string  `json:"role"`
	UserID *string `json:"user_id"`
}

func (rt *Router) listTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	query := r.URL.Query()
	list, err := rt.services.Tasks.ListTasks(r.Context(), actor, domain.TaskFilter{
		Role:   domain.Role(strings.ToUpper(strings.TrimSpace(query.Get("role")))),
		Status: domain.TaskStatus(strings.ToUpper(strings.TrimSpace(query.Get("status")))),
		Page:   page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (rt *Router) recordProgress(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req progressRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	var status *domain.TaskStatus
	if req.Status != nil && strings.TrimSpace(*req.Status) != "" {
		s := domain.TaskStatus(*req.Status)
		status = &s
	}

	update, err := rt.services.Tasks.RecordProgress(r.Context(), chi.URLParam(r, "id"), actor, req.Notes, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, update)
}

func (rt *Router) escalateTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req escalateRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	update, err := rt.services.Tasks.Escalate(r.Context(), chi.URLParam(r, "id"), actor, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, update)
}

func (rt *Router) reassignTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req assignmentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	role, valid := domain.ParseRole(req.Role)
	if !valid {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "reassign task", errors.New("unknown role "+req.Role)))
		return
	}

	task, err := rt.services.Tasks.Reassign(r.Context(), chi.URLParam(r, "id"), actor, role, req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (rt *Router) listTaskUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := rt.services.Tasks.ListUpdates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": updates})
}

// decodeJSON reads a bounded JSON body into dst. allowEmpty accepts a missing
// body for endpoints whose fields are all optional.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}

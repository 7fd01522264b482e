package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
)

func invalidParam(name string) error {
	return fmt.Errorf("validation: bad %s: %w", name, errs.ErrValidation)
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.FromString(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, invalidParam(name)
	}
	return id, nil
}

type dataResponse struct {
	Projects []projectDTO `json:"projects"`
	Tasks    []taskDTO    `json:"tasks"`
}

func (a *api) data(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	projects, err := a.Projects.List(r.Context(), c.UserID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	tasks, err := a.Tasks.List(r.Context(), c.UserID, nil)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	td, err := toTaskDTOs(tasks)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	resp := dataResponse{Projects: make([]projectDTO, 0, len(projects)), Tasks: td}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, toProjectDTO(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

type projectRequest struct {
	Name string `json:"name"`
}

func (a *api) listProjects(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	projects, err := a.Projects.List(r.Context(), c.UserID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	out := make([]projectDTO, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) createProject(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	p, err := a.Projects.Create(r.Context(), c.UserID, req.Name)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

func (a *api) renameProject(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	if err := a.Projects.Rename(r.Context(), c.UserID, id, req.Name); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) deleteProject(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	if err := a.Projects.Delete(r.Context(), c.UserID, id); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listTasks(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	var project *uuid.UUID
	if q := r.URL.Query().Get("projectId"); q != "" {
		id, err := uuid.FromString(q)
		if err != nil {
			writeError(w, a.Log, invalidParam("projectId"))
			return
		}
		project = &id
	}
	tasks, err := a.Tasks.List(r.Context(), c.UserID, project)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	out, err := toTaskDTOs(tasks)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) writeTask(w http.ResponseWriter, status int, t model.Task) {
	d, err := toTaskDTO(t)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, status, d)
}

func (a *api) createTask(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	in, err := req.input(a.Location)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	t, err := a.Tasks.Create(r.Context(), c.UserID, in)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	a.writeTask(w, http.StatusCreated, t)
}

func (a *api) updateTask(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	in, err := req.input(a.Location)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	t, err := a.Tasks.Update(r.Context(), c.UserID, id, in)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	a.writeTask(w, http.StatusOK, t)
}

func (a *api) deleteTask(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	if err := a.Tasks.Delete(r.Context(), c.UserID, id); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) toggleTask(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	t, err := a.Tasks.Toggle(r.Context(), c.UserID, id)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	a.writeTask(w, http.StatusOK, t)
}

type notificationKeyRequest struct {
	Key string `json:"key"`
}

func (a *api) markTaskNotification(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	var req notificationKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	if err := a.Tasks.MarkNotificationSent(r.Context(), c.UserID, id, req.Key); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listNotifications(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	ns, err := a.Notifications.ListUnread(r.Context(), c.UserID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	out := make([]notificationDTO, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationDTO{
			ID:        n.ID,
			TaskID:    n.TaskID,
			Title:     n.Title,
			Body:      n.Body,
			Tag:       n.Tag,
			CreatedAt: n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) readNotification(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	if err := a.Notifications.MarkRead(r.Context(), c.UserID, id); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

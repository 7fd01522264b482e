package httpserver

import (
	"net/http"

	"github.com/and161185/jdue/internal/model"
)

func (a *api) adminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) adminStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.Admin.Stats(r.Context())
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) adminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	u, err := a.Admin.CreateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

type statusRequest struct {
	Status model.UserStatus `json:"status"`
}

func (a *api) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	if err := a.Admin.SetStatus(r.Context(), c.UserID, id, req.Status); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) adminDeleteUser(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	if err := a.Admin.DeleteUser(r.Context(), c.UserID, id); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

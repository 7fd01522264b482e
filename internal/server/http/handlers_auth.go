package httpserver

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/and161185/jdue/internal/service"
	"github.com/and161185/jdue/internal/webauthn"
)

// clientIP returns the host part of RemoteAddr, which RealIP has already
// replaced with the forwarded address when one is present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	tok, u, err := a.Auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(tok, u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	login := req.Email
	if login == "" {
		login = req.Username
	}
	tok, u, err := a.Auth.LoginWithIP(r.Context(), login, req.Password, clientIP(r))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(tok, u))
}

func (a *api) passkeyLoginBegin(w http.ResponseWriter, r *http.Request) {
	opts, err := a.Passkeys.BeginLogin(r.Context())
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (a *api) passkeyLoginFinish(w http.ResponseWriter, r *http.Request) {
	var req assertionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	tok, u, err := a.Passkeys.FinishLogin(r.Context(), req.input())
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(tok, u))
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	u, err := a.Auth.Me(r.Context(), c.UserID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

type profileRequest struct {
	Email           *string `json:"email"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     *string `json:"newPassword"`
}

func (a *api) updateMe(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	u, err := a.Auth.UpdateProfile(r.Context(), c.UserID, service.ProfileUpdate{
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (a *api) listPasskeys(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	creds, err := a.Passkeys.List(r.Context(), c.UserID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	out := make([]credentialDTO, 0, len(creds))
	for _, cr := range creds {
		out = append(out, toCredentialDTO(cr))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) passkeyRegisterBegin(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	opts, err := a.Passkeys.BeginRegistration(r.Context(), c.UserID)
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (a *api) passkeyRegisterFinish(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	var req registrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, a.Log, err)
		return
	}
	cred, err := a.Passkeys.FinishRegistration(r.Context(), req.input(c.UserID))
	if err != nil {
		writeError(w, a.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCredentialDTO(cred))
}

func (a *api) revokePasskey(w http.ResponseWriter, r *http.Request) {
	c, _ := CallerFromCtx(r.Context())
	id, err := webauthn.DecodeBase64URL(chi.URLParam(r, "credentialId"))
	if err != nil || len(id) == 0 {
		writeError(w, a.Log, invalidParam("credentialId"))
		return
	}
	if err := a.Passkeys.Revoke(r.Context(), c.UserID, id); err != nil {
		writeError(w, a.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

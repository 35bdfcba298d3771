package server

import (
	"net/http"

	"github.com/QTMarketing/cps-sub000/internal/common"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies credentials and issues a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, common.ErrInvalidInput)
		return
	}

	token, err := h.authSvc.Login(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type reAuthRequest struct {
	Password string `json:"password"`
}

// ReAuth re-verifies the password of an already-authenticated principal and
// issues the short-lived step-up credential.
func (h *Handlers) ReAuth(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(r)
	if !ok {
		writeError(w, common.ErrUnauthenticated)
		return
	}

	var req reAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Password == "" {
		writeError(w, common.ErrInvalidInput)
		return
	}

	u, err := h.users.GetByID(r.Context(), p.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.authSvc.VerifyPassword(r.Context(), u.Username, req.Password, r.RemoteAddr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reauthToken": token})
}

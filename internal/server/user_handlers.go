package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/QTMarketing/cps-sub000/internal/audit"
	"github.com/QTMarketing/cps-sub000/internal/auth"
	"github.com/QTMarketing/cps-sub000/internal/authz"
	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/models"
)

type userRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	StoreID  string `json:"storeId"`
}

// CreateUser registers a new operator account.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, common.ErrInvalidInput)
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, common.ErrInvalidInput)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	u := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         role,
		StoreID:      req.StoreID,
	}
	if err := h.users.Create(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// DeleteUser removes an operator account. The route sits behind the re-auth
// gate; account deletion always needs a fresh password confirmation.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(r)
	if !ok {
		writeError(w, common.ErrUnauthenticated)
		return
	}
	id := chi.URLParam(r, "id")

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		ActorID:    p.ID,
		Action:     audit.ActionDeleteUser,
		EntityType: "user",
		EntityID:   id,
		Old:        map[string]string{"username": u.Username, "role": u.Role.String()},
		SourceAddr: r.RemoteAddr,
	})
	w.WriteHeader(http.StatusNoContent)
}

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/QTMarketing/cps-sub000/internal/audit"
	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/models"
)

type checkRequest struct {
	StoreID     string `json:"storeId"`
	BankID      string `json:"bankId"`
	Number      int64  `json:"number"`
	Payee       string `json:"payee"`
	AmountCents int64  `json:"amountCents"`
	Memo        string `json:"memo"`
}

// CreateCheck issues a new check. Amounts at or above the step-up limit need
// a fresh re-auth credential even though issuing is otherwise routine.
func (h *Handlers) CreateCheck(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(r)
	if !ok {
		writeError(w, common.ErrUnauthenticated)
		return
	}

	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.BankID == "" || req.Payee == "" || req.AmountCents <= 0 {
		writeError(w, common.ErrInvalidInput)
		return
	}

	if !h.requireStepUp(w, r, p, audit.ActionCreateCheck, req.AmountCents) {
		return
	}

	c := &models.Check{
		StoreID:     req.StoreID,
		BankID:      req.BankID,
		Number:      req.Number,
		Payee:       req.Payee,
		AmountCents: req.AmountCents,
		Memo:        req.Memo,
		Status:      models.CheckIssued,
	}
	if err := h.checks.Create(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		ActorID:    p.ID,
		Action:     audit.ActionCreateCheck,
		EntityType: "check",
		EntityID:   c.ID,
		New:        checkSnapshot(c),
		SourceAddr: r.RemoteAddr,
	})
	writeJSON(w, http.StatusCreated, c)
}

// VoidCheck marks a check VOID. Voiding always needs a step-up credential
// regardless of amount.
func (h *Handlers) VoidCheck(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(r)
	if !ok {
		writeError(w, common.ErrUnauthenticated)
		return
	}

	c, err := h.checks.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if c.Status == models.CheckVoid {
		writeErrorCode(w, http.StatusConflict, "already_void")
		return
	}

	if !h.requireStepUp(w, r, p, audit.ActionVoidCheck, c.AmountCents) {
		return
	}

	old := checkSnapshot(c)
	c.Status = models.CheckVoid
	if err := h.checks.Update(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		ActorID:    p.ID,
		Action:     audit.ActionVoidCheck,
		EntityType: "check",
		EntityID:   c.ID,
		Old:        old,
		New:        checkSnapshot(c),
		SourceAddr: r.RemoteAddr,
	})
	writeJSON(w, http.StatusOK, c)
}

// GetCheck returns one check with its related bank account decrypted.
func (h *Handlers) GetCheck(w http.ResponseWriter, r *http.Request) {
	c, err := h.checks.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListChecks returns all checks, newest first.
func (h *Handlers) ListChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.checks.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"checks": checks})
}

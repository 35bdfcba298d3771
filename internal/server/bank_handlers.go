package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/QTMarketing/cps-sub000/internal/audit"
	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/models"
)

type bankRequest struct {
	StoreID       string `json:"storeId"`
	Name          string `json:"name"`
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber"`
}

func (req *bankRequest) validate() error {
	if req.Name == "" || req.AccountNumber == "" || req.RoutingNumber == "" {
		return common.ErrInvalidInput
	}
	return nil
}

// CreateBank stores a new payout account. Account and routing numbers are
// encrypted by the protecting store before they reach the database.
func (h *Handlers) CreateBank(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(r)
	if !ok {
		writeError(w, common.ErrUnauthenticated)
		return
	}

	var req bankRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	b := &models.BankAccount{
		StoreID:       req.StoreID,
		Name:          req.Name,
		AccountNumber: req.AccountNumber,
		RoutingNumber: req.RoutingNumber,
	}
	if err := h.banks.Create(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		ActorID:    p.ID,
		Action:     audit.ActionCreateBank,
		EntityType: "bank",
		EntityID:   b.ID,
		New:        bankSnapshot(b),
		SourceAddr: r.RemoteAddr,
	})
	writeJSON(w, http.StatusCreated, b)
}

// UpdateBank replaces the mutable attributes of an existing account. The
// route is mounted behind the re-auth gate; banking detail changes always
// need a fresh password confirmation.
func (h *Handlers) UpdateBank(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(r)
	if !ok {
		writeError(w, common.ErrUnauthenticated)
		return
	}
	id := chi.URLParam(r, "id")

	old, err := h.banks.Find(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req bankRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	b := &models.BankAccount{
		ID:            id,
		StoreID:       req.StoreID,
		Name:          req.Name,
		AccountNumber: req.AccountNumber,
		RoutingNumber: req.RoutingNumber,
		CreatedAt:     old.CreatedAt,
	}
	if b.StoreID == "" {
		b.StoreID = old.StoreID
	}
	if err := h.banks.Update(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		ActorID:    p.ID,
		Action:     audit.ActionUpdateBank,
		EntityType: "bank",
		EntityID:   b.ID,
		Old:        bankSnapshot(old),
		New:        bankSnapshot(b),
		SourceAddr: r.RemoteAddr,
	})
	writeJSON(w, http.StatusOK, b)
}

// GetBank returns one account with its protected fields decrypted, or
// redacted when the stored value cannot be recovered.
func (h *Handlers) GetBank(w http.ResponseWriter, r *http.Request) {
	b, err := h.banks.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListBanks returns all accounts.
func (h *Handlers) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.banks.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"banks": banks})
}

package server

import (
	"net/http"
	"strings"

	"github.com/QTMarketing/cps-sub000/internal/audit"
	"github.com/QTMarketing/cps-sub000/internal/auth"
	"github.com/QTMarketing/cps-sub000/internal/authz"
	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/logging"
	"github.com/QTMarketing/cps-sub000/internal/models"
	"github.com/QTMarketing/cps-sub000/internal/protect"
	"github.com/QTMarketing/cps-sub000/internal/server/storage"
)

// Handlers carries the wired services behind the HTTP surface. Bank and check
// stores arrive already wrapped by the encrypting decorator, so no handler
// ever sees ciphertext.
type Handlers struct {
	log      logging.Logger
	authSvc  *auth.Service
	tokens   *auth.TokenManager
	gates    *authz.Gates
	stepUp   auth.StepUpPolicy
	banks    protect.Store[models.BankAccount]
	checks   protect.Store[models.Check]
	users    storage.Users
	audit    *audit.Service
	exporter *audit.S3Exporter
}

func NewHandlers(
	log logging.Logger,
	authSvc *auth.Service,
	tokens *auth.TokenManager,
	gates *authz.Gates,
	stepUp auth.StepUpPolicy,
	banks protect.Store[models.BankAccount],
	checks protect.Store[models.Check],
	users storage.Users,
	auditSvc *audit.Service,
	exporter *audit.S3Exporter,
) *Handlers {
	return &Handlers{
		log:      log,
		authSvc:  authSvc,
		tokens:   tokens,
		gates:    gates,
		stepUp:   stepUp,
		banks:    banks,
		checks:   checks,
		users:    users,
		audit:    auditSvc,
		exporter: exporter,
	}
}

// principal returns the identity a gate resolved earlier in the chain. Routes
// calling this are always mounted behind a gate, so a miss is a wiring bug.
func (h *Handlers) principal(r *http.Request) (*authz.Principal, bool) {
	return authz.PrincipalFromContext(r.Context())
}

// requireStepUp enforces the conditional re-auth gate inside a handler, for
// actions whose requirement depends on the amount being moved. It returns
// false after writing the reauth hint when the credential is missing, stale,
// or belongs to a different principal.
func (h *Handlers) requireStepUp(w http.ResponseWriter, r *http.Request, p *authz.Principal, action string, amountCents int64) bool {
	if !h.stepUp.Requires(action, amountCents) {
		return true
	}
	raw := r.Header.Get(common.ReAuthHeaderName)
	if raw == "" {
		auth.WriteReAuthRequired(w)
		return false
	}
	sp, err := h.tokens.VerifyReAuth(raw)
	if err != nil {
		h.log.Debug(r.Context(), "step-up token rejected", "action", action, "error", err)
		auth.WriteReAuthRequired(w)
		return false
	}
	if sp.ID != p.ID {
		h.log.Info(r.Context(), "step-up token principal mismatch", "bearer", p.ID, "reauth", sp.ID)
		auth.WriteReAuthRequired(w)
		return false
	}
	return true
}

// maskTail hides all but the last four characters of a sensitive identifier.
// Audit state snapshots carry these masked forms so the trail itself never
// stores an account number.
func maskTail(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

type bankState struct {
	StoreID       string `json:"storeId"`
	Name          string `json:"name"`
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber"`
}

func bankSnapshot(b *models.BankAccount) bankState {
	return bankState{
		StoreID:       b.StoreID,
		Name:          b.Name,
		AccountNumber: maskTail(b.AccountNumber),
		RoutingNumber: maskTail(b.RoutingNumber),
	}
}

type checkState struct {
	StoreID     string             `json:"storeId"`
	BankID      string             `json:"bankId"`
	Number      int64              `json:"number"`
	Payee       string             `json:"payee"`
	AmountCents int64              `json:"amountCents"`
	Status      models.CheckStatus `json:"status"`
}

func checkSnapshot(c *models.Check) checkState {
	return checkState{
		StoreID:     c.StoreID,
		BankID:      c.BankID,
		Number:      c.Number,
		Payee:       c.Payee,
		AmountCents: c.AmountCents,
		Status:      c.Status,
	}
}

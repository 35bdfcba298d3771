package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/QTMarketing/cps-sub000/internal/auth"
	"github.com/QTMarketing/cps-sub000/internal/authz"
)

// NewRouter mounts the API. Every route except login sits behind at least one
// permission gate; routes whose action always needs a step-up credential are
// additionally wrapped by the re-auth gate.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	reauth := auth.RequireReAuth(h.tokens, h.log)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.With(h.gates.RequireRole(authz.RoleUser)).Post("/reauth", h.ReAuth)

		r.Route("/banks", func(r chi.Router) {
			r.With(h.gates.RequirePermission(authz.PermCreateBank)).Post("/", h.CreateBank)
			r.With(h.gates.RequirePermission(authz.PermViewBankDetails)).Get("/", h.ListBanks)
			r.With(h.gates.RequirePermission(authz.PermViewBankDetails)).Get("/{id}", h.GetBank)
			r.With(h.gates.RequirePermission(authz.PermUpdateBank), reauth).Put("/{id}", h.UpdateBank)
		})

		r.Route("/checks", func(r chi.Router) {
			r.With(h.gates.RequirePermission(authz.PermCreateCheck)).Post("/", h.CreateCheck)
			r.With(h.gates.RequirePermission(authz.PermViewChecks)).Get("/", h.ListChecks)
			r.With(h.gates.RequirePermission(authz.PermViewChecks)).Get("/{id}", h.GetCheck)
			r.With(h.gates.RequirePermission(authz.PermVoidCheck)).Post("/{id}/void", h.VoidCheck)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.gates.RequirePermission(authz.PermManageUsers)).Post("/", h.CreateUser)
			r.With(h.gates.RequirePermission(authz.PermManageUsers), reauth).Delete("/{id}", h.DeleteUser)
		})

		r.Route("/audit", func(r chi.Router) {
			r.With(h.gates.RequirePermission(authz.PermViewAudit)).Get("/", h.QueryAudit)
			r.With(h.gates.RequirePermission(authz.PermViewAudit)).Get("/summary", h.AuditSummary)
			r.With(h.gates.RequirePermission(authz.PermExportAudit)).Get("/export", h.ExportAudit)
		})
	})

	return r
}

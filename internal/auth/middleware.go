package auth

import (
	"encoding/json"
	"net/http"

	"github.com/QTMarketing/cps-sub000/internal/authz"
	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/logging"
)

// WriteReAuthRequired emits the machine-readable step-up hint. Unlike the
// generic 401/403 bodies, this one tells the client exactly what to do:
// prompt for password confirmation and retry with the issued token.
func WriteReAuthRequired(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "reauth_required",
		"hint":  "confirm_password",
	})
}

// RequireReAuth gates a route on a valid step-up credential presented in the
// X-Reauth-Token header. It composes after the bearer gates; a failing check
// yields the reauth hint, not a generic denial.
func RequireReAuth(tokens *TokenManager, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(common.ReAuthHeaderName)
			if raw == "" {
				WriteReAuthRequired(w)
				return
			}
			sp, err := tokens.VerifyReAuth(raw)
			if err != nil {
				log.Debug(r.Context(), "step-up token rejected", "error", err)
				WriteReAuthRequired(w)
				return
			}
			// the step-up credential must belong to the bearer principal
			if p, ok := authz.PrincipalFromContext(r.Context()); ok && p.ID != sp.ID {
				log.Info(r.Context(), "step-up token principal mismatch", "bearer", p.ID, "reauth", sp.ID)
				WriteReAuthRequired(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/QTMarketing/cps-sub000/internal/common"
	"github.com/QTMarketing/cps-sub000/internal/logging"
)

type ctxKey string

const principalKey ctxKey = "principal"

// ContextWithPrincipal attaches the resolved principal to a request context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal a gate attached, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// TokenParser verifies a bearer token and resolves the principal it names.
// The auth package provides the JWT-backed implementation; gates only see
// this interface.
type TokenParser interface {
	ParsePrincipal(token string) (*Principal, error)
}

// Gates produces composable middleware guards. Each guard extracts and
// verifies the bearer token, resolves the principal into the context, and
// evaluates its requirement; the first failing gate in a chain determines
// the outcome. Failure bodies are generic so an unauthenticated caller never
// learns which capability was missing.
type Gates struct {
	tokens TokenParser
	log    logging.Logger
}

func NewGates(tokens TokenParser, log logging.Logger) *Gates {
	return &Gates{tokens: tokens, log: log}
}

// RequirePermission gates on a single permission.
func (g *Gates) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return g.gate(func(p *Principal) bool { return HasPermission(p, perm) })
}

// RequireAnyPermission gates on holding at least one of perms.
func (g *Gates) RequireAnyPermission(perms ...Permission) func(http.Handler) http.Handler {
	return g.gate(func(p *Principal) bool { return HasAnyPermission(p, perms...) })
}

// RequireRole gates on a minimum role in the total order.
func (g *Gates) RequireRole(min Role) func(http.Handler) http.Handler {
	return g.gate(func(p *Principal) bool { return HasRoleAtLeast(p, min) })
}

func (g *Gates) gate(allowed func(*Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// a previous gate in the chain may have resolved the principal
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				var err error
				p, err = g.resolve(r)
				if err != nil {
					g.log.Debug(r.Context(), "gate: token rejected", "error", err)
					writeOutcome(w, http.StatusUnauthorized, "unauthenticated")
					return
				}
				r = r.WithContext(ContextWithPrincipal(r.Context(), p))
			}

			if !allowed(p) {
				g.log.Info(r.Context(), "gate: denied", "actor", p.ID, "role", p.Role.String())
				writeOutcome(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Check is the non-HTTP gate surface: it verifies the token and evaluates a
// permission in one call, for callers that are not route handlers.
func (g *Gates) Check(token string, perm Permission) (*Principal, error) {
	p, err := g.tokens.ParsePrincipal(token)
	if err != nil {
		return nil, common.ErrUnauthenticated
	}
	if !HasPermission(p, perm) {
		return nil, common.ErrForbidden
	}
	return p, nil
}

func (g *Gates) resolve(r *http.Request) (*Principal, error) {
	raw := BearerToken(r)
	if raw == "" {
		return nil, common.ErrUnauthenticated
	}
	return g.tokens.ParsePrincipal(raw)
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get(common.AuthorizationHeaderName)
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return h
}

func writeOutcome(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

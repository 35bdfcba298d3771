// Package auth issues and verifies the signed tokens of the protection core:
// normal bearer tokens and the short-lived, single-purpose re-auth tokens
// that gate high-risk actions. It also verifies operator passwords.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/QTMarketing/cps-sub000/internal/authz"
	"github.com/QTMarketing/cps-sub000/internal/common"
)

// Token purposes. A re-auth token is rejected as a general bearer token by
// claim check, not merely by expiry.
const (
	PurposeAccess = "access"
	PurposeReAuth = "reauth"
)

// ReAuthWindow bounds how long a step-up credential stays valid after the
// password was re-entered.
const ReAuthWindow = 5 * time.Minute

// Claims carries the registered claims plus the principal attributes and the
// purpose marker.
type Claims struct {
	jwt.RegisteredClaims
	UserID  string `json:"uid"`
	Role    string `json:"role"`
	StoreID string `json:"sid,omitempty"`
	Purpose string `json:"purpose"`
}

// TokenManager signs and verifies HS256 tokens under a shared secret.
type TokenManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

func NewTokenManager(secret string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

func (m *TokenManager) sign(p *authz.Principal, purpose string, ttl time.Duration) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:  p.ID,
		Role:    p.Role.String(),
		StoreID: p.StoreID,
		Purpose: purpose,
	})

	return token.SignedString(m.secret)
}

// IssueAccessToken mints a normal bearer token for the principal.
func (m *TokenManager) IssueAccessToken(p *authz.Principal) (string, error) {
	return m.sign(p, PurposeAccess, m.accessTTL)
}

// IssueReAuthToken mints a step-up credential proving the principal just
// re-entered their password. It is scoped to exactly this principal and
// expires with the re-auth window.
func (m *TokenManager) IssueReAuthToken(p *authz.Principal) (string, error) {
	return m.sign(p, PurposeReAuth, ReAuthWindow)
}

func (m *TokenManager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

func (c *Claims) principal() (*authz.Principal, error) {
	role, err := authz.ParseRole(c.Role)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if c.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return &authz.Principal{ID: c.UserID, Role: role, StoreID: c.StoreID}, nil
}

// ParsePrincipal verifies a general bearer token and resolves its principal.
// Re-auth tokens are rejected here: their purpose claim is checked, so a
// step-up credential cannot double as a session.
func (m *TokenManager) ParsePrincipal(tokenString string) (*authz.Principal, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeAccess {
		return nil, fmt.Errorf("%w: wrong token purpose", common.ErrInvalidToken)
	}
	return claims.principal()
}

// VerifyReAuth validates a step-up credential: it must carry the reauth
// purpose and have been issued within the re-auth window. Every failure maps
// to common.ErrReAuthRequired so the caller can prompt for password
// confirmation instead of a full login.
func (m *TokenManager) VerifyReAuth(tokenString string) (*authz.Principal, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrReAuthRequired, err)
	}
	if claims.Purpose != PurposeReAuth {
		return nil, fmt.Errorf("%w: wrong token purpose", common.ErrReAuthRequired)
	}
	if claims.IssuedAt == nil || m.now().Sub(claims.IssuedAt.Time) > ReAuthWindow {
		return nil, fmt.Errorf("%w: window elapsed", common.ErrReAuthRequired)
	}
	return claims.principal()
}

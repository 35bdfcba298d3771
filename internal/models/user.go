package models

import (
	"time"

	"github.com/QTMarketing/cps-sub000/internal/authz"
)

// User is an operator account. PasswordHash is a bcrypt hash and is never
// serialized.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         authz.Role `json:"role"`
	StoreID      string     `json:"storeId"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Principal derives the request identity from the user record.
func (u *User) Principal() *authz.Principal {
	return &authz.Principal{ID: u.ID, Role: u.Role, StoreID: u.StoreID}
}

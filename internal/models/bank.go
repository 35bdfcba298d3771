// Package models holds the persistent entity types shared by repositories,
// the protection layer, and HTTP handlers.
package models

import (
	"time"

	"github.com/QTMarketing/cps-sub000/internal/protect"
)

// BankAccount is a store's payout account. AccountNumber and RoutingNumber
// are regulated identifiers and never reach the database in plaintext once
// written through the protecting store.
type BankAccount struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"storeId"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"accountNumber"`
	RoutingNumber string    `json:"routingNumber"`
	Degraded      []string  `json:"degraded,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProtectedFields registers the at-rest-encrypted attributes. Adding a
// sensitive column means adding it here; nothing else encrypts it.
func (b *BankAccount) ProtectedFields() []protect.Field {
	return []protect.Field{
		{Entity: "bank", Name: "account_number", Value: &b.AccountNumber},
		{Entity: "bank", Name: "routing_number", Value: &b.RoutingNumber},
	}
}

// MarkDegraded records a field whose stored value could not be decrypted.
func (b *BankAccount) MarkDegraded(field string) {
	b.Degraded = append(b.Degraded, field)
}

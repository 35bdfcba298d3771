package models

import (
	"time"

	"github.com/QTMarketing/cps-sub000/internal/protect"
)

// CheckStatus is the lifecycle state of an issued check.
type CheckStatus string

const (
	CheckIssued CheckStatus = "ISSUED"
	CheckVoid   CheckStatus = "VOID"
)

// Check is one issued payment instrument. Bank is populated by
// fetch-with-related reads; its protected fields ride along so nested
// decryption works through the same accessor.
type Check struct {
	ID          string      `json:"id"`
	StoreID     string      `json:"storeId"`
	BankID      string      `json:"bankId"`
	Number      int64       `json:"number"`
	Payee       string      `json:"payee"`
	AmountCents int64       `json:"amountCents"`
	Memo        string      `json:"memo,omitempty"`
	Status      CheckStatus `json:"status"`
	Bank        *BankAccount `json:"bank,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// ProtectedFields exposes the embedded bank's protected fields when the
// related entity was joined in; the check itself carries none.
func (c *Check) ProtectedFields() []protect.Field {
	if c.Bank == nil {
		return nil
	}
	return c.Bank.ProtectedFields()
}

// MarkDegraded forwards to the embedded bank record.
func (c *Check) MarkDegraded(field string) {
	if c.Bank != nil {
		c.Bank.MarkDegraded(field)
	}
}

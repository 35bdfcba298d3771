// Package audit implements the append-only trail of sensitive actions:
// recording with before/after state, range queries, summaries, delimited
// export, and the retention sweep that is the sole permitted deletion path.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names for recorded events. Closed list; handlers reference these
// constants rather than inventing strings.
const (
	ActionCreateBank   = "CREATE_BANK"
	ActionUpdateBank   = "UPDATE_BANK"
	ActionCreateCheck  = "CREATE_CHECK"
	ActionVoidCheck    = "VOID_CHECK"
	ActionDeleteUser   = "DELETE_USER"
	ActionLoginFailed  = "LOGIN_FAILED"
	ActionReAuthIssued = "REAUTH_ISSUED"
	ActionExportAudit  = "EXPORT_AUDIT"
)

// Entry is one immutable audit record. After creation the only operation the
// store permits is deletion by the retention sweep.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	OldState   []byte    `json:"oldState,omitempty"`
	NewState   []byte    `json:"newState,omitempty"`
	SourceAddr string    `json:"sourceAddress"`
	CreatedAt  time.Time `json:"timestamp"`
}

// Filter narrows queries and exports. Zero values mean "any".
type Filter struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	From       time.Time
	To         time.Time
}

// Summary is one row of a grouped activity count.
type Summary struct {
	Action     string `json:"action"`
	EntityType string `json:"entityType"`
	Count      int64  `json:"count"`
}

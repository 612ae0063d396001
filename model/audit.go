package model

import "time"

// AuditLog records an admin or system action against a target entity. The
// ledger and payout services emit one per state transition.
type AuditLog struct {
	ID         int64                  `json:"-"`
	AuditID    string                 `json:"audit_id"`
	Action     string                 `json:"action"`
	ActorID    string                 `json:"actor_id"`
	TargetType string                 `json:"target_type"`
	TargetID   string                 `json:"target_id"`
	MetaData   map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

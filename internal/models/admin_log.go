package models

import (
	"encoding/json"
	"time"
)

// AdminLog records a moderation action.
type AdminLog struct {
	ID         int64           `json:"id"`
	AdminID    int64           `json:"admin_id"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   int64           `json:"target_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

package models

import (
	"encoding/json"
	"time"
)

// GateStats is the all-time analytics row (singleton). Counters only ever
// grow; an explicit admin reset deletes and recreates the row.
type GateStats struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	UUID string `json:"uuid" gorm:"uniqueIndex"`

	BlockedTotal int64  `json:"blocked_total"`
	BypassTotal  int64  `json:"bypass_total"`
	ByReason     string `json:"by_reason" gorm:"type:text"` // JSON map[reason]count

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReasonCounts decodes the per-reason breakdown. Missing or malformed JSON
// yields an empty, writable map.
func (g *GateStats) ReasonCounts() map[string]int64 {
	out := make(map[string]int64)
	if g.ByReason == "" {
		return out
	}
	if err := json.Unmarshal([]byte(g.ByReason), &out); err != nil {
		return make(map[string]int64)
	}
	return out
}

// SetReasonCounts encodes the per-reason breakdown back onto the row.
func (g *GateStats) SetReasonCounts(counts map[string]int64) {
	b, err := json.Marshal(counts)
	if err != nil {
		b = []byte("{}")
	}
	g.ByReason = string(b)
}

package models

import "time"

// Store names used in results and the outbox.
const (
	StoreA = "storeA"
	StoreB = "storeB"
)

// Outbox operations
const (
	OutboxCreate = "create"
	OutboxUpdate = "update"
	OutboxDelete = "delete"
)

// OutboxEntry is a write that reached one store but not the other.
// Payload holds the full data for creates and the patch for updates.
type OutboxEntry struct {
	ID            int64          `json:"id"`
	CorrelationID string         `json:"correlationId"`
	TargetStore   string         `json:"targetStore"`
	Operation     string         `json:"operation"`
	Collection    string         `json:"collection"`
	Payload       map[string]any `json:"payload"`
	Attempts      int            `json:"attempts"`
	LastError     string         `json:"lastError"`
	Status        string         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Package models defines the core data types shared across the gateway core.
package models

import "time"

// MemoryEntry is a durable (namespace, key) -> value record used by the
// memory_put/memory_get tool family. Namespace defaults to the owning
// session's channel scope when a tool call omits it.
type MemoryEntry struct {
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

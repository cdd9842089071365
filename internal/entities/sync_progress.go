package entities

import (
	"fmt"
)

// SyncType selects which record kind a sync round covers.
type SyncType string

const (
	SyncTypeBooks   SyncType = "books"
	SyncTypeConfigs SyncType = "configs"
	SyncTypeNotes   SyncType = "notes"
)

// AllSyncTypes lists every sync type in the order a full round processes them.
var AllSyncTypes = []SyncType{SyncTypeBooks, SyncTypeConfigs, SyncTypeNotes}

// ParseSyncType accepts "books", "configs", "notes" or "" (all types).
func ParseSyncType(value string) (SyncType, error) {
	switch SyncType(value) {
	case "", SyncTypeBooks, SyncTypeConfigs, SyncTypeNotes:
		return SyncType(value), nil
	}
	return "", fmt.Errorf("unknown sync type %q", value)
}

type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusSkipped   SyncStatus = "skipped"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncCursor is the watermark of the last successful pull for a sync type,
// in milliseconds since epoch.
type SyncCursor struct {
	Type  SyncType `json:"type"`
	Since int64    `json:"since"`
}

package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Library preferences
	SettingKeyAutoUpload = "auto_upload"
	SettingKeyKeepLogin  = "keep_login"

	// Sync cursors, one per sync type
	SettingKeySyncCursorBooks   = "sync_cursor_books"
	SettingKeySyncCursorConfigs = "sync_cursor_configs"
	SettingKeySyncCursorNotes   = "sync_cursor_notes"

	// Background sync status
	SettingKeySyncLastAt      = "sync_last_at"
	SettingKeySyncLastStatus  = "sync_last_status"
	SettingKeySyncLastMessage = "sync_last_message"
)

// SyncCursorKey returns the setting key holding the cursor of a sync type.
func SyncCursorKey(syncType SyncType) string {
	switch syncType {
	case SyncTypeConfigs:
		return SettingKeySyncCursorConfigs
	case SyncTypeNotes:
		return SettingKeySyncCursorNotes
	default:
		return SettingKeySyncCursorBooks
	}
}

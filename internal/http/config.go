package http

import (
	"time"

	"github.com/mrlokans/librarysync/internal/connectivity"
	"github.com/mrlokans/librarysync/internal/database"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Library  Library
	Database *database.Database
	Checker  connectivity.Checker

	// Background sync; Sync may be nil when only the library is served
	Sync       SyncRunner
	SyncStatus SyncStatusReader

	// Notices and re-login requests for polling clients
	Notices NoticeBoard

	// Optional per-book annotations and reading state; Editor enables writes
	Notes  NoteReader
	Editor RecordEditor

	// Runtime preferences; Reschedule applies changed sync settings and may be nil
	Settings   SettingsStore
	Reschedule func() error

	// Import limits
	MaxImportBytes int64

	// Application info
	Version string

	// TransferTimeout bounds a single upload or download started over HTTP.
	// Zero means no limit.
	TransferTimeout time.Duration
}

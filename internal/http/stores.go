package http

import (
	"context"
	"io"
	"time"

	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/library"
	"github.com/mrlokans/librarysync/internal/settingsstore"
	"github.com/mrlokans/librarysync/internal/transfer"
)

// Library is the part of library.Orchestrator the controllers use.
type Library interface {
	Books() []entities.Book
	Book(hash string) (entities.Book, bool)
	Import(ctx context.Context, name string, r io.Reader) (library.ImportResult, error)
	UploadBook(ctx context.Context, hash string, onProgress transfer.ProgressFunc) library.Outcome
	DownloadBook(ctx context.Context, hash string, onProgress transfer.ProgressFunc) library.Outcome
	DeleteBook(ctx context.Context, hash string) library.Outcome
	TransferProgress() map[string]float64
	CancelTransfer(hash string) bool
}

// SyncRunner starts sync rounds on demand.
type SyncRunner interface {
	RunNow(ctx context.Context, opts library.SyncOptions) (library.SyncReport, error)
	IsSyncing() bool
	NextRunTime() *time.Time
}

// SyncStatusReader reads the outcome of the last round.
type SyncStatusReader interface {
	GetSyncStatus() settingsstore.SyncStatus
}

// NoticeBoard exposes retained notices.
type NoticeBoard interface {
	Notices() []library.Notice
	LoginRequested() bool
	ClearLoginRequest()
}

// NoteReader lists the annotations of one book.
type NoteReader interface {
	NotesForBook(hash string) ([]entities.BookNote, error)
}

// SettingsStore reads and writes runtime preferences.
type SettingsStore interface {
	GetAutoUpload() bool
	GetAutoUploadSource() string
	SetAutoUpload(enabled bool) error
	GetKeepLogin() bool
	GetSyncConfig() settingsstore.SyncConfig
	SetSyncEnabled(enabled bool) error
	SetSyncSchedule(schedule string) error
}

// RecordEditor records reading-state and annotation changes made on this
// device.
type RecordEditor interface {
	SaveConfig(ctx context.Context, config entities.BookConfig) (entities.BookConfig, error)
	SaveNote(ctx context.Context, note entities.BookNote) (entities.BookNote, error)
	DeleteNote(ctx context.Context, hash, id string) error
}

// Package library coordinates the local book library with remote storage
// and the sync endpoint. It owns the in-memory library, decides when books
// are uploaded automatically, and turns remote failures into notices.
//
// Nothing here retries on its own. A failed operation leaves the book
// record as it was and reports once.
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/librarysync/internal/connectivity"
	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/oauth2"
	"github.com/mrlokans/librarysync/internal/progress"
	"github.com/mrlokans/librarysync/internal/storage"
	syncclient "github.com/mrlokans/librarysync/internal/sync"
	"github.com/mrlokans/librarysync/internal/transfer"
)

var (
	ErrBookNotFound       = errors.New("book not found")
	ErrTransferInProgress = errors.New("a transfer for this book is already running")
	ErrNoLocalContent     = errors.New("book content is not available on this device")
	ErrNotUploaded        = errors.New("book is not in remote storage")
	ErrNoteNotFound       = errors.New("note not found")
	ErrNoteConflict       = errors.New("note id belongs to another book")
)

// Catalog persists book records.
type Catalog interface {
	LoadBooks() ([]entities.Book, error)
	SaveBooks(books []entities.Book) error
	ApplyRemoteBooks(books []entities.Book) error
	MarkUploaded(hash string, at int64) error
	MarkDeleted(hash string, at int64) error
	MarkDownloaded(hash, localPath string, at int64) error
	Pending() ([]entities.Book, error)
	MarkPushed(books []entities.Book) error
}

// RecordStore persists reading configs and notes. Save* record changes made
// on this device; ApplyRemote* store what a pull returned.
type RecordStore interface {
	SaveConfigs(configs []entities.BookConfig) error
	SaveNotes(notes []entities.BookNote) error
	ApplyRemoteConfigs(configs []entities.BookConfig) error
	ApplyRemoteNotes(notes []entities.BookNote) error
	PendingConfigs() ([]entities.BookConfig, error)
	PendingNotes() ([]entities.BookNote, error)
	MarkConfigsPushed(configs []entities.BookConfig) error
	MarkNotesPushed(notes []entities.BookNote) error
	FindConfig(hash, userID string) (*entities.BookConfig, error)
	FindNote(id string) (*entities.BookNote, error)
}

// Preferences holds user preferences and pull cursors.
type Preferences interface {
	GetAutoUpload() bool
	GetKeepLogin() bool
	SetKeepLogin(keep bool) error
	GetSyncCursor(syncType entities.SyncType) int64
	SetSyncCursor(syncType entities.SyncType, since int64) error
}

// Storage moves book content.
type Storage interface {
	Upload(ctx context.Context, book *entities.Book, file storage.FileRef, onProgress transfer.ProgressFunc) error
	Download(ctx context.Context, book *entities.Book, dstPath string, onProgress transfer.ProgressFunc) (transfer.Downloaded, error)
	Delete(ctx context.Context, filePath string) error
}

// Syncer exchanges record changes with the server.
type Syncer interface {
	PullChanges(ctx context.Context, since int64, syncType entities.SyncType, bookHash string) (*syncclient.Result, error)
	PushChanges(ctx context.Context, payload syncclient.Payload) (*syncclient.Result, error)
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Catalog     Catalog
	Records     RecordStore
	Preferences Preferences
	Storage     Storage
	Syncer      Syncer
	Checker     connectivity.Checker
	Tokens      oauth2.TokenSource
	Notifier    Notifier
	Session     Session

	// LibraryDir is where imported and downloaded content is kept.
	LibraryDir string
	// ProgressInterval throttles per-book progress updates.
	ProgressInterval time.Duration
}

type Orchestrator struct {
	cfg Config

	mu    sync.RWMutex
	books map[string]*entities.Book

	// syncMu keeps sync rounds from overlapping. Transfers do not take it.
	syncMu sync.Mutex

	transfersMu sync.Mutex
	transfers   map[string]*transfer.Stream
	progress    map[string]float64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Orchestrator {
	if cfg.Notifier == nil {
		cfg.Notifier = NewBoard(0)
	}
	if cfg.ProgressInterval == 0 {
		cfg.ProgressInterval = progress.DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:       cfg,
		books:     make(map[string]*entities.Book),
		transfers: make(map[string]*transfer.Stream),
		progress:  make(map[string]float64),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Load replaces the in-memory library with the catalog's contents.
func (o *Orchestrator) Load() error {
	books, err := o.cfg.Catalog.LoadBooks()
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.books = make(map[string]*entities.Book, len(books))
	for i := range books {
		o.books[books[i].Hash] = &books[i]
	}
	log.Printf("Library: loaded %d books", len(books))
	return nil
}

// Books returns the live books, most recently updated first.
func (o *Orchestrator) Books() []entities.Book {
	o.mu.RLock()
	defer o.mu.RUnlock()

	books := make([]entities.Book, 0, len(o.books))
	for _, b := range o.books {
		if !b.IsDeleted() {
			books = append(books, *b)
		}
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].UpdatedAt != books[j].UpdatedAt {
			return books[i].UpdatedAt > books[j].UpdatedAt
		}
		return books[i].Hash < books[j].Hash
	})
	return books
}

// Book returns a copy of the record for hash, tombstones included.
func (o *Orchestrator) Book(hash string) (entities.Book, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	b, ok := o.books[hash]
	if !ok {
		return entities.Book{}, false
	}
	return *b, true
}

// InitLogin reconciles the "stay logged in" preference with the session:
// a live session sets it, a missing session while it is set asks the user
// to sign in again.
func (o *Orchestrator) InitLogin(ctx context.Context) {
	if oauth2.Authenticated(ctx, o.cfg.Tokens) {
		if !o.cfg.Preferences.GetKeepLogin() {
			if err := o.cfg.Preferences.SetKeepLogin(true); err != nil {
				log.Printf("Library: failed to save keep-login preference: %v", err)
			}
		}
		return
	}
	if o.cfg.Preferences.GetKeepLogin() && o.cfg.Session != nil {
		log.Printf("Library: session missing while keep-login is set, requesting sign-in")
		o.cfg.Session.RequestLogin()
	}
}

// TransferProgress returns the last published percentage of every running
// transfer, keyed by book hash.
func (o *Orchestrator) TransferProgress() map[string]float64 {
	o.transfersMu.Lock()
	defer o.transfersMu.Unlock()

	out := make(map[string]float64, len(o.progress))
	for hash, pct := range o.progress {
		out[hash] = pct
	}
	return out
}

// CancelTransfer aborts the running transfer of a book. It reports whether
// there was one.
func (o *Orchestrator) CancelTransfer(hash string) bool {
	o.transfersMu.Lock()
	stream, ok := o.transfers[hash]
	o.transfersMu.Unlock()
	if ok {
		stream.Cancel()
	}
	return ok
}

// Wait blocks until background uploads started by Import have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels background uploads and waits for them.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) notify(level Level, hash, format string, args ...any) {
	o.cfg.Notifier.Notify(Notice{Level: level, BookHash: hash, Message: fmt.Sprintf(format, args...)})
}

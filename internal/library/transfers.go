package library

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mrlokans/librarysync/internal/apiclient"
	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/oauth2"
	"github.com/mrlokans/librarysync/internal/progress"
	"github.com/mrlokans/librarysync/internal/storage"
	"github.com/mrlokans/librarysync/internal/transfer"
	"github.com/mrlokans/librarysync/internal/utils"
)

var ErrUnsupportedFormat = errors.New("this book format is not supported")

// SkipReason explains why a book was not uploaded automatically.
type SkipReason string

const (
	SkipUnauthenticated    SkipReason = "unauthenticated"
	SkipAutoUploadDisabled SkipReason = "auto_upload_disabled"
	SkipOffline            SkipReason = "offline"
	SkipAPIUnconfigured    SkipReason = "api_unconfigured"
	SkipAlreadyUploaded    SkipReason = "already_uploaded"
)

type Decision struct {
	Upload bool       `json:"upload"`
	Reason SkipReason `json:"reason,omitempty"`
}

// Action is what an operation ended up doing.
type Action string

const (
	ActionUploaded   Action = "uploaded"
	ActionDownloaded Action = "downloaded"
	ActionDeleted    Action = "deleted"
	ActionRelogin    Action = "relogin"
	ActionWarned     Action = "warned"
	ActionFailed     Action = "failed"
	ActionCanceled   Action = "canceled"
)

type Outcome struct {
	Action Action `json:"action"`
	Err    error  `json:"-"`
}

// ImportResult is the imported record and the auto-upload decision for it.
type ImportResult struct {
	Book     entities.Book `json:"book"`
	Decision Decision      `json:"decision"`
}

// DecideAutoUpload checks, in order, that the user is signed in, has
// auto-upload on, is online and has an API configured. The first failing
// check is the skip reason. It makes no requests.
func (o *Orchestrator) DecideAutoUpload(ctx context.Context, book *entities.Book) Decision {
	reason := o.autoUploadSkipReason(ctx, book)
	if reason != "" {
		log.Printf("Library: skipping auto-upload of %q: %s", book.Title, reason)
		return Decision{Reason: reason}
	}
	return Decision{Upload: true}
}

func (o *Orchestrator) autoUploadSkipReason(ctx context.Context, book *entities.Book) SkipReason {
	if !oauth2.Authenticated(ctx, o.cfg.Tokens) {
		return SkipUnauthenticated
	}
	if !o.cfg.Preferences.GetAutoUpload() {
		return SkipAutoUploadDisabled
	}
	if o.cfg.Checker == nil || !o.cfg.Checker.Online() {
		return SkipOffline
	}
	if _, ok := o.cfg.Checker.BaseURL(); !ok {
		return SkipAPIUnconfigured
	}
	if book.IsUploaded() {
		return SkipAlreadyUploaded
	}
	return ""
}

// Import copies content into the library, hashes it and records it. A
// hash already in the library is merged into the existing record, which
// brings a deleted book back. When the auto-upload checks pass, the upload
// runs in the background.
func (o *Orchestrator) Import(ctx context.Context, name string, r io.Reader) (ImportResult, error) {
	format, title := utils.BookFormatFromFilename(name)
	if format == "" {
		return ImportResult{}, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}

	if err := os.MkdirAll(o.cfg.LibraryDir, 0o755); err != nil {
		return ImportResult{}, fmt.Errorf("failed to create library directory: %w", err)
	}
	tmp, err := os.CreateTemp(o.cfg.LibraryDir, ".import-*")
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to create import file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := md5.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	now := entities.NowMillis()
	book := entities.Book{
		Hash:      hash,
		Format:    format,
		Title:     title,
		FileName:  filepath.Base(name),
		FileSize:  size,
		CreatedAt: now,
	}

	var saved entities.Book
	err = o.commit(hash, func(existing *entities.Book) (*entities.Book, error) {
		if existing != nil {
			merged := *existing
			merged.DeletedAt = nil
			merged.FileName = book.FileName
			merged.FileSize = size
			book = merged
		}
		book.UpdatedAt = now
		book.DownloadedAt = entities.Millis(now)
		book.LocalPath = o.contentPath(&book)

		if err := os.MkdirAll(filepath.Dir(book.LocalPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create book directory: %w", err)
		}
		if err := os.Rename(tmp.Name(), book.LocalPath); err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", name, err)
		}
		if err := o.cfg.Catalog.SaveBooks([]entities.Book{book}); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", name, err)
		}
		saved = book
		return &book, nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	log.Printf("Library: imported %q (%s, %s)", saved.Title, hash, humanize.Bytes(uint64(size)))

	decision := o.DecideAutoUpload(ctx, &saved)
	if decision.Upload {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.UploadBook(o.ctx, hash, nil)
		}()
	}
	return ImportResult{Book: saved, Decision: decision}, nil
}

// UploadBook sends a book's content to remote storage. On success the
// record is marked uploaded and the library is pushed. On failure the
// record is unchanged and the error kind decides the follow-up.
func (o *Orchestrator) UploadBook(ctx context.Context, hash string, onProgress transfer.ProgressFunc) Outcome {
	book, ok := o.Book(hash)
	if !ok || book.IsDeleted() {
		return Outcome{Action: ActionFailed, Err: ErrBookNotFound}
	}

	info, err := os.Stat(book.LocalPath)
	if book.LocalPath == "" || err != nil {
		o.notify(LevelError, hash, "Failed to upload book: %s", book.Title)
		return Outcome{Action: ActionFailed, Err: ErrNoLocalContent}
	}

	file := storage.FileRef{Name: storage.RemoteFileName(&book), Size: info.Size(), Path: book.LocalPath}
	err = o.runTransfer(ctx, hash, onProgress, func(ctx context.Context, onProgress transfer.ProgressFunc) error {
		return o.cfg.Storage.Upload(ctx, &book, file, onProgress)
	})
	if err != nil {
		return o.uploadFailed(&book, err)
	}

	now := entities.NowMillis()
	err = o.commit(hash, func(existing *entities.Book) (*entities.Book, error) {
		if existing == nil {
			return nil, ErrBookNotFound
		}
		if err := o.cfg.Catalog.MarkUploaded(hash, now); err != nil {
			return nil, err
		}
		updated := *existing
		updated.UploadedAt = entities.Millis(now)
		updated.UpdatedAt = now
		return &updated, nil
	})
	if err != nil {
		o.notify(LevelError, hash, "Failed to upload book: %s", book.Title)
		return Outcome{Action: ActionFailed, Err: err}
	}

	if _, err := o.PushLibrary(ctx); err != nil {
		log.Printf("Library: push after upload of %s failed: %v", hash, err)
	}
	o.notify(LevelInfo, hash, "Book uploaded: %s", book.Title)
	return Outcome{Action: ActionUploaded}
}

func (o *Orchestrator) uploadFailed(book *entities.Book, err error) Outcome {
	if errors.Is(err, ErrTransferInProgress) {
		return Outcome{Action: ActionFailed, Err: err}
	}

	switch apiclient.KindOf(err) {
	case apiclient.KindCanceled:
		log.Printf("Library: upload of %s canceled", book.Hash)
		return Outcome{Action: ActionCanceled, Err: err}

	case apiclient.KindUnauthenticated:
		if o.cfg.Preferences.GetKeepLogin() {
			if err := o.cfg.Preferences.SetKeepLogin(false); err != nil {
				log.Printf("Library: failed to clear keep-login preference: %v", err)
			}
			if o.cfg.Session != nil {
				o.cfg.Session.RequestLogin()
			}
			return Outcome{Action: ActionRelogin, Err: err}
		}
		o.notify(LevelWarning, book.Hash, "You need to be logged in to upload books.")
		return Outcome{Action: ActionWarned, Err: err}

	case apiclient.KindQuotaExceeded:
		o.notify(LevelWarning, book.Hash, "Insufficient storage quota")
		return Outcome{Action: ActionWarned, Err: err}

	case apiclient.KindOffline:
		o.notify(LevelWarning, book.Hash, "Cannot upload in offline mode. Connect to the internet and try again.")
		return Outcome{Action: ActionWarned, Err: err}

	case apiclient.KindAPIUnavailable:
		o.notify(LevelWarning, book.Hash, "Upload service is currently unavailable.")
		return Outcome{Action: ActionWarned, Err: err}
	}

	o.notify(LevelError, book.Hash, "Failed to upload book: %s", book.Title)
	return Outcome{Action: ActionFailed, Err: err}
}

// DownloadBook fetches a book's content into the library directory.
func (o *Orchestrator) DownloadBook(ctx context.Context, hash string, onProgress transfer.ProgressFunc) Outcome {
	book, ok := o.Book(hash)
	if !ok || book.IsDeleted() {
		return Outcome{Action: ActionFailed, Err: ErrBookNotFound}
	}
	if !book.IsUploaded() {
		o.notify(LevelError, hash, "Failed to download book: %s", book.Title)
		return Outcome{Action: ActionFailed, Err: ErrNotUploaded}
	}

	dst := o.contentPath(&book)
	var result transfer.Downloaded
	err := o.runTransfer(ctx, hash, onProgress, func(ctx context.Context, onProgress transfer.ProgressFunc) error {
		var err error
		result, err = o.cfg.Storage.Download(ctx, &book, dst, onProgress)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrTransferInProgress) {
			return Outcome{Action: ActionFailed, Err: err}
		}
		if apiclient.KindOf(err) == apiclient.KindCanceled {
			log.Printf("Library: download of %s canceled", hash)
			return Outcome{Action: ActionCanceled, Err: err}
		}
		o.notify(LevelError, hash, "Failed to download book: %s", book.Title)
		return Outcome{Action: ActionFailed, Err: err}
	}

	now := entities.NowMillis()
	err = o.commit(hash, func(existing *entities.Book) (*entities.Book, error) {
		if existing == nil {
			return nil, ErrBookNotFound
		}
		// In-memory transfers hand back the bytes rather than a file.
		if result.Data != nil {
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(dst, result.Data, 0o644); err != nil {
				return nil, err
			}
		}
		if err := o.cfg.Catalog.MarkDownloaded(hash, dst, now); err != nil {
			return nil, err
		}
		updated := *existing
		updated.LocalPath = dst
		updated.DownloadedAt = entities.Millis(now)
		return &updated, nil
	})
	if err != nil {
		o.notify(LevelError, hash, "Failed to download book: %s", book.Title)
		return Outcome{Action: ActionFailed, Err: err}
	}

	o.notify(LevelInfo, hash, "Book downloaded: %s", book.Title)
	return Outcome{Action: ActionDownloaded}
}

// DeleteBook removes a book from remote storage when it was uploaded, then
// turns the local record into a tombstone and pushes it. If the remote
// delete fails the record is left alone.
func (o *Orchestrator) DeleteBook(ctx context.Context, hash string) Outcome {
	book, ok := o.Book(hash)
	if !ok {
		return Outcome{Action: ActionFailed, Err: ErrBookNotFound}
	}
	if book.IsDeleted() {
		return Outcome{Action: ActionDeleted}
	}
	if o.transferActive(hash) {
		return Outcome{Action: ActionFailed, Err: ErrTransferInProgress}
	}

	if book.IsUploaded() {
		if err := o.cfg.Storage.Delete(ctx, storage.RemoteFilePath(&book)); err != nil {
			if apiclient.KindOf(err) == apiclient.KindCanceled {
				return Outcome{Action: ActionCanceled, Err: err}
			}
			o.notify(LevelError, hash, "Failed to delete book: %s", book.Title)
			return Outcome{Action: ActionFailed, Err: err}
		}
	}

	now := entities.NowMillis()
	err := o.commit(hash, func(existing *entities.Book) (*entities.Book, error) {
		if existing == nil {
			return nil, ErrBookNotFound
		}
		if err := o.cfg.Catalog.MarkDeleted(hash, now); err != nil {
			return nil, err
		}
		updated := *existing
		updated.DeletedAt = entities.Millis(now)
		updated.UpdatedAt = now
		return &updated, nil
	})
	if err != nil {
		o.notify(LevelError, hash, "Failed to delete book: %s", book.Title)
		return Outcome{Action: ActionFailed, Err: err}
	}

	if book.LocalPath != "" {
		if err := os.Remove(book.LocalPath); err != nil && !os.IsNotExist(err) {
			log.Printf("Library: failed to remove %s: %v", book.LocalPath, err)
		}
		// Only succeeds when the book directory is now empty.
		os.Remove(filepath.Dir(book.LocalPath))
	}

	if _, err := o.PushLibrary(ctx); err != nil {
		log.Printf("Library: push after delete of %s failed: %v", hash, err)
	}
	o.notify(LevelInfo, hash, "Book deleted: %s", book.Title)
	return Outcome{Action: ActionDeleted}
}

// runTransfer runs fn as a cancellable transfer registered under hash and
// keeps the book's throttled progress percentage current while it runs.
func (o *Orchestrator) runTransfer(ctx context.Context, hash string, onProgress transfer.ProgressFunc, fn func(context.Context, transfer.ProgressFunc) error) error {
	batch := progress.NewBatch(1, o.cfg.ProgressInterval, func(pct float64) {
		o.setProgress(hash, pct)
	})
	track := batch.Track(hash)
	var moved atomic.Int64

	o.transfersMu.Lock()
	if _, busy := o.transfers[hash]; busy {
		o.transfersMu.Unlock()
		batch.Stop()
		return ErrTransferInProgress
	}
	started := time.Now()
	stream := transfer.Run(ctx, func(ctx context.Context, publish transfer.ProgressFunc) error {
		return fn(ctx, func(p transfer.Progress) {
			moved.Store(p.Transferred)
			track(p)
			publish(p)
			if onProgress != nil {
				onProgress(p)
			}
		})
	})
	o.transfers[hash] = stream
	o.progress[hash] = 0
	o.transfersMu.Unlock()

	err := stream.Wait()
	if err == nil {
		batch.Complete(hash)
	}
	batch.Stop()

	o.transfersMu.Lock()
	delete(o.transfers, hash)
	delete(o.progress, hash)
	o.transfersMu.Unlock()

	if err == nil {
		elapsed := time.Since(started)
		rate := float64(moved.Load()) / max(elapsed.Seconds(), 0.001)
		log.Printf("Library: transfer of %s finished: %s in %s (%s/s)",
			hash, humanize.Bytes(uint64(moved.Load())), elapsed.Round(time.Millisecond), humanize.Bytes(uint64(rate)))
	}
	return err
}

func (o *Orchestrator) setProgress(hash string, pct float64) {
	o.transfersMu.Lock()
	defer o.transfersMu.Unlock()
	if _, ok := o.transfers[hash]; ok {
		o.progress[hash] = pct
	}
}

func (o *Orchestrator) transferActive(hash string) bool {
	o.transfersMu.Lock()
	defer o.transfersMu.Unlock()
	_, ok := o.transfers[hash]
	return ok
}

// commit persists and applies a change to one record while holding the
// library lock, so a concurrent sync merge cannot interleave with it. fn
// receives the current record (nil when absent) and returns the new one.
func (o *Orchestrator) commit(hash string, fn func(existing *entities.Book) (*entities.Book, error)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var existing *entities.Book
	if b, ok := o.books[hash]; ok {
		copied := *b
		existing = &copied
	}
	updated, err := fn(existing)
	if err != nil {
		return err
	}
	o.books[hash] = updated
	return nil
}

// contentPath is where a book's content lives in the library directory.
func (o *Orchestrator) contentPath(book *entities.Book) string {
	return filepath.Join(o.cfg.LibraryDir, book.Hash, storage.RemoteFileName(book))
}

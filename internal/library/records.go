package library

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/librarysync/internal/entities"
)

// SaveConfig records a reading-state change made on this device for the
// signed-in user. The change is queued for the next push.
func (o *Orchestrator) SaveConfig(ctx context.Context, config entities.BookConfig) (entities.BookConfig, error) {
	if !o.liveBook(config.BookHash) {
		return entities.BookConfig{}, ErrBookNotFound
	}
	config.UserID = o.userID(ctx)

	existing, err := o.cfg.Records.FindConfig(config.BookHash, config.UserID)
	if err != nil {
		return entities.BookConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	var stored int64
	if existing != nil {
		stored = existing.UpdatedAt
	}
	config.UpdatedAt = localStamp(stored)
	config.DeletedAt = nil

	if err := o.cfg.Records.SaveConfigs([]entities.BookConfig{config}); err != nil {
		return entities.BookConfig{}, fmt.Errorf("failed to save config: %w", err)
	}
	return config, nil
}

// SaveNote records an annotation created or edited on this device. The
// change is queued for the next push.
func (o *Orchestrator) SaveNote(ctx context.Context, note entities.BookNote) (entities.BookNote, error) {
	if !o.liveBook(note.BookHash) {
		return entities.BookNote{}, ErrBookNotFound
	}
	existing, err := o.cfg.Records.FindNote(note.ID)
	if err != nil {
		return entities.BookNote{}, fmt.Errorf("failed to load note: %w", err)
	}
	if existing != nil && existing.BookHash != note.BookHash {
		return entities.BookNote{}, ErrNoteConflict
	}

	note.UserID = o.userID(ctx)
	note.DeletedAt = nil
	if existing != nil {
		note.CreatedAt = existing.CreatedAt
		note.UpdatedAt = localStamp(existing.UpdatedAt)
	} else {
		note.UpdatedAt = localStamp(0)
		note.CreatedAt = note.UpdatedAt
	}

	if err := o.cfg.Records.SaveNotes([]entities.BookNote{note}); err != nil {
		return entities.BookNote{}, fmt.Errorf("failed to save note: %w", err)
	}
	return note, nil
}

// DeleteNote turns a note into a tombstone so the deletion reaches other
// devices on the next push.
func (o *Orchestrator) DeleteNote(ctx context.Context, hash, id string) error {
	note, err := o.findNote(hash, id)
	if err != nil {
		return err
	}
	if note.DeletedAt != nil {
		return nil
	}

	note.UpdatedAt = localStamp(note.UpdatedAt)
	note.DeletedAt = entities.Millis(note.UpdatedAt)
	if err := o.cfg.Records.SaveNotes([]entities.BookNote{*note}); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	log.Printf("Library: deleted note %s of %s", id, hash)
	return nil
}

// findNote returns the stored note id of book hash, or ErrNoteNotFound.
func (o *Orchestrator) findNote(hash, id string) (*entities.BookNote, error) {
	note, err := o.cfg.Records.FindNote(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	if note == nil || note.BookHash != hash {
		return nil, ErrNoteNotFound
	}
	return note, nil
}

func (o *Orchestrator) liveBook(hash string) bool {
	book, ok := o.Book(hash)
	return ok && !book.IsDeleted()
}

func (o *Orchestrator) userID(ctx context.Context) string {
	if o.cfg.Tokens == nil {
		return ""
	}
	id, err := o.cfg.Tokens.UserID(ctx)
	if err != nil {
		return ""
	}
	return id
}

// localStamp returns the current time, or one past stored when a record
// pulled from a device with a faster clock is already newer. Stored rows
// newer than an incoming change are kept, so a local edit must sort after them.
func localStamp(stored int64) int64 {
	now := entities.NowMillis()
	if now <= stored {
		return stored + 1
	}
	return now
}

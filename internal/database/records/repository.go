// Package records persists per-book reading configs and annotations.
package records

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarysync/internal/entities"
)

// Repository handles config and note persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new records repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveConfigs upserts configs changed on this device, keyed by
// (book_hash, user_id). A stored row newer than the incoming one is kept.
func (r *Repository) SaveConfigs(configs []entities.BookConfig) error {
	return r.saveConfigs(configs, true)
}

// ApplyRemoteConfigs upserts configs received from the server with the same
// newest-wins rule. They are not pending a push.
func (r *Repository) ApplyRemoteConfigs(configs []entities.BookConfig) error {
	return r.saveConfigs(configs, false)
}

func (r *Repository) saveConfigs(configs []entities.BookConfig, dirty bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, cfg := range configs {
			var existing entities.BookConfig
			err := tx.Where("book_hash = ? AND user_id = ?", cfg.BookHash, cfg.UserID).First(&existing).Error
			if err == nil && existing.UpdatedAt > cfg.UpdatedAt {
				continue
			}
			if err != nil && err != gorm.ErrRecordNotFound {
				return err
			}
			cfg.Dirty = dirty
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cfg).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveNotes upserts notes changed on this device by id, with the same
// newest-wins rule as SaveConfigs.
func (r *Repository) SaveNotes(notes []entities.BookNote) error {
	return r.saveNotes(notes, true)
}

// ApplyRemoteNotes upserts notes received from the server.
func (r *Repository) ApplyRemoteNotes(notes []entities.BookNote) error {
	return r.saveNotes(notes, false)
}

func (r *Repository) saveNotes(notes []entities.BookNote, dirty bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, note := range notes {
			var existing entities.BookNote
			err := tx.Where("id = ?", note.ID).First(&existing).Error
			if err == nil && existing.UpdatedAt > note.UpdatedAt {
				continue
			}
			if err != nil && err != gorm.ErrRecordNotFound {
				return err
			}
			note.Dirty = dirty
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&note).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// PendingConfigs returns configs changed on this device since their last
// accepted push.
func (r *Repository) PendingConfigs() ([]entities.BookConfig, error) {
	var configs []entities.BookConfig
	err := r.db.Where("dirty = ?", true).Find(&configs).Error
	return configs, err
}

// PendingNotes returns notes changed on this device since their last
// accepted push.
func (r *Repository) PendingNotes() ([]entities.BookNote, error) {
	var notes []entities.BookNote
	err := r.db.Where("dirty = ?", true).Find(&notes).Error
	return notes, err
}

// MarkConfigsPushed clears the pending flag of pushed configs that have not
// changed since they were collected.
func (r *Repository) MarkConfigsPushed(configs []entities.BookConfig) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, cfg := range configs {
			err := tx.Model(&entities.BookConfig{}).
				Where("book_hash = ? AND user_id = ? AND updated_at = ?", cfg.BookHash, cfg.UserID, cfg.UpdatedAt).
				Update("dirty", false).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkNotesPushed clears the pending flag of pushed notes that have not
// changed since they were collected.
func (r *Repository) MarkNotesPushed(notes []entities.BookNote) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, note := range notes {
			err := tx.Model(&entities.BookNote{}).
				Where("id = ? AND updated_at = ?", note.ID, note.UpdatedAt).
				Update("dirty", false).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// FindConfig returns the stored config of a book for a user, tombstones
// included, or nil when none is stored.
func (r *Repository) FindConfig(hash, userID string) (*entities.BookConfig, error) {
	var cfg entities.BookConfig
	err := r.db.Where("book_hash = ? AND user_id = ?", hash, userID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FindNote returns a stored note by id, tombstones included, or nil when
// none is stored.
func (r *Repository) FindNote(id string) (*entities.BookNote, error) {
	var note entities.BookNote
	err := r.db.Where("id = ?", id).First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// NotesForBook returns the live notes of one book.
func (r *Repository) NotesForBook(hash string) ([]entities.BookNote, error) {
	var notes []entities.BookNote
	err := r.db.Where("book_hash = ? AND deleted_at IS NULL", hash).Order("created_at ASC").Find(&notes).Error
	return notes, err
}

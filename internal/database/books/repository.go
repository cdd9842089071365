// Package books provides catalog operations for library book records.
package books

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarysync/internal/entities"
)

// ErrBookNotFound is returned when no record exists for a hash.
var ErrBookNotFound = errors.New("book not found")

// Repository handles book record persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LoadBooks returns every record including tombstones, newest first.
func (r *Repository) LoadBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Order("updated_at DESC").Find(&books).Error
	return books, err
}

// GetBook returns the record for a hash.
func (r *Repository) GetBook(hash string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("hash = ?", hash).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// SaveBooks upserts records changed on this device. They stay pending
// until a push is accepted.
func (r *Repository) SaveBooks(books []entities.Book) error {
	return r.upsert(books, true)
}

// ApplyRemoteBooks upserts records received from the server. They are not
// pending: pushing them back would echo another device's changes.
func (r *Repository) ApplyRemoteBooks(books []entities.Book) error {
	return r.upsert(books, false)
}

func (r *Repository) upsert(books []entities.Book, dirty bool) error {
	if len(books) == 0 {
		return nil
	}
	rows := make([]entities.Book, len(books))
	copy(rows, books)
	for i := range rows {
		rows[i].Dirty = dirty
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

// MarkUploaded records that the content is present remotely.
func (r *Repository) MarkUploaded(hash string, at int64) error {
	return r.updateTimestamps(hash, map[string]any{
		"uploaded_at": at,
		"updated_at":  at,
		"dirty":       true,
	})
}

// MarkDeleted turns the record into a tombstone. The row is retained.
func (r *Repository) MarkDeleted(hash string, at int64) error {
	return r.updateTimestamps(hash, map[string]any{
		"deleted_at": at,
		"updated_at": at,
		"dirty":      true,
	})
}

// MarkDownloaded records that the content is present on this device.
func (r *Repository) MarkDownloaded(hash, localPath string, at int64) error {
	return r.updateTimestamps(hash, map[string]any{
		"downloaded_at": at,
		"local_path":    localPath,
	})
}

// Pending returns the records changed on this device since their last
// accepted push.
func (r *Repository) Pending() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("dirty = ?", true).Order("updated_at ASC").Find(&books).Error
	return books, err
}

// MarkPushed clears the pending flag of pushed records. A record changed
// again after it was collected keeps its flag.
func (r *Repository) MarkPushed(books []entities.Book) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, b := range books {
			err := tx.Model(&entities.Book{}).
				Where("hash = ? AND updated_at = ?", b.Hash, b.UpdatedAt).
				Update("dirty", false).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) updateTimestamps(hash string, updates map[string]any) error {
	result := r.db.Model(&entities.Book{}).Where("hash = ?", hash).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update book %s: %w", hash, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

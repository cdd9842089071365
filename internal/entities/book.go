package entities

import (
	"time"
)

// Book is a library record. Hash is content-derived and is the join key
// between local and remote records. Timestamps are milliseconds since epoch,
// matching the remote wire format.
type Book struct {
	Hash       string `gorm:"primaryKey;size:64" json:"hash"`
	Format     string `gorm:"size:16" json:"format"`
	Title      string `gorm:"size:512" json:"title"`
	Author     string `gorm:"size:512" json:"author"`
	FileName   string `gorm:"size:512" json:"fileName,omitempty"`
	FileSize   int64  `json:"fileSize,omitempty"`
	LocalPath  string `gorm:"size:1024" json:"-"`
	CreatedAt  int64  `gorm:"autoCreateTime:false" json:"createdAt"`
	UpdatedAt  int64  `gorm:"autoUpdateTime:false" json:"updatedAt"`
	DeletedAt  *int64 `json:"deletedAt"`
	UploadedAt *int64 `json:"uploadedAt"`
	// DownloadedAt is local-only: set once the content is present on this device.
	DownloadedAt *int64 `json:"-"`
	// Dirty marks a change made on this device that the server has not accepted yet.
	Dirty bool `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// IsUploaded reports whether the content is present in remote storage.
func (b *Book) IsUploaded() bool {
	return b.UploadedAt != nil
}

// IsDeleted reports whether the record is a tombstone.
func (b *Book) IsDeleted() bool {
	return b.DeletedAt != nil
}

// BookConfig holds per-book reading state, keyed by (BookHash, UserID).
type BookConfig struct {
	BookHash  string  `gorm:"primaryKey;size:64" json:"bookHash"`
	UserID    string  `gorm:"primaryKey;size:64" json:"userId,omitempty"`
	Location  string  `gorm:"size:1024" json:"location,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
	UpdatedAt int64   `gorm:"autoUpdateTime:false" json:"updatedAt"`
	DeletedAt *int64  `json:"deletedAt"`
	Dirty     bool    `gorm:"index" json:"-"`
}

func (BookConfig) TableName() string {
	return "book_configs"
}

// BookNote is an annotation (highlight, bookmark or note) on a book.
type BookNote struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	BookHash  string `gorm:"index;size:64" json:"bookHash"`
	UserID    string `gorm:"size:64" json:"userId,omitempty"`
	Type      string `gorm:"size:32" json:"type"`
	CFI       string `gorm:"size:1024" json:"cfi,omitempty"`
	Text      string `gorm:"type:text" json:"text,omitempty"`
	Note      string `gorm:"type:text" json:"note,omitempty"`
	Style     string `gorm:"size:32" json:"style,omitempty"`
	Color     string `gorm:"size:32" json:"color,omitempty"`
	CreatedAt int64  `gorm:"autoCreateTime:false" json:"createdAt"`
	UpdatedAt int64  `gorm:"autoUpdateTime:false" json:"updatedAt"`
	DeletedAt *int64 `json:"deletedAt"`
	Dirty     bool   `gorm:"index" json:"-"`
}

func (BookNote) TableName() string {
	return "book_notes"
}

// NowMillis returns the current time in milliseconds since epoch.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// Millis returns a pointer to ms, for nullable timestamp fields.
func Millis(ms int64) *int64 {
	return &ms
}

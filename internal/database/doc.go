// Package database provides the local catalog of the library.
//
// # Architecture
//
//	database/
//	├── database.go      # Connection setup, migrations, settings
//	├── books/           # Book records, upload and tombstone markers
//	└── records/         # Per-book reading configs and annotations
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./library.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	recordsRepo := records.NewRepository(db.DB)
//
//	library, err := booksRepo.LoadBooks()
//	err = booksRepo.MarkUploaded(book.Hash, entities.NowMillis())
//
// Deleted books are never removed from the table: MarkDeleted stores a
// tombstone so the deletion can propagate on the next sync.
package database

package books

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/librarysync/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "books.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Book{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	return NewRepository(db)
}

func TestRepository_SaveAndLoad(t *testing.T) {
	repo := setupTestDB(t)

	err := repo.SaveBooks([]entities.Book{
		{Hash: "h1", Title: "Dune", Format: "EPUB", CreatedAt: 1, UpdatedAt: 10},
		{Hash: "h2", Title: "Emma", Format: "PDF", CreatedAt: 2, UpdatedAt: 20},
	})
	require.NoError(t, err)

	books, err := repo.LoadBooks()
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "h2", books[0].Hash)
	assert.Nil(t, books[0].UploadedAt)
}

func TestRepository_SaveBooks_UpsertsByHash(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.SaveBooks([]entities.Book{{Hash: "h1", Title: "Old", UpdatedAt: 1}}))
	require.NoError(t, repo.SaveBooks([]entities.Book{{Hash: "h1", Title: "New", UpdatedAt: 2}}))

	books, err := repo.LoadBooks()
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "New", books[0].Title)
}

func TestRepository_MarkUploaded(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.SaveBooks([]entities.Book{{Hash: "h1", Title: "Dune", UpdatedAt: 1}}))

	require.NoError(t, repo.MarkUploaded("h1", 500))

	book, err := repo.GetBook("h1")
	require.NoError(t, err)
	require.NotNil(t, book.UploadedAt)
	assert.Equal(t, int64(500), *book.UploadedAt)
	assert.Equal(t, int64(500), book.UpdatedAt)
}

func TestRepository_MarkDeleted_KeepsTombstone(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.SaveBooks([]entities.Book{{Hash: "h1", Title: "Dune", UpdatedAt: 1}}))

	require.NoError(t, repo.MarkDeleted("h1", 700))

	books, err := repo.LoadBooks()
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.True(t, books[0].IsDeleted())
}

func TestRepository_MarkUnknownBook(t *testing.T) {
	repo := setupTestDB(t)

	assert.ErrorIs(t, repo.MarkUploaded("missing", 1), ErrBookNotFound)
	_, err := repo.GetBook("missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestRepository_Pending(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.SaveBooks([]entities.Book{{Hash: "local", UpdatedAt: 300}}))
	require.NoError(t, repo.ApplyRemoteBooks([]entities.Book{{Hash: "remote", UpdatedAt: 900}}))

	books, err := repo.Pending()
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "local", books[0].Hash)

	t.Run("remote overwrite clears the flag", func(t *testing.T) {
		require.NoError(t, repo.ApplyRemoteBooks([]entities.Book{{Hash: "local", UpdatedAt: 400}}))
		books, err := repo.Pending()
		require.NoError(t, err)
		assert.Empty(t, books)
	})

	t.Run("markers set the flag", func(t *testing.T) {
		require.NoError(t, repo.MarkDeleted("remote", 1000))
		books, err := repo.Pending()
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "remote", books[0].Hash)
	})
}

func TestRepository_MarkPushed(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.SaveBooks([]entities.Book{
		{Hash: "a", UpdatedAt: 100},
		{Hash: "b", UpdatedAt: 200},
	}))
	pushed, err := repo.Pending()
	require.NoError(t, err)
	require.Len(t, pushed, 2)

	// b changes again while the push is in flight.
	require.NoError(t, repo.MarkUploaded("b", 250))

	require.NoError(t, repo.MarkPushed(pushed))

	books, err := repo.Pending()
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "b", books[0].Hash)
	assert.Equal(t, int64(250), books[0].UpdatedAt)
}

func TestRepository_MarkDownloaded_StaysLocal(t *testing.T) {
	repo := setupTestDB(t)
	require.NoError(t, repo.ApplyRemoteBooks([]entities.Book{{Hash: "h1", UpdatedAt: 100}}))

	require.NoError(t, repo.MarkDownloaded("h1", "/books/h1/Dune.epub", 150))

	books, err := repo.Pending()
	require.NoError(t, err)
	assert.Empty(t, books)

	book, err := repo.GetBook("h1")
	require.NoError(t, err)
	assert.Equal(t, "/books/h1/Dune.epub", book.LocalPath)
	assert.Equal(t, int64(100), book.UpdatedAt)
}

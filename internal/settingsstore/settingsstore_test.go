package settingsstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/librarysync/internal/database"
	"github.com/mrlokans/librarysync/internal/entities"
)

func setupTestDB(t *testing.T) (*database.Database, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "settings.db")
	db, err := database.NewDatabase(dbPath, database.WithLogLevel(logger.Silent))
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}
	return db, cleanup
}

func TestNew(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := New(db)

	assert.NotNil(t, store)
	assert.Equal(t, db, store.db)
}

func TestAutoUpload(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := New(db)

	// Default should be true
	assert.True(t, store.GetAutoUpload())
	assert.Equal(t, "default", store.GetAutoUploadSource())

	err := store.SetAutoUpload(false)
	require.NoError(t, err)

	assert.False(t, store.GetAutoUpload())
	assert.Equal(t, "database", store.GetAutoUploadSource())

	err = db.DeleteSetting(entities.SettingKeyAutoUpload)
	require.NoError(t, err)
	assert.True(t, store.GetAutoUpload())
}

func TestAutoUploadWithEnv(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := New(db)

	os.Setenv("AUTO_UPLOAD", "false")
	defer os.Unsetenv("AUTO_UPLOAD")

	assert.False(t, store.GetAutoUpload())
	assert.Equal(t, "environment", store.GetAutoUploadSource())

	// Database should override env
	require.NoError(t, store.SetAutoUpload(true))
	assert.True(t, store.GetAutoUpload())
	assert.Equal(t, "database", store.GetAutoUploadSource())
}

func TestKeepLogin(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	store := New(db)

	assert.False(t, store.GetKeepLogin())

	require.NoError(t, store.SetKeepLogin(true))
	assert.True(t, store.GetKeepLogin())

	require.NoError(t, store.SetKeepLogin(false))
	assert.False(t, store.GetKeepLogin())
}

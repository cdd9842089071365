package settingsstore

import (
	"os"
	"strconv"

	"github.com/mrlokans/librarysync/internal/database"
	"github.com/mrlokans/librarysync/internal/entities"
)

// Priority: database > environment > default
type SettingsStore struct {
	db *database.Database
}

func New(db *database.Database) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetAutoUpload returns whether newly imported books are uploaded automatically.
func (s *SettingsStore) GetAutoUpload() bool {
	return s.getBool(entities.SettingKeyAutoUpload, "AUTO_UPLOAD", true)
}

// GetAutoUploadSource returns "database", "environment" or "default".
func (s *SettingsStore) GetAutoUploadSource() string {
	return s.source(entities.SettingKeyAutoUpload, "AUTO_UPLOAD")
}

func (s *SettingsStore) SetAutoUpload(enabled bool) error {
	return s.db.SetSetting(entities.SettingKeyAutoUpload, strconv.FormatBool(enabled))
}

// GetKeepLogin returns the "stay logged in" preference. It has no
// environment override: it only ever reflects what the user chose.
func (s *SettingsStore) GetKeepLogin() bool {
	setting, err := s.db.GetSetting(entities.SettingKeyKeepLogin)
	if err != nil || setting.Value == "" {
		return false
	}
	return parseBool(setting.Value)
}

func (s *SettingsStore) SetKeepLogin(keep bool) error {
	return s.db.SetSetting(entities.SettingKeyKeepLogin, strconv.FormatBool(keep))
}

func (s *SettingsStore) getBool(key, envKey string, def bool) bool {
	setting, err := s.db.GetSetting(key)
	if err == nil && setting.Value != "" {
		return parseBool(setting.Value)
	}
	if envVal := os.Getenv(envKey); envVal != "" {
		return parseBool(envVal)
	}
	return def
}

func (s *SettingsStore) getString(key, envKey, def string) string {
	setting, err := s.db.GetSetting(key)
	if err == nil && setting.Value != "" {
		return setting.Value
	}
	if envVal := os.Getenv(envKey); envVal != "" {
		return envVal
	}
	return def
}

func (s *SettingsStore) source(key, envKey string) string {
	setting, err := s.db.GetSetting(key)
	if err == nil && setting.Value != "" {
		return "database"
	}
	if envVal := os.Getenv(envKey); envVal != "" {
		return "environment"
	}
	return "default"
}

func parseBool(value string) bool {
	return value == "true" || value == "1"
}

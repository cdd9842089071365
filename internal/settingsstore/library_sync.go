package settingsstore

import (
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/librarysync/internal/entities"
)

// SyncConfig represents the effective configuration for background library sync
type SyncConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// SyncStatus represents the outcome of the last background sync round
type SyncStatus struct {
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	Status     string     `json:"status,omitempty"` // "completed", "skipped", "failed", ""
	Message    string     `json:"message,omitempty"`
}

const (
	settingKeySyncEnabled  = "sync_enabled"
	settingKeySyncSchedule = "sync_schedule"

	defaultSyncSchedule = "*/15 * * * *"
)

// GetSyncConfig returns the effective background sync configuration.
func (s *SettingsStore) GetSyncConfig() SyncConfig {
	return SyncConfig{
		Enabled:  s.getBool(settingKeySyncEnabled, "SYNC_ENABLED", true),
		Schedule: s.getString(settingKeySyncSchedule, "SYNC_SCHEDULE", defaultSyncSchedule),
	}
}

// SetSyncEnabled saves the enabled state to database
func (s *SettingsStore) SetSyncEnabled(enabled bool) error {
	return s.db.SetSetting(settingKeySyncEnabled, strconv.FormatBool(enabled))
}

// SetSyncSchedule saves the schedule to database
func (s *SettingsStore) SetSyncSchedule(schedule string) error {
	return s.db.SetSetting(settingKeySyncSchedule, schedule)
}

// GetSyncCursor returns the last committed pull watermark for a sync type.
// Zero means "never pulled".
func (s *SettingsStore) GetSyncCursor(syncType entities.SyncType) int64 {
	return s.getWatermark(entities.SyncCursorKey(syncType))
}

// SetSyncCursor commits a new watermark. Cursors only move forward: a value
// lower than the stored one is ignored.
func (s *SettingsStore) SetSyncCursor(syncType entities.SyncType, since int64) error {
	return s.setWatermark(entities.SyncCursorKey(syncType), since)
}

func (s *SettingsStore) getWatermark(key string) int64 {
	setting, err := s.db.GetSetting(key)
	if err != nil || setting.Value == "" {
		return 0
	}
	value, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func (s *SettingsStore) setWatermark(key string, value int64) error {
	if value <= s.getWatermark(key) {
		return nil
	}
	return s.db.SetSetting(key, strconv.FormatInt(value, 10))
}

// GetSyncStatus returns the last sync status
func (s *SettingsStore) GetSyncStatus() SyncStatus {
	status := SyncStatus{}

	if setting, err := s.db.GetSetting(entities.SettingKeySyncLastAt); err == nil && setting.Value != "" {
		if ts, err := time.Parse(time.RFC3339, setting.Value); err == nil {
			status.LastSyncAt = &ts
		}
	}
	if setting, err := s.db.GetSetting(entities.SettingKeySyncLastStatus); err == nil {
		status.Status = setting.Value
	}
	if setting, err := s.db.GetSetting(entities.SettingKeySyncLastMessage); err == nil {
		status.Message = setting.Value
	}

	return status
}

// SetSyncStatus updates the sync status
func (s *SettingsStore) SetSyncStatus(status entities.SyncStatus, message string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if err := s.db.SetSetting(entities.SettingKeySyncLastAt, now); err != nil {
		return err
	}
	if err := s.db.SetSetting(entities.SettingKeySyncLastStatus, string(status)); err != nil {
		return err
	}
	return s.db.SetSetting(entities.SettingKeySyncLastMessage, message)
}

// ValidateCronSchedule validates a cron schedule string
func ValidateCronSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	return err
}

// GetCronDescription returns a human-readable description of a cron schedule
func GetCronDescription(schedule string) string {
	switch schedule {
	case "*/5 * * * *":
		return "Every 5 minutes"
	case "*/15 * * * *":
		return "Every 15 minutes"
	case "*/30 * * * *":
		return "Every 30 minutes"
	case "0 * * * *":
		return "Every hour at :00"
	default:
		return "Custom schedule: " + schedule
	}
}

// GetNextRunTime calculates when the next sync will run based on the schedule
func GetNextRunTime(schedule string) (*time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(time.Now())
	return &next, nil
}

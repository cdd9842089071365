package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarysync/internal/settingsstore"
)

type SettingsResponse struct {
	AutoUpload       bool                     `json:"auto_upload"`
	AutoUploadSource string                   `json:"auto_upload_source"`
	KeepLogin        bool                     `json:"keep_login"`
	Sync             settingsstore.SyncConfig `json:"sync"`
	SyncDescription  string                   `json:"sync_description"`
}

// UpdateSettingsRequest is the request body for PUT /api/settings. Omitted
// fields are left unchanged.
type UpdateSettingsRequest struct {
	AutoUpload   *bool  `json:"auto_upload"`
	SyncEnabled  *bool  `json:"sync_enabled"`
	SyncSchedule string `json:"sync_schedule"`
}

type SettingsController struct {
	store      SettingsStore
	reschedule func() error
}

func NewSettingsController(store SettingsStore, reschedule func() error) *SettingsController {
	return &SettingsController{store: store, reschedule: reschedule}
}

func (controller *SettingsController) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, controller.current())
}

func (controller *SettingsController) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request: "+err.Error())
		return
	}

	if req.SyncSchedule != "" {
		if err := settingsstore.ValidateCronSchedule(req.SyncSchedule); err != nil {
			respondBadRequest(c, "Invalid cron schedule: "+err.Error())
			return
		}
	}

	if req.AutoUpload != nil {
		if err := controller.store.SetAutoUpload(*req.AutoUpload); err != nil {
			respondInternalError(c, err, "save auto-upload")
			return
		}
	}

	syncChanged := false
	if req.SyncSchedule != "" {
		if err := controller.store.SetSyncSchedule(req.SyncSchedule); err != nil {
			respondInternalError(c, err, "save sync schedule")
			return
		}
		syncChanged = true
	}
	if req.SyncEnabled != nil {
		if err := controller.store.SetSyncEnabled(*req.SyncEnabled); err != nil {
			respondInternalError(c, err, "save sync enabled")
			return
		}
		syncChanged = true
	}

	if syncChanged && controller.reschedule != nil {
		if err := controller.reschedule(); err != nil {
			respondError(c, http.StatusInternalServerError, "Settings saved but failed to reschedule: "+err.Error())
			return
		}
	}

	c.JSON(http.StatusOK, controller.current())
}

func (controller *SettingsController) current() SettingsResponse {
	syncConfig := controller.store.GetSyncConfig()
	return SettingsResponse{
		AutoUpload:       controller.store.GetAutoUpload(),
		AutoUploadSource: controller.store.GetAutoUploadSource(),
		KeepLogin:        controller.store.GetKeepLogin(),
		Sync:             syncConfig,
		SyncDescription:  settingsstore.GetCronDescription(syncConfig.Schedule),
	}
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/library"
	"github.com/mrlokans/librarysync/internal/scheduler"
	"github.com/mrlokans/librarysync/internal/settingsstore"
)

type SyncStatusResponse struct {
	settingsstore.SyncStatus
	Syncing bool       `json:"syncing"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

type SyncController struct {
	runner SyncRunner
	status SyncStatusReader
}

func NewSyncController(runner SyncRunner, status SyncStatusReader) *SyncController {
	return &SyncController{runner: runner, status: status}
}

// SyncNow runs a round and returns its report. Optional query parameters
// "type" and "book" narrow it.
func (controller *SyncController) SyncNow(c *gin.Context) {
	syncType, err := entities.ParseSyncType(c.Query("type"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	book := c.Query("book")
	if book != "" && !hashPattern.MatchString(book) {
		respondBadRequest(c, "invalid book")
		return
	}

	report, err := controller.runner.RunNow(c.Request.Context(), library.SyncOptions{Type: syncType, BookHash: book})
	if errors.Is(err, scheduler.ErrSyncInProgress) {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

func (controller *SyncController) GetStatus(c *gin.Context) {
	resp := SyncStatusResponse{
		Syncing: controller.runner.IsSyncing(),
		NextRun: controller.runner.NextRunTime(),
	}
	if controller.status != nil {
		resp.SyncStatus = controller.status.GetSyncStatus()
	}
	c.JSON(http.StatusOK, resp)
}

type NoticesController struct {
	board NoticeBoard
}

func NewNoticesController(board NoticeBoard) *NoticesController {
	return &NoticesController{board: board}
}

func (controller *NoticesController) GetNotices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"notices":         controller.board.Notices(),
		"login_requested": controller.board.LoginRequested(),
	})
}

// DismissLogin clears a pending re-login request once the client has shown it.
func (controller *NoticesController) DismissLogin(c *gin.Context) {
	controller.board.ClearLoginRequest()
	c.Status(http.StatusNoContent)
}

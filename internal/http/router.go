package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Checker, cfg.Version)
	booksController := NewBooksController(cfg.Library, cfg.MaxImportBytes, cfg.TransferTimeout)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Library endpoints
	router.GET("/api/books", booksController.GetAllBooks)
	router.GET("/api/books/:hash", booksController.GetBook)
	router.POST("/api/books/import", booksController.Import)
	router.POST("/api/books/:hash/upload", booksController.Upload)
	router.POST("/api/books/:hash/download", booksController.Download)
	router.DELETE("/api/books/:hash", booksController.Delete)

	// Transfer endpoints
	router.GET("/api/transfers", booksController.GetTransfers)
	router.DELETE("/api/transfers/:hash", booksController.CancelTransfer)

	// Sync endpoints
	if cfg.Sync != nil {
		syncController := NewSyncController(cfg.Sync, cfg.SyncStatus)
		router.POST("/api/sync", syncController.SyncNow)
		router.GET("/api/sync/status", syncController.GetStatus)
	}

	if cfg.Notices != nil {
		noticesController := NewNoticesController(cfg.Notices)
		router.GET("/api/notices", noticesController.GetNotices)
		router.DELETE("/api/notices/login", noticesController.DismissLogin)
	}

	if cfg.Notes != nil {
		notesController := NewNotesController(cfg.Library, cfg.Notes)
		router.GET("/api/books/:hash/notes", notesController.GetNotes)
	}

	if cfg.Editor != nil {
		recordsController := NewRecordsController(cfg.Editor)
		router.PUT("/api/books/:hash/config", recordsController.SaveConfig)
		router.PUT("/api/books/:hash/notes/:id", recordsController.SaveNote)
		router.DELETE("/api/books/:hash/notes/:id", recordsController.DeleteNote)
	}

	if cfg.Settings != nil {
		settingsController := NewSettingsController(cfg.Settings, cfg.Reschedule)
		router.GET("/api/settings", settingsController.GetSettings)
		router.PUT("/api/settings", settingsController.UpdateSettings)
	}

	return router
}

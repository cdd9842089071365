package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/mrlokans/librarysync/internal/apiclient"
	"github.com/mrlokans/librarysync/internal/config"
	"github.com/mrlokans/librarysync/internal/connectivity"
	"github.com/mrlokans/librarysync/internal/database"
	"github.com/mrlokans/librarysync/internal/database/books"
	"github.com/mrlokans/librarysync/internal/database/records"
	"github.com/mrlokans/librarysync/internal/library"
	"github.com/mrlokans/librarysync/internal/oauth2"
	"github.com/mrlokans/librarysync/internal/scheduler"
	"github.com/mrlokans/librarysync/internal/settingsstore"
	"github.com/mrlokans/librarysync/internal/storage"
	syncclient "github.com/mrlokans/librarysync/internal/sync"
	"github.com/mrlokans/librarysync/internal/transfer"
)

// App holds the wired components shared by the server and the CLI commands.
type App struct {
	Config    *config.Config
	Database  *database.Database
	Settings  *settingsstore.SettingsStore
	Records   *records.Repository
	Gate      *connectivity.Gate
	Board     *library.Board
	Library   *library.Orchestrator
	Scheduler *scheduler.SyncScheduler
}

// NewApp opens the database and wires the library to the remote API.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	settings := settingsstore.New(db)

	var monitor connectivity.Monitor
	if cfg.Network.CheckAddr != "" {
		monitor = connectivity.NewDialMonitor(cfg.Network.CheckAddr, cfg.Network.CheckTimeout)
	}
	gate := connectivity.NewGate(cfg.API.BaseURL, monitor)
	if !gate.APIConfigured() {
		log.Printf("WARNING: API_BASE_URL is not set. Uploads, downloads and sync are disabled.")
	}

	tokens := newTokenSource(ctx, cfg.API)
	api := apiclient.NewClient(gate, tokens, apiclient.WithTimeout(cfg.API.Timeout))

	// Content transfers can take longer than any fixed timeout; they are
	// bounded by their context only.
	primitive := transfer.ForPlatform(cfg.Transfer.Platform, &http.Client{})
	log.Printf("Transfer mode: %s", cfg.Transfer.Platform)

	recordsRepo := records.NewRepository(db.DB)
	board := library.NewBoard(0)
	orchestrator := library.New(library.Config{
		Catalog:          books.NewRepository(db.DB),
		Records:          recordsRepo,
		Preferences:      settings,
		Storage:          storage.NewClient(api, primitive),
		Syncer:           syncclient.NewClient(api),
		Checker:          gate,
		Tokens:           tokens,
		Notifier:         board,
		Session:          board,
		LibraryDir:       cfg.Library.Dir,
		ProgressInterval: cfg.Transfer.ProgressInterval,
	})
	if err := orchestrator.Load(); err != nil {
		db.Close()
		return nil, err
	}
	orchestrator.InitLogin(ctx)

	return &App{
		Config:    cfg,
		Database:  db,
		Settings:  settings,
		Records:   recordsRepo,
		Gate:      gate,
		Board:     board,
		Library:   orchestrator,
		Scheduler: scheduler.NewSyncScheduler(orchestrator, settings),
	}, nil
}

// Close stops background work and closes the database.
func (a *App) Close() {
	a.Scheduler.Stop()
	a.Library.Close()
	if err := a.Database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

func newTokenSource(ctx context.Context, cfg config.API) oauth2.TokenSource {
	if cfg.UsesRefreshToken() {
		log.Printf("Authentication: refresh token via %s", cfg.OAuthTokenURL)
		return oauth2.NewRefreshTokenSource(ctx, cfg.OAuthClientID, cfg.OAuthTokenURL, cfg.RefreshToken, cfg.UserID)
	}
	if cfg.AccessToken == "" {
		log.Printf("Authentication: signed out (set API_ACCESS_TOKEN or API_REFRESH_TOKEN to sign in)")
	}
	return oauth2.NewStaticTokenSource(cfg.AccessToken, cfg.UserID)
}

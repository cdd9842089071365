package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarysync/internal/config"
	http_controllers "github.com/mrlokans/librarysync/internal/http"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	if err := os.MkdirAll(cfg.Library.Dir, 0o755); err != nil {
		log.Fatalf("Library directory %s is not writable: %v", cfg.Library.Dir, err)
		return
	}
	log.Printf("Library directory: %s", cfg.Library.Dir)

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Library Sync v%s", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	// The scheduler reads its effective settings itself, so a round can be
	// enabled later through the settings endpoint.
	if err := app.Scheduler.Start(ctx); err != nil {
		log.Printf("WARNING: Failed to start sync scheduler: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Library:    app.Library,
		Database:   app.Database,
		Checker:    app.Gate,
		Sync:       app.Scheduler,
		SyncStatus: app.Settings,
		Notices:    app.Board,
		Notes:      app.Records,
		Editor:     app.Library,
		Settings:   app.Settings,
		Reschedule: func() error { return app.Scheduler.Reschedule(ctx) },
		Version:    version,
	}

	router := http_controllers.NewRouter(routerCfg)

	// Running transfers are canceled; their records stay as they were.
	onShutdown := func(ctx context.Context) {
		cancel()
		app.Close()
	}

	Serve(router, cfg, onShutdown)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mrlokans/librarysync/internal/config"
	"github.com/mrlokans/librarysync/internal/entrypoint"
	"github.com/mrlokans/librarysync/internal/library"
)

const progressThrottle = 100 * time.Millisecond

// openApp wires the library against the configured database, optionally
// overridden by the -db flag.
func openApp(ctx context.Context, databasePath string) (*entrypoint.App, error) {
	cfg := config.NewConfig()
	if databasePath != "" {
		cfg.Database.Path = databasePath
	}
	return entrypoint.NewApp(ctx, cfg)
}

// printNotices writes notices raised since index from to stderr.
func printNotices(board *library.Board, from int) {
	notices := board.Notices()
	if from > len(notices) {
		return
	}
	for _, n := range notices[from:] {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message)
	}
}

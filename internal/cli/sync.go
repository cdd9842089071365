package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mrlokans/librarysync/internal/entities"
	"github.com/mrlokans/librarysync/internal/library"
)

// SyncCommand runs one sync round against the remote API.
type SyncCommand struct {
	Type         entities.SyncType
	BookHash     string
	DatabasePath string
	Timeout      time.Duration
}

func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)

	var syncType string
	fs.StringVar(&syncType, "type", "", "Record type to sync: books, configs or notes (default: all)")
	fs.StringVar(&cmd.BookHash, "book", "", "Only pull records of this book hash")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database (default: DATABASE_PATH)")
	fs.DurationVar(&cmd.Timeout, "timeout", 10*time.Minute, "Give up after this long")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Pull remote changes into the local library, then push local changes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	t, err := entities.ParseSyncType(syncType)
	if err != nil {
		return err
	}
	cmd.Type = t
	return nil
}

func (cmd *SyncCommand) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	app, err := openApp(ctx, cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer app.Close()

	started := time.Now()
	report, err := app.Library.Sync(ctx, library.SyncOptions{Type: cmd.Type, BookHash: cmd.BookHash})
	if err != nil {
		return err
	}

	if report.Skipped != "" {
		fmt.Printf("Sync skipped: %s\n", report.Skipped)
		return nil
	}
	fmt.Printf("Sync finished in %v: %s\n", time.Since(started).Round(time.Millisecond), report)
	return nil
}

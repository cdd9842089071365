package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrlokans/librarysync/internal/library"
	"github.com/mrlokans/librarysync/internal/transfer"
)

// TransferCommand uploads or downloads the content of one book.
type TransferCommand struct {
	Direction    string // "upload" or "download"
	Hash         string
	DatabasePath string
}

func NewUploadCommand() *TransferCommand {
	return &TransferCommand{Direction: "upload"}
}

func NewDownloadCommand() *TransferCommand {
	return &TransferCommand{Direction: "download"}
}

func (cmd *TransferCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet(cmd.Direction, flag.ContinueOnError)

	fs.StringVar(&cmd.Hash, "hash", "", "Hash of the book (required)")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database (default: DATABASE_PATH)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s -hash <hash> [options]\n\n", os.Args[0], cmd.Direction)
		fmt.Fprintf(os.Stderr, "Press Ctrl+C to cancel; the book record is left unchanged.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Hash == "" {
		return fmt.Errorf("required flag -hash not provided")
	}
	return nil
}

func (cmd *TransferCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := openApp(ctx, cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer app.Close()

	book, ok := app.Library.Book(cmd.Hash)
	if !ok {
		return library.ErrBookNotFound
	}

	bar := newTransferBar(fmt.Sprintf("%sing %s", cmd.Direction, book.Title))
	onProgress := func(p transfer.Progress) { bar.Update(p) }

	var outcome library.Outcome
	if cmd.Direction == "upload" {
		outcome = app.Library.UploadBook(ctx, cmd.Hash, onProgress)
	} else {
		outcome = app.Library.DownloadBook(ctx, cmd.Hash, onProgress)
	}
	bar.Finish()
	printNotices(app.Board, 0)

	switch outcome.Action {
	case library.ActionUploaded, library.ActionDownloaded:
		return nil
	case library.ActionCanceled:
		fmt.Fprintf(os.Stderr, "%s canceled\n", cmd.Direction)
		return nil
	case library.ActionRelogin:
		return fmt.Errorf("session expired, sign in again")
	}
	if outcome.Err == nil {
		return fmt.Errorf("%s %s", cmd.Direction, outcome.Action)
	}
	return outcome.Err
}

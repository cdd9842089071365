package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
)

// ImportCommand adds local book files to the library.
type ImportCommand struct {
	Files        []string
	DatabasePath string
	Wait         bool
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the local database (default: DATABASE_PATH)")
	fs.BoolVar(&cmd.Wait, "wait", true, "Wait for automatic uploads to finish")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import [options] <file>...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Copy e-book files into the library. Books are uploaded automatically\n")
		fmt.Fprintf(os.Stderr, "when signed in, online and auto-upload is enabled.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.Files = fs.Args()
	if len(cmd.Files) == 0 {
		return fmt.Errorf("no files given")
	}
	return nil
}

func (cmd *ImportCommand) Run() error {
	ctx := context.Background()

	app, err := openApp(ctx, cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer app.Close()

	var failed int
	for _, path := range cmd.Files {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", path, err)
			failed++
			continue
		}
		result, err := app.Library.Import(ctx, path, f)
		f.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", path, err)
			failed++
			continue
		}

		status := "uploading"
		if !result.Decision.Upload {
			status = "not uploaded: " + string(result.Decision.Reason)
		}
		fmt.Printf("  %s  %s (%s, %s)\n", result.Book.Hash, result.Book.Title,
			humanize.Bytes(uint64(result.Book.FileSize)), status)
	}

	if cmd.Wait {
		app.Library.Wait()
	}
	printNotices(app.Board, 0)

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be imported", failed, len(cmd.Files))
	}
	return nil
}

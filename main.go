package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/librarysync/internal/cli"
	"github.com/mrlokans/librarysync/internal/config"
	"github.com/mrlokans/librarysync/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "sync":
		cmd = cli.NewSyncCommand()
	case "import":
		cmd = cli.NewImportCommand()
	case "upload":
		cmd = cli.NewUploadCommand()
	case "download":
		cmd = cli.NewDownloadCommand()

	case "version":
		fmt.Printf("librarysync %s (%s)\n", Version, Commit)
		return

	case "-h", "--help", "help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  sync      Pull remote changes and push local ones\n")
	fmt.Fprintf(os.Stderr, "  import    Add local e-book files to the library\n")
	fmt.Fprintf(os.Stderr, "  upload    Upload the content of one book\n")
	fmt.Fprintf(os.Stderr, "  download  Download the content of one book\n")
	fmt.Fprintf(os.Stderr, "  version   Print the build version\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}

package config

// Default paths for local state
const (
	// DefaultDatabasePath is the default path for the local catalog database
	DefaultDatabasePath = "./library.db"

	// DefaultLibraryDir is where downloaded book files are stored
	DefaultLibraryDir = "./books"
)

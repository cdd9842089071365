package config

import (
	"time"

	"github.com/spf13/viper"
)

// Platform selects the transfer strategy used for book content.
type Platform string

const (
	PlatformNative Platform = "native" // File-path based transfers (desktop shell)
	PlatformWeb    Platform = "web"    // In-memory transfers (browser build)
)

type (
	Config struct {
		HTTP
		Global
		Database
		API
		Network
		Library
		Sync
		Transfer
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	API struct {
		BaseURL     string        // Empty means the remote API is not configured
		AccessToken string        // Static bearer token, empty means unauthenticated
		UserID      string        // Owner namespace for storage keys
		Timeout     time.Duration // Timeout for metadata requests

		// Refresh-token sign-in; used instead of AccessToken when set
		RefreshToken  string
		OAuthClientID string
		OAuthTokenURL string
	}
	Network struct {
		CheckAddr    string // Optional host:port dialled to confirm reachability
		CheckTimeout time.Duration
	}
	Library struct {
		Dir        string // Destination directory for native downloads
		AutoUpload bool   // Default of the auto-upload preference
	}
	Sync struct {
		Enabled  bool
		Schedule string // Cron format: "*/15 * * * *" = every 15 minutes
	}
	Transfer struct {
		Platform         Platform
		ProgressInterval time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8288)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Remote API defaults
	v.SetDefault("api_base_url", "")
	v.SetDefault("api_access_token", "")
	v.SetDefault("api_user_id", "")
	v.SetDefault("http_timeout", "60s")
	v.SetDefault("api_refresh_token", "")
	v.SetDefault("api_oauth_client_id", "")
	v.SetDefault("api_oauth_token_url", "")

	// Reachability monitor is disabled unless an address is given
	v.SetDefault("network_check_addr", "")
	v.SetDefault("network_check_timeout", "2s")

	v.SetDefault("library_dir", DefaultLibraryDir)
	v.SetDefault("auto_upload", true)

	v.SetDefault("sync_enabled", true)
	v.SetDefault("sync_schedule", "*/15 * * * *")

	v.SetDefault("app_platform", string(PlatformNative))
	v.SetDefault("progress_interval", "500ms")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		API: API{
			BaseURL:     v.GetString("API_BASE_URL"),
			AccessToken: v.GetString("API_ACCESS_TOKEN"),
			UserID:      v.GetString("API_USER_ID"),
			Timeout:     v.GetDuration("HTTP_TIMEOUT"),

			RefreshToken:  v.GetString("API_REFRESH_TOKEN"),
			OAuthClientID: v.GetString("API_OAUTH_CLIENT_ID"),
			OAuthTokenURL: v.GetString("API_OAUTH_TOKEN_URL"),
		},
		Network: Network{
			CheckAddr:    v.GetString("NETWORK_CHECK_ADDR"),
			CheckTimeout: v.GetDuration("NETWORK_CHECK_TIMEOUT"),
		},
		Library: Library{
			Dir:        v.GetString("LIBRARY_DIR"),
			AutoUpload: v.GetBool("AUTO_UPLOAD"),
		},
		Sync: Sync{
			Enabled:  v.GetBool("SYNC_ENABLED"),
			Schedule: v.GetString("SYNC_SCHEDULE"),
		},
		Transfer: Transfer{
			Platform:         ParsePlatform(v.GetString("APP_PLATFORM")),
			ProgressInterval: v.GetDuration("PROGRESS_INTERVAL"),
		},
	}
}

// ParsePlatform maps a configured value to a Platform, defaulting to native.
func ParsePlatform(value string) Platform {
	if Platform(value) == PlatformWeb {
		return PlatformWeb
	}
	return PlatformNative
}

// UsesRefreshToken reports whether sign-in goes through the OAuth token
// endpoint rather than a fixed access token.
func (a API) UsesRefreshToken() bool {
	return a.RefreshToken != "" && a.OAuthTokenURL != ""
}

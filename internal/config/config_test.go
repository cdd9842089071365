package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8288), cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, "", cfg.API.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.Library.AutoUpload)
	assert.Equal(t, PlatformNative, cfg.Transfer.Platform)
	assert.Equal(t, 500*time.Millisecond, cfg.Transfer.ProgressInterval)
	assert.Equal(t, "*/15 * * * *", cfg.Sync.Schedule)
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	os.Setenv("API_BASE_URL", "https://example.com/api")
	os.Setenv("APP_PLATFORM", "web")
	os.Setenv("AUTO_UPLOAD", "false")
	defer func() {
		os.Unsetenv("API_BASE_URL")
		os.Unsetenv("APP_PLATFORM")
		os.Unsetenv("AUTO_UPLOAD")
	}()

	cfg := NewConfig()

	assert.Equal(t, "https://example.com/api", cfg.API.BaseURL)
	assert.Equal(t, PlatformWeb, cfg.Transfer.Platform)
	assert.False(t, cfg.Library.AutoUpload)
}

func TestParsePlatform(t *testing.T) {
	assert.Equal(t, PlatformWeb, ParsePlatform("web"))
	assert.Equal(t, PlatformNative, ParsePlatform("native"))
	assert.Equal(t, PlatformNative, ParsePlatform("tauri"))
	assert.Equal(t, PlatformNative, ParsePlatform(""))
}

func TestAPI_UsesRefreshToken(t *testing.T) {
	t.Setenv("API_REFRESH_TOKEN", "refresh-1")
	t.Setenv("API_OAUTH_TOKEN_URL", "https://auth.example.com/token")

	cfg := NewConfig()
	assert.True(t, cfg.API.UsesRefreshToken())
	assert.Equal(t, "refresh-1", cfg.API.RefreshToken)

	assert.False(t, API{RefreshToken: "refresh-1"}.UsesRefreshToken())
	assert.False(t, API{}.UsesRefreshToken())
}

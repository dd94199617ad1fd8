package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Profile     ProfileConfig     `toml:"profile"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Wellness    WellnessConfig    `toml:"wellness"`
	Log         LogConfig         `toml:"log"`
}

// ProfileConfig identifies the local user the CLI acts for.
type ProfileConfig struct {
	Email    string `toml:"email"`
	Name     string `toml:"name"`
	Timezone string `toml:"timezone"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Google    GoogleConfig    `toml:"google"`
	Microsoft MicrosoftConfig `toml:"microsoft"`
	OpenAI    OpenAIConfig    `toml:"openai"`
}

// GoogleConfig contains Google OAuth client credentials (Calendar + Gmail).
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	CalendarID   string `toml:"calendar_id"`
}

// Map returns the credentials as the map accepted by the service constructors.
func (c GoogleConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
	}
}

// MicrosoftConfig contains Microsoft identity platform credentials for Graph.
type MicrosoftConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	Tenant       string `toml:"tenant"`
	RedirectURI  string `toml:"redirect_uri"`
	CalendarID   string `toml:"calendar_id"`
}

// Map returns the credentials as the map accepted by the service constructors.
func (c MicrosoftConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"tenant":        c.Tenant,
		"redirect_uri":  c.RedirectURI,
	}
}

// OpenAIConfig contains Chat Completions settings.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	PublicURL    string `toml:"public_url"`
	WebhookToken string `toml:"webhook_token"`
}

// SyncConfig controls calendar synchronization and background jobs.
type SyncConfig struct {
	WindowDays      int     `toml:"window_days"`
	Workers         int     `toml:"workers"`
	RateLimit       float64 `toml:"rate_limit"`
	SyncSchedule    string  `toml:"sync_schedule"`
	RenewSchedule   string  `toml:"renew_schedule"`
	PredictSchedule string  `toml:"predict_schedule"`
	WatchTTLHours   int     `toml:"watch_ttl_hours"`
}

// WellnessConfig tunes the prediction fallback.
type WellnessConfig struct {
	FallbackJitter float64 `toml:"fallback_jitter"`
	HistoryDays    int     `toml:"history_days"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadEnvFiles loads KEY=VALUE pairs from the given .env files (default ".env") without overriding variables already set.
// Missing files are ignored; a file that exists but does not parse is an error.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%w: failed to read %s: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and paths from environment variables.
func (c *Config) ApplyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	setString(&c.Credentials.Google.ClientID, "CADENCE_GOOGLE_CLIENT_ID")
	setString(&c.Credentials.Google.ClientSecret, "CADENCE_GOOGLE_CLIENT_SECRET")
	setString(&c.Credentials.Microsoft.ClientID, "CADENCE_MICROSOFT_CLIENT_ID")
	setString(&c.Credentials.Microsoft.ClientSecret, "CADENCE_MICROSOFT_CLIENT_SECRET")
	setString(&c.Credentials.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Database.Path, "CADENCE_DATABASE_PATH")
	setString(&c.Server.WebhookToken, "CADENCE_WEBHOOK_TOKEN")
	setString(&c.Log.Level, "CADENCE_LOG_LEVEL")

	if v, ok := os.LookupEnv("CADENCE_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate checks settings that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Sync.WindowDays <= 0 {
		return fmt.Errorf("%w: sync.window_days must be positive", ErrInvalidConfig)
	}
	if c.Wellness.FallbackJitter < 0 {
		return fmt.Errorf("%w: wellness.fallback_jitter must not be negative", ErrInvalidConfig)
	}
	return nil
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

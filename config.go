package pocket

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/receiptwise/pocket/internal/profile"
)

// Config configures the Pocket client.
type Config struct {
	// LocalPath is the path to the local SQLite database.
	// If empty, derived from the resolved Profile.
	LocalPath string `env:"POCKET_DB_PATH"`

	// Profile is the profile ID to operate against.
	// If empty, resolved using profile resolution (explicit > POCKET_PROFILE env > "default").
	Profile string `env:"POCKET_PROFILE"`

	// APIURL is the base URL of the receipt service.
	// If empty, operates in offline-only mode.
	APIURL string `env:"POCKET_API_URL"`

	// APIToken authenticates with the receipt service. Treated as a JWT when
	// it parses as one (enabling expiry checks), otherwise passed through
	// verbatim.
	APIToken string `env:"POCKET_API_TOKEN"`

	// OwnerID is the account the device acts for. Used as the default
	// owner on created receipts.
	OwnerID string `env:"POCKET_OWNER_ID"`

	// DeviceID identifies this client instance to the service.
	// Defaults to hostname if not set.
	DeviceID string `env:"POCKET_DEVICE_ID"`

	// SyncInterval is how often the engine drains the queue.
	// Defaults to 5 minutes.
	SyncInterval time.Duration `env:"POCKET_SYNC_INTERVAL"`

	// AutoSync enables automatic background syncing.
	// Defaults to true.
	AutoSync bool `env:"POCKET_AUTO_SYNC" env-default:"true"`

	// Debug enables verbose logging of all receipt service communications.
	// When enabled, requests, responses, and full error details are logged.
	Debug bool `env:"POCKET_DEBUG"`

	// DebugLogPath is the path to write debug logs.
	// Defaults to stderr if empty.
	DebugLogPath string `env:"POCKET_DEBUG_LOG"`
}

// DefaultConfig returns a Config with sensible defaults.
// Profile defaults to "default", and LocalPath is derived from Profile.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	return Config{
		Profile:      "default",
		LocalPath:    profile.ProfileDBPath("default"),
		SyncInterval: DefaultSyncInterval,
		AutoSync:     true,
		DeviceID:     hostname,
	}
}

// ConfigFromEnv reads configuration from POCKET_* environment variables.
func ConfigFromEnv() (Config, error) {
	var c Config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return Config{}, &ValidationError{Field: "env", Message: err.Error()}
	}
	return c, nil
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.Profile != "" {
		if err := profile.ValidateProfileID(c.Profile); err != nil {
			return &ValidationError{Field: "Profile", Message: err.Error()}
		}
	}

	if c.APIURL != "" && c.APIToken == "" {
		return &ValidationError{Field: "APIToken", Message: "required when APIURL is set"}
	}

	if c.SyncInterval < 0 {
		return &ValidationError{Field: "SyncInterval", Message: "must be non-negative"}
	}

	return nil
}

// IsOffline returns true if the client operates in offline-only mode.
// Offline mode is determined by APIURL being empty.
func (c *Config) IsOffline() bool {
	return c.APIURL == ""
}

// WithDefaults fills in default values for unset fields.
// Profile resolution: explicit Profile field > POCKET_PROFILE env > "default".
// LocalPath is derived from the resolved Profile if not explicitly set.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Profile == "" {
		resolved, err := profile.ResolveProfile("")
		if err == nil {
			c.Profile = resolved
		} else {
			c.Profile = "default"
		}
	}

	if c.LocalPath == "" {
		c.LocalPath = profile.ProfileDBPath(c.Profile)
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = defaults.SyncInterval
	}
	if c.DeviceID == "" {
		c.DeviceID = defaults.DeviceID
	}

	return c
}

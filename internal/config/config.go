// Package config loads the process configuration from the environment, with
// an optional .env file for development setups.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// BLE holds the user-supplied BLE connection parameters. They are free-text
// UUID/string inputs; validation beyond whitespace trimming happens in the
// transport.
type BLE struct {
	ServiceUUID        string
	CharacteristicUUID string
	NamePrefix         string
	ScanTimeout        time.Duration
}

// Config is the full process configuration.
type Config struct {
	// RemoteURL is the base URL of the remote document store. Its absence
	// disables the remote path entirely.
	RemoteURL   string
	RemoteToken string

	SerialPort string
	BLE        BLE

	PrefsPath string
	LogLevel  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present and silently skipped otherwise.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		RemoteURL:   os.Getenv("VITALINK_REMOTE_URL"),
		RemoteToken: os.Getenv("VITALINK_REMOTE_TOKEN"),
		SerialPort:  os.Getenv("VITALINK_SERIAL_PORT"),
		BLE: BLE{
			ServiceUUID:        os.Getenv("VITALINK_BLE_SERVICE"),
			CharacteristicUUID: os.Getenv("VITALINK_BLE_CHARACTERISTIC"),
			NamePrefix:         os.Getenv("VITALINK_BLE_NAME_PREFIX"),
		},
		PrefsPath: os.Getenv("VITALINK_PREFS_PATH"),
		LogLevel:  os.Getenv("VITALINK_LOG_LEVEL"),
	}

	if timeout := os.Getenv("VITALINK_BLE_SCAN_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.BLE.ScanTimeout = d
		}
	}

	if cfg.PrefsPath == "" {
		cfg.PrefsPath = defaultPrefsPath()
	}
	return cfg
}

// RemoteReady reports whether remote-store credentials are present; it is
// the feature flag for the remote persistence path.
func (c Config) RemoteReady() bool {
	return c.RemoteURL != ""
}

func defaultPrefsPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "preferences.yaml"
	}
	return filepath.Join(base, "vitalink", "preferences.yaml")
}

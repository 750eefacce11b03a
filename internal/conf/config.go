// config.go: settings struct and loading for the CartBridge migration engine.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// MainSettings contains application level settings
type MainSettings struct {
	Name     string // name of this instance, used in logs and object keys
	LogLevel string // debug, info, warn, error
}

// SourceSettings describes the read-only legacy storefront database.
type SourceSettings struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Database   string
	Prefix     string // legacy table prefix, typically "oc_"
	LanguageID int    // language id for description rows, typically 1
}

// DSN returns the MySQL connection string for the source database.
func (s *SourceSettings) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		s.Username, s.Password, s.Host, s.Port, s.Database)
}

// TargetSettings describes the target commerce platform's admin API.
type TargetSettings struct {
	BaseURL       string        // e.g. https://admin.example.com
	APIToken      string        // privileged admin token
	Timeout       time.Duration // per-request timeout
	SalesChannel  string        // default sales channel name, created if absent
	StockLocation string        // default stock location name, created if absent
	CurrencyCode  string        // currency code for variant prices
	RegionID      string        // optional region scoping for price lookups
}

// StorageSettings describes the S3-compatible object storage for product media.
type StorageSettings struct {
	Bucket    string
	Region    string
	Endpoint  string // region endpoint host, e.g. ams3.digitaloceanspaces.com
	AccessKey string
	SecretKey string
}

// Configured reports whether object storage credentials are usable.
func (s *StorageSettings) Configured() bool {
	return s.Bucket != "" && s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != ""
}

// MigrationSettings carries per-run defaults for the migration engine.
type MigrationSettings struct {
	BatchSize           int    // products fetched per source page
	ImageConcurrency    int    // parallel image downloads per product
	MaxImagesPerProduct int    // resolved images kept per product
	PlaceholderImageURL string // substituted when no candidate image resolves
	DataDir             string // job files, checkpoints and report artifacts
	DryRun              bool   // default dry-run mode, overridable per job
	VerifySampleSize    int    // source records sampled for the verification report
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug bool // true to enable debug logging

	Main      MainSettings
	Source    SourceSettings
	Target    TargetSettings
	Storage   StorageSettings
	Migration MigrationSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/cartbridge")
	viper.AddConfigPath("/etc/cartbridge")

	viper.SetEnvPrefix("cartbridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file is fine, defaults plus environment cover everything
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SetSettings replaces the current settings instance, used by tests.
func SetSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}

// config.go: This file contains the configuration for the Reefey backend. It defines the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// QuotaSettings contains settings for the per-device analysis quota gate.
type QuotaSettings struct {
	Enabled    bool // true to enforce the daily quota
	Debug      bool // true to enable debug mode
	DailyLimit int  // allowed vision model calls per device per 24-hour window
}

// VisionSettings contains settings for the vision model provider.
type VisionSettings struct {
	Provider          string  // vision provider, "anthropic" or "mock"
	Debug             bool    // true to enable debug mode
	APIKey            string  // provider API key
	Model             string  // model identifier
	MaxTokens         int     // response token budget
	Timeout           int     // request timeout in seconds
	RequestsPerMinute float64 // outbound request rate limit, 0 to disable
	Log               LogConfig
}

// ReconcilerSettings contains settings for detection reconciliation.
type ReconcilerSettings struct {
	Debug               bool    // true to enable debug mode
	ConfidenceThreshold float64 // detections below this confidence are skipped
	AutoCreate          bool    // true to allow catalog auto-creation
	AutoCreateThreshold float64 // confidence floor for catalog auto-creation
	CacheTTL            int     // catalog lookup cache TTL in seconds
}

// AnnotateSettings contains settings for bounding box rendering.
type AnnotateSettings struct {
	Enabled   bool // true to render annotated photo copies
	Debug     bool // true to enable debug mode
	Quality   int  // JPEG quality of the annotated output
	LineWidth int  // box outline width in pixels
}

// LocalStoreSettings contains settings for the local disk object store.
type LocalStoreSettings struct {
	Path string // directory for stored photos
}

// FTPStoreSettings contains settings for the FTP object store.
type FTPStoreSettings struct {
	Host     string // FTP server host
	Port     string // FTP server port
	Username string // FTP username
	Password string // FTP password
	Path     string // remote base directory
	Timeout  int    // connection timeout in seconds
}

// SFTPStoreSettings contains settings for the SFTP object store.
type SFTPStoreSettings struct {
	Host     string // SFTP server host
	Port     string // SFTP server port
	Username string // SFTP username
	Password string // SFTP password, used when no key file is set
	KeyFile  string // path to private key file
	Path     string // remote base directory
	Timeout  int    // connection timeout in seconds
}

// ObjectStoreSettings contains settings for photo storage.
type ObjectStoreSettings struct {
	Type      string // storage backend, "local", "ftp" or "sftp"
	Debug     bool   // true to enable debug mode
	PublicURL string // base URL prefixed to stored object paths
	Local     LocalStoreSettings
	FTP       FTPStoreSettings
	SFTP      SFTPStoreSettings
}

// SpeciesImagesSettings contains settings for species reference image fetching.
type SpeciesImagesSettings struct {
	Provider string // reference image provider, "wikimedia" or "none"
	Debug    bool   // true to enable debug mode
}

// LocationSettings contains the deployment site coordinates.
// Used for day/night tagging of sightings; zero values disable tagging.
type LocationSettings struct {
	Latitude  float64 // site latitude
	Longitude float64 // site longitude
}

// MQTTSettings contains settings for MQTT sighting event publishing.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT publishing
	Debug    bool   // true to enable debug mode
	Broker   string // broker URL, e.g. tcp://localhost:1883
	Topic    string // topic to publish sighting events to
	Username string // MQTT username
	Password string // MQTT password
	Retain   bool   // true to publish messages with the retained flag
}

// NotificationSettings contains settings for push notifications.
type NotificationSettings struct {
	Enabled bool     // true to enable push notifications
	Debug   bool     // true to enable debug mode
	URLs    []string // shoutrrr service URLs
}

// TelemetrySettings contains settings for error telemetry.
type TelemetrySettings struct {
	Enabled bool   // true to enable Sentry telemetry, opt-in
	Debug   bool   // true to enable debug mode
	DSN     string // Sentry DSN
}

// IntegrationsSettings groups optional outbound integrations.
type IntegrationsSettings struct {
	MQTT         MQTTSettings         // MQTT event publishing
	Notification NotificationSettings // push notifications
	Telemetry    TelemetrySettings    // error telemetry
}

// Settings is the root configuration for the Reefey backend.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in config file
	Version   string `yaml:"-"` // Version from build
	BuildDate string `yaml:"-"` // Build date from build

	Main struct {
		Name string    // name of this Reefey node, used to identify the event source
		Log  LogConfig // logging configuration
	}

	Quota QuotaSettings // per-device quota gate settings

	Vision VisionSettings // vision model settings

	Reconciler ReconcilerSettings // reconciliation settings

	Annotate AnnotateSettings // annotation rendering settings

	ObjectStore ObjectStoreSettings // photo storage settings

	SpeciesImages SpeciesImagesSettings // species reference image settings

	Location LocationSettings // deployment site coordinates

	Integrations IntegrationsSettings // optional outbound integrations

	WebServer struct {
		Debug   bool      // true to enable debug mode
		Enabled bool      // true to enable web server
		Port    string    // port for web server
		Log     LogConfig // logging configuration for web server
	}

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}

		MySQL struct {
			Enabled  bool   // true to enable mysql output
			Username string // username for mysql database
			Password string // password for mysql database
			Database string // database name for mysql database
			Host     string // host for mysql database
			Port     string // port for mysql database
		}
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled     bool         // true to enable this log
	Path        string       // Path to the log file
	Rotation    RotationType // Type of log rotation
	MaxSize     int64        // Max size in bytes for RotationSize
	RotationDay string       // Day of the week for RotationWeekly (as a string: "Sunday", "Monday", etc.)
}

// RotationType defines different types of log rotations.
type RotationType string

const (
	RotationDaily  RotationType = "daily"
	RotationWeekly RotationType = "weekly"
	RotationSize   RotationType = "size"
)

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	// Create a new settings struct
	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	// Save settings instance
	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Get OS specific config paths
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	// Assign config paths to Viper
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Bind environment variable overrides, function defined in env.go
	if err := configureEnvironmentVariables(); err != nil {
		// Invalid env values are reported but do not block startup
		fmt.Println(err)
	}

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths() // Again, adjusted for error handling
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// Create directories for config file
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write default config file
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings saves the current settings to the configuration file.
// It uses SaveYAMLConfig to handle the atomic write process.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	// Create a copy of the settings
	settingsCopy := *settingsInstance

	// Find the path of the current config file
	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	// Save the settings to the config file
	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	// Marshal the settings struct to YAML
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write the YAML data to a temporary file
	// This is done to ensure atomic write operation
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	// Ensure the temporary file is removed in case of any failure
	defer os.Remove(tempFileName)

	// Write the YAML data to the temporary file
	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	// Close the temporary file after writing
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	// Try to rename the temporary file to replace the original config file
	// This is typically an atomic operation on most filesystems
	if err := os.Rename(tempFileName, configPath); err != nil {
		// If rename fails (e.g., cross-device link), fall back to copy & delete
		// This might happen when the temp directory is on a different filesystem
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	// If we've reached this point, the operation was successful
	return nil
}

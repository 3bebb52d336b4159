// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "REEFEY_DEBUG", validateEnvBool},

		// Quota gate
		{"quota.enabled", "REEFEY_QUOTA_ENABLED", validateEnvBool},
		{"quota.dailylimit", "REEFEY_QUOTA_DAILYLIMIT", validateEnvPositiveInt},

		// Vision model
		{"vision.provider", "REEFEY_VISION_PROVIDER", nil},
		{"vision.apikey", "REEFEY_VISION_APIKEY", nil},
		{"vision.model", "REEFEY_VISION_MODEL", nil},
		{"vision.timeout", "REEFEY_VISION_TIMEOUT", validateEnvPositiveInt},

		// Reconciler
		{"reconciler.confidencethreshold", "REEFEY_RECONCILER_THRESHOLD", validateEnvUnitInterval},
		{"reconciler.autocreatethreshold", "REEFEY_RECONCILER_AUTOCREATE_THRESHOLD", validateEnvUnitInterval},

		// Deployment site
		{"location.latitude", "REEFEY_LATITUDE", validateEnvLatitude},
		{"location.longitude", "REEFEY_LONGITUDE", validateEnvLongitude},

		// Integrations
		{"integrations.mqtt.broker", "REEFEY_MQTT_BROKER", nil},
		{"integrations.mqtt.username", "REEFEY_MQTT_USERNAME", nil},
		{"integrations.mqtt.password", "REEFEY_MQTT_PASSWORD", nil},
		{"integrations.telemetry.dsn", "REEFEY_TELEMETRY_DSN", nil},

		// Web server
		{"webserver.port", "REEFEY_PORT", validateEnvPort},

		// Database
		{"output.mysql.password", "REEFEY_MYSQL_PASSWORD", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	bindings := getEnvBindings()
	var warnings []string

	for _, binding := range bindings {
		// Bind the environment variable to the config key
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		// Validate the value if it's set and validation function is provided
		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	_, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f, TRUE/FALSE, T/F", value)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvUnitInterval(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0.0 || f > 1.0 {
		return fmt.Errorf("must be between 0.0 and 1.0, got %g", f)
	}
	return nil
}

func validateEnvLatitude(value string) error {
	lat, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid latitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %g", lat)
	}
	return nil
}

func validateEnvLongitude(value string) error {
	lng, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid longitude: %w", err)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %g", lng)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	// Set up key replacer for nested config keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind specific environment variables with validation
	// Return any errors to the caller for centralized handling
	return bindEnvVars()
}

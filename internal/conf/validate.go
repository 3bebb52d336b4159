// conf/validate.go

package conf

import (
	"errors"
	"fmt"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	// Validate Quota settings
	if err := validateQuotaSettings(&settings.Quota); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Vision settings
	if err := validateVisionSettings(&settings.Vision); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Reconciler settings
	if err := validateReconcilerSettings(&settings.Reconciler); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Annotate settings
	if err := validateAnnotateSettings(&settings.Annotate); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate ObjectStore settings
	if err := validateObjectStoreSettings(&settings.ObjectStore); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Location settings
	if err := validateLocationSettings(&settings.Location); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate WebServer settings
	if err := validateWebServerSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// Validate Output settings
	if err := validateOutputSettings(settings); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	// If there are any errors, return the ValidationError
	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateQuotaSettings validates the quota gate settings
func validateQuotaSettings(settings *QuotaSettings) error {
	if settings.Enabled && settings.DailyLimit < 1 {
		return errors.New("Quota daily limit must be at least 1 when the quota is enabled")
	}
	return nil
}

// validateVisionSettings validates the vision model settings
func validateVisionSettings(settings *VisionSettings) error {
	var errs []string

	switch settings.Provider {
	case "anthropic", "mock":
		// valid
	default:
		errs = append(errs, fmt.Sprintf("Vision provider must be 'anthropic' or 'mock', got '%s'", settings.Provider))
	}

	if settings.MaxTokens < 256 {
		errs = append(errs, "Vision maxtokens must be at least 256")
	}

	if settings.Timeout < 1 {
		errs = append(errs, "Vision timeout must be at least 1 second")
	}

	if settings.RequestsPerMinute < 0 {
		errs = append(errs, "Vision requestsperminute must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("Vision settings errors: %v", errs)
	}

	return nil
}

// validateReconcilerSettings validates the reconciliation settings
func validateReconcilerSettings(settings *ReconcilerSettings) error {
	var errs []string

	// Check if confidence threshold is within valid range
	if settings.ConfidenceThreshold < 0 || settings.ConfidenceThreshold > 1 {
		errs = append(errs, "Reconciler confidence threshold must be between 0 and 1")
	}

	// Check if auto-create threshold is within valid range
	if settings.AutoCreateThreshold < 0 || settings.AutoCreateThreshold > 1 {
		errs = append(errs, "Reconciler auto-create threshold must be between 0 and 1")
	}

	// Auto-creating below the skip threshold would persist detections the
	// pipeline otherwise discards
	if settings.AutoCreate && settings.AutoCreateThreshold < settings.ConfidenceThreshold {
		errs = append(errs, "Reconciler auto-create threshold must not be below the confidence threshold")
	}

	if settings.CacheTTL < 0 {
		errs = append(errs, "Reconciler cache TTL must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("Reconciler settings errors: %v", errs)
	}

	return nil
}

// validateAnnotateSettings validates the annotation rendering settings
func validateAnnotateSettings(settings *AnnotateSettings) error {
	if settings.Quality < 1 || settings.Quality > 100 {
		return fmt.Errorf("Annotate quality must be between 1 and 100, got %d", settings.Quality)
	}

	if settings.LineWidth < 1 || settings.LineWidth > 20 {
		return fmt.Errorf("Annotate line width must be between 1 and 20 pixels, got %d", settings.LineWidth)
	}

	return nil
}

// validateObjectStoreSettings validates the photo storage settings
func validateObjectStoreSettings(settings *ObjectStoreSettings) error {
	switch settings.Type {
	case "", "local":
		if settings.Local.Path == "" {
			return errors.New("ObjectStore local path is required for the local backend")
		}
	case "ftp":
		if settings.FTP.Host == "" {
			return errors.New("ObjectStore FTP host is required for the ftp backend")
		}
	case "sftp":
		if settings.SFTP.Host == "" {
			return errors.New("ObjectStore SFTP host is required for the sftp backend")
		}
		if settings.SFTP.Password == "" && settings.SFTP.KeyFile == "" {
			return errors.New("ObjectStore SFTP requires a password or a key file")
		}
	default:
		return fmt.Errorf("ObjectStore type must be 'local', 'ftp' or 'sftp', got '%s'", settings.Type)
	}

	return nil
}

// validateLocationSettings validates the deployment site coordinates
func validateLocationSettings(settings *LocationSettings) error {
	var errs []string

	// Check if longitude is within valid range
	if settings.Longitude < -180 || settings.Longitude > 180 {
		errs = append(errs, "Location longitude must be between -180 and 180")
	}

	// Check if latitude is within valid range
	if settings.Latitude < -90 || settings.Latitude > 90 {
		errs = append(errs, "Location latitude must be between -90 and 90")
	}

	if len(errs) > 0 {
		return fmt.Errorf("Location settings errors: %v", errs)
	}

	return nil
}

// validateOutputSettings validates the database output settings
func validateOutputSettings(settings *Settings) error {
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.New("Output requires either the SQLite or the MySQL backend to be enabled")
	}

	return nil
}

// validateWebServerSettings validates the WebServer-specific settings
func validateWebServerSettings(settings *Settings) error {
	if settings.WebServer.Enabled {
		// Check if port is provided when enabled
		if settings.WebServer.Port == "" {
			return errors.New("WebServer port is required when enabled")
		}
	}

	return nil
}

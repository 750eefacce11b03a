// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
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

	if err := validateTargetSettings(&settings.Target); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateMigrationSettings(&settings.Migration); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateTargetSettings checks the target API settings
func validateTargetSettings(settings *TargetSettings) error {
	if settings.BaseURL == "" {
		// Allowed: dry runs and jobs command work without a target
		return nil
	}

	u, err := url.Parse(settings.BaseURL)
	if err != nil || u.Host == "" || !strings.HasPrefix(u.Scheme, "http") {
		return fmt.Errorf("target.baseurl must be a valid http(s) URL, got %q", settings.BaseURL)
	}

	if settings.Timeout <= 0 {
		return fmt.Errorf("target.timeout must be positive, got %v", settings.Timeout)
	}

	return nil
}

// validateMigrationSettings checks the migration engine settings
func validateMigrationSettings(settings *MigrationSettings) error {
	if settings.BatchSize < 1 {
		return fmt.Errorf("migration.batchsize must be at least 1, got %d", settings.BatchSize)
	}

	if settings.ImageConcurrency < 1 || settings.ImageConcurrency > 32 {
		return fmt.Errorf("migration.imageconcurrency must be between 1 and 32, got %d", settings.ImageConcurrency)
	}

	if settings.MaxImagesPerProduct < 1 {
		return fmt.Errorf("migration.maximagesperproduct must be at least 1, got %d", settings.MaxImagesPerProduct)
	}

	if settings.DataDir == "" {
		return fmt.Errorf("migration.datadir must not be empty")
	}

	return nil
}

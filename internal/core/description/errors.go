package description

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrEmptyInput is returned when the description document is empty.
	ErrEmptyInput = errors.New("environment description is empty")

	// ErrInvalidYAML is returned when the document is not valid YAML.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrMissingName is returned when the required top-level name is absent.
	ErrMissingName = errors.New("environment name is missing")

	// ErrNoServices is returned when the description declares no services.
	ErrNoServices = errors.New("environment must define at least one service")

	// ErrServiceNoImage is returned when a service has no image reference.
	ErrServiceNoImage = errors.New("service must declare an image")

	// ErrInvalidPort is returned for an unparseable port declaration.
	ErrInvalidPort = errors.New("invalid port declaration")

	// ErrInvalidLimit is returned for an unparseable resource limit.
	ErrInvalidLimit = errors.New("invalid resource limit")
)

// ConfigError wraps errors with context about which part of the
// description is malformed.
type ConfigError struct {
	Field   string // e.g. "services.web.ports.http"
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

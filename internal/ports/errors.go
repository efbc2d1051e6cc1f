package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur while talking to collaborators.
var (
	// ErrPromptNotFound indicates that the evaluation source has no record
	// of the requested prompt.
	ErrPromptNotFound = errors.New("prompt not found")

	// ErrSourceUnavailable indicates that the evaluation source could not
	// be reached.
	ErrSourceUnavailable = errors.New("evaluation source unavailable")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// SourceError represents a failure reported by an EvaluationSource.
type SourceError struct {
	// PromptID is the prompt being fetched when the error occurred.
	PromptID string

	// Operation is the source operation that failed.
	Operation string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for SourceError.
func (e *SourceError) Error() string {
	return fmt.Sprintf("source error: operation=%s, prompt=%s, err=%v", e.Operation, e.PromptID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError creates a new SourceError with the given details.
func NewSourceError(promptID, operation string, err error) *SourceError {
	return &SourceError{
		PromptID:  promptID,
		Operation: operation,
		Err:       err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key or path involved.
	ConfigKey string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}

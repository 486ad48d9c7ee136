package config

import (
	"fmt"
	"strings"
)

// ConfigurationError is a structured error raised while loading or
// validating configuration.
type ConfigurationError struct {
	FilePath    string   // Full path to the file that caused the error
	Field       string   // Offending field, e.g. "storage.kind"
	ErrorType   string   // parse, validation or io
	Message     string   // Human-readable error message
	Suggestions []string // Actionable suggestions to fix the error
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	if ce.Field != "" {
		return fmt.Sprintf("%s: %s: %s", ce.FilePath, ce.Field, ce.Message)
	}
	return fmt.Sprintf("%s: %s", ce.FilePath, ce.Message)
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	parts := []string{
		fmt.Sprintf("Configuration Error in %s", ce.FilePath),
		fmt.Sprintf("  Type: %s", ce.ErrorType),
	}
	if ce.Field != "" {
		parts = append(parts, fmt.Sprintf("  Field: %s", ce.Field))
	}
	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}
	return strings.Join(parts, "\n")
}

package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDataValidation matches every DataValidationError via errors.Is.
	ErrDataValidation = errors.New("data validation error")
	// ErrConfiguration matches every ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("configuration error")
)

// DataValidationError reports an invalid project record or numeric field.
// ProjectID is empty when the offending field is not owned by a project
// (for example a resource capacity).
type DataValidationError struct {
	ProjectID string
	Field     string
	Reason    string
}

func (e *DataValidationError) Error() string {
	if e.ProjectID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("project %q: invalid %s: %s", e.ProjectID, e.Field, e.Reason)
}

// Is reports whether target is ErrDataValidation.
func (e *DataValidationError) Is(target error) bool {
	return target == ErrDataValidation
}

// ConfigurationError reports an invalid solve configuration, including quotas that
// are infeasible by construction.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewDataValidationError is a convenience constructor.
func NewDataValidationError(projectID, field, format string, args ...any) *DataValidationError {
	return &DataValidationError{ProjectID: projectID, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NewConfigurationError is a convenience constructor.
func NewConfigurationError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

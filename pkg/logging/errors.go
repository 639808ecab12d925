// roles/pkg/logging/errors.go

package logging

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeIntegrity   ErrorType = "INTEGRITY"
	ErrorTypeResolution  ErrorType = "RESOLUTION"
	ErrorTypeConsistency ErrorType = "CONSISTENCY"
	ErrorTypeStore       ErrorType = "STORE"
	ErrorTypeConfig      ErrorType = "CONFIG"
)

type RolesError struct {
	Type    ErrorType
	Message string
	Err     error
	Fields  map[string]interface{}
}

func (e *RolesError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *RolesError) Unwrap() error {
	return e.Err
}

func NewError(errType ErrorType, message string, err error, fields map[string]interface{}) *RolesError {
	return &RolesError{
		Type:    errType,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

// IsType reports whether err, or any error it wraps, is a RolesError of the
// given type.
func IsType(err error, errType ErrorType) bool {
	var rolesErr *RolesError
	if !errors.As(err, &rolesErr) {
		return false
	}
	return rolesErr.Type == errType
}

// WithField returns a copy of the error carrying one more field. Nested
// passes use it to attach the target/selector that was being processed.
func (e *RolesError) WithField(key string, value interface{}) *RolesError {
	fields := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	return &RolesError{Type: e.Type, Message: e.Message, Err: e.Err, Fields: fields}
}

// AddFields attaches fields to the RolesError in err's chain. An error that
// wraps a RolesError keeps its chain under the annotated copy; errors without
// one are returned unchanged.
func AddFields(err error, fields map[string]interface{}) error {
	var rolesErr *RolesError
	if !errors.As(err, &rolesErr) {
		return err
	}
	merged := make(map[string]interface{}, len(rolesErr.Fields)+len(fields))
	for k, v := range rolesErr.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	annotated := &RolesError{Type: rolesErr.Type, Message: rolesErr.Message, Err: rolesErr.Err, Fields: merged}
	if err != error(rolesErr) {
		annotated.Err = err
	}
	return annotated
}

func LogError(logger zerolog.Logger, err error) {
	var rolesErr *RolesError
	if !errors.As(err, &rolesErr) {
		logger.Error().Err(err).Msg(err.Error())
		return
	}

	event := logger.Error().Err(rolesErr.Err).
		Str("error_type", string(rolesErr.Type)).
		Str("message", rolesErr.Message)

	for k, v := range rolesErr.Fields {
		event = event.Interface(k, v)
	}

	event.Msg(rolesErr.Message)
}

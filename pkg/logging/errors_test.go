// roles/pkg/logging/errors_test.go

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name        string
		errType     ErrorType
		message     string
		err         error
		fields      map[string]interface{}
		expectedMsg string
	}{
		{
			name:        "Validation error",
			errType:     ErrorTypeValidation,
			message:     "logical node has no children",
			err:         errors.New("empty children"),
			fields:      map[string]interface{}{"path": "0.1"},
			expectedMsg: "VALIDATION: logical node has no children",
		},
		{
			name:        "Integrity error",
			errType:     ErrorTypeIntegrity,
			message:     "duplicate selector",
			err:         nil,
			fields:      nil,
			expectedMsg: "INTEGRITY: duplicate selector",
		},
		{
			name:        "Consistency error",
			errType:     ErrorTypeConsistency,
			message:     "re-diff is not empty",
			err:         errors.New("lost permission"),
			fields:      map[string]interface{}{"role": "MANAGER"},
			expectedMsg: "CONSISTENCY: re-diff is not empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rolesErr := NewError(tt.errType, tt.message, tt.err, tt.fields)

			assert.Equal(t, tt.errType, rolesErr.Type)
			assert.Equal(t, tt.message, rolesErr.Message)
			assert.Equal(t, tt.err, rolesErr.Err)
			assert.Equal(t, tt.fields, rolesErr.Fields)
			assert.Equal(t, tt.expectedMsg, rolesErr.Error())

			if tt.err != nil {
				assert.Equal(t, tt.err, rolesErr.Unwrap())
			} else {
				assert.Nil(t, rolesErr.Unwrap())
			}
		})
	}
}

func TestLogError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected map[string]interface{}
	}{
		{
			name: "RolesError with all fields",
			err: &RolesError{
				Type:    ErrorTypeResolution,
				Message: "Test error",
				Err:     errors.New("underlying error"),
				Fields: map[string]interface{}{
					"key1": "value1",
					"key2": 42,
				},
			},
			expected: map[string]interface{}{
				"error":      "underlying error",
				"error_type": "RESOLUTION",
				"message":    "Test error",
				"key1":       "value1",
				"key2":       float64(42),
				"level":      "error",
			},
		},
		{
			name: "RolesError without underlying error",
			err: &RolesError{
				Type:    ErrorTypeIntegrity,
				Message: "Arity mismatch",
				Fields: map[string]interface{}{
					"line": 10,
				},
			},
			expected: map[string]interface{}{
				"error_type": "INTEGRITY",
				"message":    "Arity mismatch",
				"line":       float64(10),
				"level":      "error",
			},
		},
		{
			name: "Standard error",
			err:  errors.New("standard error"),
			expected: map[string]interface{}{
				"error":   "standard error",
				"message": "standard error",
				"level":   "error",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mockLogger := zerolog.New(&buf)

			LogError(mockLogger, tt.err)

			var logged map[string]interface{}
			err := json.Unmarshal(buf.Bytes(), &logged)
			assert.NoError(t, err)

			// Check that all expected fields are present
			for k, v := range tt.expected {
				assert.Equal(t, v, logged[k], "Mismatch for key %s", k)
			}

			// Check that no unexpected fields are present
			for k := range logged {
				_, expected := tt.expected[k]
				if !expected && k != "time" {
					t.Errorf("Unexpected key in logged data: %s", k)
				}
			}

			// Optionally check for the presence of a timestamp
			if _, hasTime := logged["time"]; hasTime {
				assert.Contains(t, logged, "time", "Timestamp should be present if included")
			}
		})
	}
}

func TestIsType(t *testing.T) {
	base := NewError(ErrorTypeValidation, "bad node", nil, nil)
	wrapped := fmt.Errorf("normalizing: %w", base)

	assert.True(t, IsType(base, ErrorTypeValidation))
	assert.True(t, IsType(wrapped, ErrorTypeValidation))
	assert.False(t, IsType(wrapped, ErrorTypeIntegrity))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeValidation))
}

func TestWithField(t *testing.T) {
	base := NewError(ErrorTypeIntegrity, "duplicate selector", nil, map[string]interface{}{"target": "0x01"})
	withSelector := base.WithField("selector", "0xa9059cbb")

	assert.Equal(t, map[string]interface{}{"target": "0x01"}, base.Fields)
	assert.Equal(t, "0xa9059cbb", withSelector.Fields["selector"])
	assert.Equal(t, "0x01", withSelector.Fields["target"])
	assert.Equal(t, base.Error(), withSelector.Error())
}

func TestAddFields(t *testing.T) {
	base := NewError(ErrorTypeValidation, "bad node", nil, map[string]interface{}{"path": "0"})

	t.Run("direct", func(t *testing.T) {
		err := AddFields(base, map[string]interface{}{"target": "0x01"})
		var rolesErr *RolesError
		assert.True(t, errors.As(err, &rolesErr))
		assert.Equal(t, map[string]interface{}{"path": "0", "target": "0x01"}, rolesErr.Fields)
		assert.Nil(t, rolesErr.Err)
		assert.Equal(t, map[string]interface{}{"path": "0"}, base.Fields)
	})

	t.Run("wrapped", func(t *testing.T) {
		wrapped := fmt.Errorf("normalizing: %w", base)
		err := AddFields(wrapped, map[string]interface{}{"selector": "0xa9059cbb"})
		var rolesErr *RolesError
		assert.True(t, errors.As(err, &rolesErr))
		assert.Equal(t, "0xa9059cbb", rolesErr.Fields["selector"])
		assert.Equal(t, "0", rolesErr.Fields["path"])
		assert.ErrorIs(t, err, wrapped)
		assert.ErrorIs(t, err, base)
		assert.True(t, IsType(err, ErrorTypeValidation))
	})

	t.Run("plain", func(t *testing.T) {
		plain := errors.New("plain")
		assert.Equal(t, plain, AddFields(plain, map[string]interface{}{"target": "0x01"}))
	})
}

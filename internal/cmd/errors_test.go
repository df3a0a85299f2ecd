package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opmodel/wbundle/internal/bundle"
	oerrors "github.com/opmodel/wbundle/internal/errors"
	"github.com/opmodel/wbundle/internal/partition"
)

func TestExitCodeFromError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: ExitSuccess,
		},
		{
			name:     "validation error",
			err:      oerrors.ErrValidation,
			expected: ExitValidationError,
		},
		{
			name:     "detailed validation error",
			err:      oerrors.NewValidationError("bad format", "wbundle.cue", "format", ""),
			expected: ExitValidationError,
		},
		{
			name:     "permission error",
			err:      oerrors.Wrap(oerrors.ErrPermission, "could not write"),
			expected: ExitPermissionDenied,
		},
		{
			name:     "not found error",
			err:      oerrors.NewNotFoundError("configuration file not found", "x.cue", ""),
			expected: ExitNotFound,
		},
		{
			name:     "host build error",
			err:      &bundle.BuildError{},
			expected: ExitBuildError,
		},
		{
			name: "sub-build error",
			err: fmt.Errorf("run: %w", &bundle.BuildError{Failures: []*partition.SubBuildError{
				{Source: "src/worker.ts", Cause: errors.New("boom")},
			}}),
			expected: ExitBuildError,
		},
		{
			name:     "unknown error returns general error",
			err:      errors.New("something went wrong"),
			expected: ExitGeneralError,
		},
		{
			name:     "exit error with custom code",
			err:      NewExitError(errors.New("custom error"), 42),
			expected: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCodeFromError(tt.err))
		})
	}
}

func TestExitError(t *testing.T) {
	originalErr := errors.New("original error")
	exitErr := NewExitError(originalErr, ExitValidationError)

	t.Run("Error returns wrapped error message", func(t *testing.T) {
		assert.Equal(t, "original error", exitErr.Error())
	})

	t.Run("Unwrap returns original error", func(t *testing.T) {
		assert.Equal(t, originalErr, errors.Unwrap(exitErr))
	})

	t.Run("printed error keeps the code", func(t *testing.T) {
		p := printedError(oerrors.Wrap(oerrors.ErrBuild, "x"))
		assert.True(t, p.Printed)
		assert.Equal(t, ExitBuildError, p.Code)
	})
}

func TestExitCodeName(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{ExitSuccess, "Success"},
		{ExitGeneralError, "General Error"},
		{ExitValidationError, "Validation Error"},
		{ExitPermissionDenied, "Permission Denied"},
		{ExitNotFound, "Not Found"},
		{ExitBuildError, "Build Error"},
		{999, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCodeName(tt.code))
		})
	}
}

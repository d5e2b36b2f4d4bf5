package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefactorError_Error(t *testing.T) {
	tests := []struct {
		name     string
		context  string
		cause    error
		expected string
	}{
		{
			name:     "simple error",
			context:  "encoding level 2",
			cause:    errors.New("plane count mismatch"),
			expected: "encoding level 2: plane count mismatch",
		},
		{
			name:     "empty context",
			context:  "",
			cause:    errors.New("some error"),
			expected: ": some error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &RefactorError{Context: tt.context, Cause: tt.cause}
			require.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestWrapError(t *testing.T) {
	require.Nil(t, WrapError("some operation", nil))

	cause := errors.New("IO error")
	err := WrapError("writing fragment", cause)
	require.NotNil(t, err)

	var rerr *RefactorError
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "writing fragment", rerr.Context)
	require.Equal(t, cause, rerr.Cause)
	require.Equal(t, cause, errors.Unwrap(err))
}

func TestWrapError_ChainedWrapping(t *testing.T) {
	baseErr := errors.New("base error")
	level1 := WrapError("level 1", baseErr)
	level2 := WrapError("level 2", level1)
	level3 := WrapError("level 3", level2)

	msg := level3.Error()
	require.Contains(t, msg, "level 3")
	require.Contains(t, msg, "level 1")
	require.True(t, errors.Is(level3, baseErr))

	var rerr *RefactorError
	require.True(t, errors.As(errors.Unwrap(level3), &rerr))
	require.Equal(t, "level 2", rerr.Context)
}

func TestConfigError(t *testing.T) {
	err := ConfigErrorf("target level", "%d exceeds maximum %d", 5, 3)
	require.EqualError(t, err, "invalid target level: 5 exceeds maximum 3")
	require.True(t, errors.Is(err, ErrConfiguration))
	require.False(t, errors.Is(err, ErrPersistence))

	wrapped := WrapError("refactoring temperature", err)
	require.True(t, errors.Is(wrapped, ErrConfiguration))

	var cerr *ConfigError
	require.True(t, errors.As(wrapped, &cerr))
	require.Equal(t, "target level", cerr.Param)
}

func TestInvariantErrorf(t *testing.T) {
	err := InvariantErrorf("level %d error increases at plane %d", 1, 4)
	require.True(t, errors.Is(err, ErrEncodingInvariant))
	require.Contains(t, err.Error(), "level 1 error increases at plane 4")
}

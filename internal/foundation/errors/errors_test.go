package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifiedError_ErrorString(t *testing.T) {
	err := SpawnError("binary not found").WithContext("bin", "docs").Build()
	require.Contains(t, err.Error(), "spawn")
	require.Contains(t, err.Error(), "binary not found")
}

func TestClassifiedError_Unwrap(t *testing.T) {
	cause := errors.New("exec: not found")
	err := WrapError(cause, CategorySpawn, "start restore").Build()
	require.ErrorIs(t, err, cause)
}

func TestAsClassified(t *testing.T) {
	err := fmt.Errorf("outer: %w", BuildError("exit 2").Build())
	ce, ok := AsClassified(err)
	require.True(t, ok)
	require.Equal(t, CategoryBuild, ce.Category())
	require.Equal(t, "exit 2", ce.Message())
}

func TestAsClassified_PlainError(t *testing.T) {
	_, ok := AsClassified(errors.New("plain"))
	require.False(t, ok)
}

func TestBuilder_Defaults(t *testing.T) {
	err := ProcessError("wait failed").Build()
	require.Equal(t, SeverityError, err.Severity())
	require.Equal(t, RetryNever, err.RetryStrategy())
	require.False(t, err.IsFatal())
}

func TestBuilder_FatalAndContext(t *testing.T) {
	err := ValidationError("repo path required").WithContext("field", "repo").Build()
	require.True(t, err.IsFatal())
	require.Equal(t, "repo", err.Context()["field"])
}

func TestClassifiedError_Is(t *testing.T) {
	a := RestoreError("exit 3").Build()
	b := RestoreError("exit 3").Build()
	require.ErrorIs(t, a, b)
}

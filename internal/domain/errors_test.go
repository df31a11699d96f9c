package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Monitor.Launch", ErrLaunchFailed, "project 'p1'")
	want := "Monitor.Launch: project 'p1': task launch failed"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Monitor.Restart", ErrNoTask, "")
	want := "Monitor.Restart: no task to restart"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Consumer.Start", ErrInvalidInput, "task id is required")
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is should match ErrInvalidInput")
	}
}

func TestWrapOp(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))

	err := WrapOp("api.List", ErrNotFound)
	assert.EqualError(t, err, "api.List: not found")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnectionError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ConnectionError{TaskID: "t1", Err: cause}

	assert.Equal(t, "task t1: log stream connection failed: connection reset", err.Error())
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, cause)

	bare := &ConnectionError{TaskID: "t2"}
	assert.Equal(t, "task t2: log stream connection failed", bare.Error())
	assert.ErrorIs(t, bare, ErrConnection)
}

// --- ErrorCode tests ---

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"unknown", errors.New("x"), CodeUnknown},
		{"direct", ErrNotFound, CodeNotFound},
		{"wrapped", fmt.Errorf("get: %w", ErrServer), CodeServer},
		{"domain error", NewDomainError("op", ErrCircuitOpen, ""), CodeCircuitOpen},
		{"connection error", &ConnectionError{TaskID: "t", Err: errors.New("eof")}, CodeConnection},
		{"launch wins over cause", fmt.Errorf("%w: %w", ErrLaunchFailed, ErrNotFound), CodeLaunchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}

func TestDomainErrorCode(t *testing.T) {
	err := NewDomainError("Project.Validate", ErrInvalidInput, "bad")
	assert.Equal(t, CodeInvalidInput, err.Code())
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(&ConnectionError{TaskID: "t"}))
	assert.True(t, IsRetryableError(fmt.Errorf("x: %w", ErrCircuitOpen)))
	assert.False(t, IsRetryableError(ErrInvalidInput))
}

func TestProjectValidate(t *testing.T) {
	valid := Project{Name: "web", RepoImageName: "team/web-app", LocalImageName: "web_app.v2"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		p    Project
	}{
		{"missing name", Project{RepoImageName: "web"}},
		{"uppercase local", Project{Name: "x", RepoImageName: "web", LocalImageName: "Web"}},
		{"slash in local", Project{Name: "x", RepoImageName: "web", LocalImageName: "a/b"}},
		{"bad repo part", Project{Name: "x", RepoImageName: "team//web"}},
		{"trailing separator", Project{Name: "x", RepoImageName: "web-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.p.Validate(), ErrInvalidInput)
		})
	}
}

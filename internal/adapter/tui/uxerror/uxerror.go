// Package uxerror translates raw errors into user-friendly messages with
// recovery hints.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"buildwatch/internal/adapter/tui/theme"
	"buildwatch/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Connection Refused"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text
}

// Render formats the FriendlyError for display.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

// Sentinels are checked before string patterns; ErrLaunchFailed is not
// matched on its own so its cause picks the message.
var patterns = []errorPattern{
	{
		match:   is(domain.ErrCircuitOpen),
		produce: constantError("Server Unavailable", "Recent requests kept failing, so new ones are paused.", []string{"Wait for the breaker timeout and retry", "Check that the build server is running"}),
	},
	{
		match:   is(domain.ErrNotFound),
		produce: detailError("Not Found", []string{"Check the id with the matching list command"}),
	},
	{
		match:   is(domain.ErrInvalidInput),
		produce: detailError("Invalid Input", []string{"Check the command arguments or input file"}),
	},
	{
		match:   is(domain.ErrConfigLoad),
		produce: detailError("Configuration Error", []string{"Check the file passed with --config", "Remove the file to fall back to defaults"}),
	},
	{
		match:   is(domain.ErrNoTask),
		produce: constantError("Nothing To Restart", "No task has been launched or attached yet.", nil),
	},
	{
		match:   is(domain.ErrConnection),
		produce: detailError("Log Stream Failed", []string{"Check that the task id exists", "Press r to reconnect"}),
	},

	{
		match:   containsAny("connection refused", "dial tcp", "no such host"),
		produce: constantError("Connection Failed", "Could not reach the build server.", []string{"Verify server.base_url in config", "Check that the server is running"}),
	},
	{
		match:   containsAny("deadline exceeded", "timeout", "context deadline"),
		produce: constantError("Request Timed Out", "The server took too long to answer.", []string{"Check your network connection", "Increase server.timeout in config"}),
	},
	{
		match:   is(domain.ErrServer),
		produce: detailError("Server Error", []string{"Check the build server logs"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}

	for _, p := range patterns {
		if p.match(err) {
			fe := p.produce(err)
			if errors.Is(err, domain.ErrLaunchFailed) {
				fe.Title = "Launch Failed: " + fe.Title
			}
			return fe
		}
	}

	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with BUILDWATCH_LOGGER_LEVEL=debug for more details"},
		Raw:     err.Error(),
	}
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{Title: title, Message: message, Hints: hints, Raw: err.Error()}
	}
}

// detailError uses the error text itself as the message.
func detailError(title string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{Title: title, Message: err.Error(), Hints: hints, Raw: err.Error()}
	}
}

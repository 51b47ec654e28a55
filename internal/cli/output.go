package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"taskdesk/internal/tasks"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // rejected input such as missing required fields
	ExitCommandError = 2 // bad flags, unreadable files, storage failures
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Validation and lookup
// failures are ExitFailure; decode and persistence failures are
// ExitCommandError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var (
		decErr tasks.DecodeError
		perErr tasks.PersistenceError
	)
	if errors.As(err, &decErr) || errors.As(err, &perErr) {
		return ExitCommandError
	}
	return ExitFailure
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *ErrorOut `json:"error,omitempty"`
}

type ErrorOut struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// output writes command results as text or as a JSON envelope.
type output struct {
	format string
	w      io.Writer
}

func (o output) json() bool {
	return o.format == "json"
}

// emit writes data as JSON, or calls text for human output.
func (o output) emit(data any, text func(w io.Writer)) error {
	if o.json() {
		return json.NewEncoder(o.w).Encode(Response{Status: "ok", Data: data})
	}
	text(o.w)
	return nil
}

// WriteError reports err on w in the given format.
func WriteError(w io.Writer, format string, err error) {
	if format == "json" {
		_ = json.NewEncoder(w).Encode(Response{
			Status: "error",
			Error:  &ErrorOut{Code: GetExitCode(err), Message: err.Error()},
		})
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitGeneral = 1
	ExitConfig  = 2
	ExitSpec    = 3
	ExitDB      = 4
)

// ExitError wraps an error with the process exit code.
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

func (e *ExitError) Unwrap() error { return e.Err }

// ConfigError returns an ExitError with the ExitConfig code.
func ConfigError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Err: err}
}

// SpecError returns an ExitError with the ExitSpec code.
func SpecError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitSpec, Message: msg, Err: err}
}

// DBError returns an ExitError with the ExitDB code.
func DBError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitDB, Message: msg, Err: err}
}

// GeneralError returns an ExitError with the ExitGeneral code.
func GeneralError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitGeneral, Message: msg, Err: err}
}

// PrintError writes err to w and returns the exit code it maps to.
func PrintError(w io.Writer, err error) int {
	red := color.New(color.FgRed, color.Bold)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		red.Fprint(w, "Error: ")
		fmt.Fprintln(w, exitErr.Error())
		return exitErr.Code
	}
	red.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
	return ExitGeneral
}

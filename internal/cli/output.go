package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"rewardjar-service/internal/domain/wallet"
)

// Exit codes for walletctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the queue itself failed (claim, requeue)
	ExitCommandError = 2 // bad flags, unreachable database
)

// ExitError carries the process exit code for an error.
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

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as JSON or text.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) json(v interface{}) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) BatchResult(r *wallet.BatchResult) error {
	if f.Format == "json" {
		return f.json(r)
	}
	_, err := fmt.Fprintf(f.Writer,
		"claimed=%d succeeded=%d failed=%d retried=%d dead=%d coalesced=%d requeued=%d duration=%s\n",
		r.Claimed, r.Succeeded, r.Failed, r.Retried, r.Dead, r.Coalesced, r.Requeued, r.Duration.Round(time.Millisecond))
	return err
}

func (f *OutputFormatter) QueueList(r *wallet.QueueListResponse) error {
	if f.Format == "json" {
		return f.json(r)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-26s  %-6s  %-10s  %-7s  %-20s  %s\n", "ID", "PLAT", "STATUS", "ATTEMPT", "SCHEDULED", "ERROR")
	for _, item := range r.Items {
		errMsg := ""
		if item.ErrorMessage != nil {
			errMsg = *item.ErrorMessage
		}
		fmt.Fprintf(&b, "%-26s  %-6s  %-10s  %d/%-5d  %-20s  %s\n",
			item.ID, item.Platform, item.Status, item.Attempt, item.MaxAttempts,
			item.ScheduledAt.UTC().Format(time.RFC3339), errMsg)
	}
	fmt.Fprintf(&b, "page %d/%d, %d items\n", r.Page, r.TotalPages, r.Total)

	_, err := io.WriteString(f.Writer, b.String())
	return err
}

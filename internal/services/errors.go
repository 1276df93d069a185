package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSizeLimit     = errors.New("size limit exceeded")
	ErrRemote        = errors.New("remote store error")
	ErrLocalStore    = errors.New("local store error")
	ErrExtraction    = errors.New("extraction error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// EventType maps err to the event_type value used in structured logs.
func EventType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrSizeLimit):
		return "size_limit"
	case errors.Is(err, ErrRemote):
		return "remote_failure"
	case errors.Is(err, ErrLocalStore):
		return "local_store_failure"
	case errors.Is(err, ErrExtraction):
		return "extraction_failure"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "unknown"
	}
}

// Hint returns an operator-facing next step for err.
func Hint(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "item stays queued and resumes in the next session"
	case errors.Is(err, ErrSizeLimit):
		return "raise queue.max_persist_mib to make large items resumable"
	case errors.Is(err, ErrRemote):
		return "check remote credentials and connectivity; the item retries next session"
	case errors.Is(err, ErrLocalStore):
		return "check free space and permissions on paths.state_dir"
	case errors.Is(err, ErrExtraction):
		return "verify the source file is readable"
	case errors.Is(err, ErrConfiguration):
		return "review the configuration file (ferry config init creates a sample)"
	default:
		return "check logs for details"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

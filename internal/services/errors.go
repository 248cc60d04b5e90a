package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFetch marks network or parse failures while retrieving source
	// content. Not retried internally; callers may re-issue the request.
	ErrFetch = errors.New("fetch error")
	// ErrStructuringDegraded marks a structuring call that fell back to the
	// minimal degraded recipe. The accompanying result is still usable.
	ErrStructuringDegraded = errors.New("structuring degraded")
	// ErrSynthesis marks a single clip synthesis failure. Absorbed by the
	// synthesizer; surfaces only in logs.
	ErrSynthesis = errors.New("synthesis error")
	// ErrConflict marks a duplicate source URL for the same owner.
	ErrConflict = errors.New("conflict")
	// ErrPersistence marks storage failures that abort the operation.
	ErrPersistence = errors.New("persistence error")
	// ErrOwnership marks a missing or mismatched identity on an operation
	// that requires one.
	ErrOwnership = errors.New("ownership error")
	// ErrValidation marks rejected caller input.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration discovered at runtime.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures worth retrying at the call site.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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

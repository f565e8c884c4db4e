// Package services defines the error taxonomy shared by every stage call
// site and the bounded retry helper used where transient failures are
// worth re-attempting.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound marks missing-input failures: a required run id or
	// upstream artifact is absent. Never retryable.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks structural failures such as a malformed
	// artifact or a rejected request (4xx). Never retryable.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks misconfiguration detected at call time.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks likely-transient external failures (network
	// errors, 5xx responses). Retryable.
	ErrTransient = errors.New("transient failure")
	// ErrTimeout marks an external call that exceeded its deadline.
	// Retryable.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
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

// Retryable reports whether err is classified as worth re-attempting.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return false
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout):
		return true
	default:
		return false
	}
}

// Retry runs op up to attempts times with a fixed delay between attempts,
// stopping early on success, on a non-retryable error, or when ctx is
// done.
func Retry(ctx context.Context, attempts int, delay time.Duration, op func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) || attempt == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
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

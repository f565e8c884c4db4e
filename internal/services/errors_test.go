package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"newscastd/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	err := services.Wrap(services.ErrNotFound, "details", "load queue", "news-list.json missing", nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound marker, got %v", err)
	}
	if got := err.Error(); got != "not found: details: load queue: news-list.json missing" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "audio", "synthesize", "", errors.New("boom"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected default ErrTransient marker, got %v", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		marker error
		want   bool
	}{
		{services.ErrTransient, true},
		{services.ErrTimeout, true},
		{services.ErrNotFound, false},
		{services.ErrValidation, false},
		{services.ErrConfiguration, false},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "stage", "op", "", nil)
		if got := services.Retryable(err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.marker, got, tc.want)
		}
	}
	if services.Retryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
	if services.Retryable(errors.New("untagged")) {
		t.Fatal("untagged error must not be retryable")
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := services.Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return services.Wrap(services.ErrValidation, "stage", "op", "", nil)
	})
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := services.Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return services.Wrap(services.ErrTransient, "stage", "op", "", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

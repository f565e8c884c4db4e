package stages_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"newscastd/internal/logging"
	"newscastd/internal/services"
	"newscastd/internal/stages"
)

func newTestClient(t *testing.T, handler http.Handler) (*stages.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := stages.NewClientWith(server.URL, server.URL, server.Client(), logging.NewNop())
	return client, server
}

func TestCrawlTopicsReturnsRunID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/topics" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"run_id":"2026-08-30T09-05-00-000Z","timing_ms":812,"message":"10 topics"}`))
	}))

	result, err := client.CrawlTopics(context.Background())
	if err != nil {
		t.Fatalf("CrawlTopics: %v", err)
	}
	if !result.Success || result.RunID != "2026-08-30T09-05-00-000Z" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCrawlTopicsMissingRunIDIsValidationError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	_, err := client.CrawlTopics(context.Background())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCrawlDetailCarriesParams(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("run-id") != "run-1" || query.Get("topic-index") != "4" || query.Get("news-id") != "n-17" {
			t.Errorf("unexpected query %v", query)
		}
		_, _ = w.Write([]byte(`{"success":true,"news_id":"n-17","size":2048,"timing_ms":120}`))
	}))

	result, err := client.CrawlDetail(context.Background(), "run-1", 4, "n-17")
	if err != nil {
		t.Fatalf("CrawlDetail: %v", err)
	}
	if result.Size != 2048 {
		t.Fatalf("size = %d, want 2048", result.Size)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusBadRequest, services.ErrValidation},
		{http.StatusBadGateway, services.ErrTransient},
		{http.StatusInternalServerError, services.ErrTransient},
	}
	for _, tc := range cases {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		_, err := client.GenerateNews(context.Background(), "run-1", 1)
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected marker %v, got %v", tc.status, tc.marker, err)
		}
		if retryable := services.Retryable(err); retryable != (tc.status >= 500) {
			t.Fatalf("status %d: retryable = %v", tc.status, retryable)
		}
	}
}

func TestSynthesizeLineReturnsAudioBytes(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x64}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio-line" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))

	data, err := client.SynthesizeLine(context.Background(), "run-1", 2, 1, "Good evening.", "voice-a")
	if err != nil {
		t.Fatalf("SynthesizeLine: %v", err)
	}
	if string(data) != string(audio) {
		t.Fatalf("unexpected audio payload %v", data)
	}
}

package finalize_test

import (
	"context"
	"testing"

	"newscastd/internal/artifact"
	"newscastd/internal/finalize"
	"newscastd/internal/logging"
	"newscastd/internal/testsupport"
)

func TestRunPromotesWhenAllTracksValid(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenState(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	ctx := context.Background()

	const topics = 10
	const previousRun = "2026-08-29T09-05-00-000Z"
	const runID = "2026-08-30T09-05-00-000Z"
	if _, err := store.PublishRun(ctx, previousRun); err != nil {
		t.Fatalf("seed published run: %v", err)
	}
	for i := 1; i <= topics; i++ {
		testsupport.SeedArtifact(t, artifacts, artifact.FinalAudioKey(runID, i), testsupport.MP3Frame(4096))
	}

	fin := finalize.New(store, artifacts, topics, logging.NewNop())
	outcome, err := fin.Run(ctx, runID, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !outcome.Promoted {
		t.Fatal("run with all tracks valid should be promoted")
	}
	if outcome.PreviousPublished != previousRun {
		t.Fatalf("previous published = %q, want %q", outcome.PreviousPublished, previousRun)
	}

	published, err := store.PublishedRunID(ctx)
	if err != nil || published != runID {
		t.Fatalf("published = %q err=%v, want %q", published, err, runID)
	}
}

func TestRunWithholdsPromotionOnSingleInvalidTrack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenState(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	ctx := context.Background()

	const topics = 10
	const previousRun = "2026-08-29T09-05-00-000Z"
	const runID = "2026-08-30T09-05-00-000Z"
	if _, err := store.PublishRun(ctx, previousRun); err != nil {
		t.Fatalf("seed published run: %v", err)
	}
	for i := 1; i <= topics; i++ {
		data := testsupport.MP3Frame(4096)
		if i == 7 {
			// A RIFF header is not an MPEG frame.
			copy(data, []byte("RIFF"))
		}
		testsupport.SeedArtifact(t, artifacts, artifact.FinalAudioKey(runID, i), data)
	}

	fin := finalize.New(store, artifacts, topics, logging.NewNop())
	outcome, err := fin.Run(ctx, runID, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Promoted {
		t.Fatal("run with an invalid track must not be promoted")
	}
	if outcome.ValidCount != topics-1 {
		t.Fatalf("valid count = %d, want %d", outcome.ValidCount, topics-1)
	}
	for _, result := range outcome.Results {
		if result.TopicIndex == 7 && result.Valid {
			t.Fatal("topic 7 should be reported invalid")
		}
		if result.TopicIndex != 7 && !result.Valid {
			t.Fatalf("topic %d unexpectedly invalid: %s", result.TopicIndex, result.Reason)
		}
	}

	published, err := store.PublishedRunID(ctx)
	if err != nil || published != previousRun {
		t.Fatalf("published = %q err=%v, want untouched %q", published, err, previousRun)
	}
}

func TestRunReportsMissingAndTruncatedTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenState(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	ctx := context.Background()

	const runID = "run-1"
	testsupport.SeedArtifact(t, artifacts, artifact.FinalAudioKey(runID, 1), testsupport.MP3Frame(4096))
	// Topic 2 was cut off mid-header.
	testsupport.SeedArtifact(t, artifacts, artifact.FinalAudioKey(runID, 2), []byte{0xFF, 0xFB})
	// Topic 3 never merged.
	// Topic 4 is short but carries a complete frame header, which is enough.
	testsupport.SeedArtifact(t, artifacts, artifact.FinalAudioKey(runID, 4), testsupport.MP3Frame(16))

	fin := finalize.New(store, artifacts, 4, logging.NewNop())
	outcome, err := fin.Run(ctx, runID, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Promoted || outcome.ValidCount != 2 {
		t.Fatalf("outcome = %+v, want topics 1 and 4 valid", outcome)
	}
	if outcome.Results[1].Valid || outcome.Results[1].Reason != "invalid header" {
		t.Fatalf("truncated track result = %+v", outcome.Results[1])
	}
	if outcome.Results[2].Valid || outcome.Results[2].Reason != "not found" {
		t.Fatalf("missing track result = %+v", outcome.Results[2])
	}
	if !outcome.Results[3].Valid {
		t.Fatalf("short valid track result = %+v", outcome.Results[3])
	}
}

func TestRunDryRunNeverPromotes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenState(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	ctx := context.Background()

	const runID = "run-2"
	for i := 1; i <= 2; i++ {
		testsupport.SeedArtifact(t, artifacts, artifact.FinalAudioKey(runID, i), testsupport.MP3Frame(4096))
	}

	fin := finalize.New(store, artifacts, 2, logging.NewNop())
	outcome, err := fin.Run(ctx, runID, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Promoted {
		t.Fatal("dry run must not promote")
	}
	published, err := store.PublishedRunID(ctx)
	if err != nil || published != "" {
		t.Fatalf("published = %q err=%v, want empty", published, err)
	}
}

func TestSniffRejectsZeroedHeader(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenState(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)

	// Plenty of bytes but all zero, so no frame sync.
	data := make([]byte, 2048)
	testsupport.SeedArtifact(t, artifacts, artifact.FinalAudioKey("run-3", 1), data)

	fin := finalize.New(store, artifacts, 1, logging.NewNop())
	outcome, err := fin.Run(context.Background(), "run-3", false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Results[0].Valid {
		t.Fatal("zeroed header should fail frame sync check")
	}
}

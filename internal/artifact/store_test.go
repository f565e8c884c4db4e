package artifact_test

import (
	"context"
	"errors"
	"testing"

	"newscastd/internal/artifact"
	"newscastd/internal/services"
)

func TestPutGetHead(t *testing.T) {
	store, err := artifact.NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	ctx := context.Background()

	key := artifact.FinalAudioKey("run-1", 3)
	payload := []byte{0xFF, 0xFB, 0x90, 0x64, 0x01, 0x02}
	if err := store.Put(ctx, key, payload); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("round trip mismatch")
	}

	size, ok, err := store.Head(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Head: ok=%v err=%v", ok, err)
	}
	if size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", size, len(payload))
	}

	head, err := store.ReadFirst(ctx, key, 4)
	if err != nil {
		t.Fatalf("ReadFirst: %v", err)
	}
	if len(head) != 4 || head[0] != 0xFF || head[1] != 0xFB {
		t.Fatalf("unexpected head bytes %v", head)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	store, err := artifact.NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	_, err = store.Get(context.Background(), artifact.NewsListKey("absent-run"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, ok, err := store.Head(context.Background(), artifact.NewsListKey("absent-run"))
	if err != nil || ok {
		t.Fatalf("Head on missing key: ok=%v err=%v", ok, err)
	}
}

func TestInvalidKeysRejected(t *testing.T) {
	store, err := artifact.NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	for _, key := range []string{"", "..", "../escape", "/abs/path"} {
		if err := store.Put(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestKeyLayout(t *testing.T) {
	cases := []struct{ got, want string }{
		{artifact.NewsListKey("r"), "run/r/news-list.json"},
		{artifact.NewsDetailKey("r", 3, "n-1"), "run/r/topic-03/news/n-1.json"},
		{artifact.ConsolidatedNewsKey("r", 10), "run/r/topic-10/news.json"},
		{artifact.ScriptKey("r", 1), "run/r/topic-01/newscast-script.json"},
		{artifact.AudioFileKey("r", 2, "001-host1.mp3"), "run/r/topic-02/audio/001-host1.mp3"},
		{artifact.AudioManifestKey("r", 2), "run/r/topic-02/audio/audio-files.json"},
		{artifact.FinalAudioKey("r", 7), "run/r/topic-07/newscast.mp3"},
		{artifact.BatchMetricsKey("r", 2), "run/r/news-details-002.json"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("key = %q, want %q", tc.got, tc.want)
		}
	}
}

func TestGetJSONRoundTrip(t *testing.T) {
	store, err := artifact.NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	ctx := context.Background()

	type entry struct {
		TopicIndex int    `json:"topicIndex"`
		NewsID     string `json:"newsID"`
	}
	in := []entry{{1, "a"}, {2, "b"}}
	if err := store.PutJSON(ctx, artifact.NewsListKey("r"), in); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	var out []entry
	if err := store.GetJSON(ctx, artifact.NewsListKey("r"), &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if len(out) != 2 || out[1].NewsID != "b" {
		t.Fatalf("unexpected round trip %+v", out)
	}
}

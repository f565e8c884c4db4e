package audiosynth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"newscastd/internal/artifact"
	"newscastd/internal/audiosynth"
	"newscastd/internal/logging"
	"newscastd/internal/services"
	"newscastd/internal/testsupport"
)

type fakeTTS struct {
	mu       sync.Mutex
	calls    []int
	failSeq  map[int]error
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeTTS) SynthesizeLine(ctx context.Context, runID string, topicIndex, sequence int, content, voiceModel string) ([]byte, error) {
	cur := f.inFlight.Add(1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	f.calls = append(f.calls, sequence)
	err := f.failSeq[sequence]
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("clip-%d:%s", sequence, voiceModel)), nil
}

func seedScript(t *testing.T, artifacts *artifact.Store, runID string, topicIndex int, script audiosynth.Script) {
	t.Helper()
	if err := artifacts.PutJSON(context.Background(), artifact.ScriptKey(runID, topicIndex), script); err != nil {
		t.Fatalf("seed script: %v", err)
	}
}

func dialogueScript(lines int) audiosynth.Script {
	script := audiosynth.Script{Title: "Morning Brief"}
	script.Script = append(script.Script, audiosynth.ScriptLine{Type: "music", Content: "intro sting"})
	for i := 0; i < lines; i++ {
		speaker := "alex"
		if i%2 == 1 {
			speaker = "jamie"
		}
		script.Script = append(script.Script, audiosynth.ScriptLine{
			Type:       "dialogue",
			Speaker:    speaker,
			Content:    fmt.Sprintf("line %d", i),
			VoiceModel: "standard-" + speaker,
		})
	}
	script.Script = append(script.Script, audiosynth.ScriptLine{Type: "music", Content: "outro sting"})
	return script
}

func TestRunSynthesizesDialogueAndSkipsMusic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	tts := &fakeTTS{}
	synth := audiosynth.New(artifacts, tts, audiosynth.Options{Concurrency: 3}, logging.NewNop())

	const runID = "run-1"
	seedScript(t, artifacts, runID, 1, dialogueScript(8))

	report, err := synth.Run(context.Background(), runID, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Synthesized != 8 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 8 synthesized", report)
	}
	if report.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2 music lines", report.Skipped)
	}

	var manifest audiosynth.Manifest
	if err := artifacts.GetJSON(context.Background(), report.ManifestKey, &manifest); err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if manifest.TotalLines != 10 || manifest.Dialogue != 8 {
		t.Fatalf("manifest = %+v", manifest)
	}
	// Clips land under audio/ named by sequence and speaker.
	if _, err := artifacts.Get(context.Background(), artifact.AudioFileKey(runID, 1, "002-alex.mp3")); err != nil {
		t.Fatalf("first clip missing: %v", err)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	tts := &fakeTTS{delay: 20 * time.Millisecond}
	synth := audiosynth.New(artifacts, tts, audiosynth.Options{Concurrency: 3}, logging.NewNop())

	const runID = "run-2"
	seedScript(t, artifacts, runID, 2, dialogueScript(12))

	if _, err := synth.Run(context.Background(), runID, 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak := tts.peak.Load(); peak > 3 {
		t.Fatalf("peak concurrency = %d, want <= 3", peak)
	}
}

func TestRunRecordsLineFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	tts := &fakeTTS{failSeq: map[int]error{
		3: services.Wrap(services.ErrValidation, "synthesize-line", "call", "status 422", nil),
	}}
	synth := audiosynth.New(artifacts, tts, audiosynth.Options{Concurrency: 2}, logging.NewNop())

	const runID = "run-3"
	seedScript(t, artifacts, runID, 1, dialogueScript(5))

	report, err := synth.Run(context.Background(), runID, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || report.Synthesized != 4 {
		t.Fatalf("report = %+v, want one failure", report)
	}

	var manifest audiosynth.Manifest
	if err := artifacts.GetJSON(context.Background(), report.ManifestKey, &manifest); err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	var failed *audiosynth.FileEntry
	for i := range manifest.Files {
		if manifest.Files[i].Status == "error" {
			failed = &manifest.Files[i]
		}
	}
	if failed == nil || failed.Sequence != 3 || failed.Error == "" {
		t.Fatalf("failed entry = %+v", failed)
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)

	var attempts atomic.Int32
	tts := &flakyTTS{attempts: &attempts, failuresBeforeSuccess: 2}
	synth := audiosynth.New(artifacts, tts, audiosynth.Options{Concurrency: 1, RetryAttempts: 3, RetryDelay: time.Millisecond}, logging.NewNop())

	const runID = "run-4"
	seedScript(t, artifacts, runID, 1, audiosynth.Script{
		Title: "One Liner",
		Script: []audiosynth.ScriptLine{
			{Type: "dialogue", Speaker: "alex", Content: "hello", VoiceModel: "standard-alex"},
		},
	})

	report, err := synth.Run(context.Background(), runID, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 0 || report.Synthesized != 1 {
		t.Fatalf("report = %+v, want success after retries", report)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestRunMissingScript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	synth := audiosynth.New(artifacts, &fakeTTS{}, audiosynth.Options{Concurrency: 1}, logging.NewNop())

	_, err := synth.Run(context.Background(), "run-5", 1)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want not-found", err)
	}
}

type flakyTTS struct {
	attempts              *atomic.Int32
	failuresBeforeSuccess int32
}

func (f *flakyTTS) SynthesizeLine(ctx context.Context, runID string, topicIndex, sequence int, content, voiceModel string) ([]byte, error) {
	n := f.attempts.Add(1)
	if n <= f.failuresBeforeSuccess {
		return nil, services.Wrap(services.ErrTransient, "synthesize-line", "call", "status 503", nil)
	}
	return []byte("clip"), nil
}

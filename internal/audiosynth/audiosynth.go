// Package audiosynth fans one topic's dialogue script out to the speech
// synthesis endpoint and collects the per-line clips plus a manifest.
// Lines run under a bounded concurrency ceiling with a pause between
// waves so the TTS backend is never hammered.
package audiosynth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newscastd/internal/artifact"
	"newscastd/internal/batch"
	"newscastd/internal/logging"
	"newscastd/internal/services"
)

// ScriptLine is one entry of the generated newscast script. Only lines
// typed "dialogue" are synthesized; music and transition markers are
// skipped.
type ScriptLine struct {
	Type       string `json:"type"`
	Speaker    string `json:"speaker"`
	Content    string `json:"content"`
	VoiceModel string `json:"voiceModel"`
}

// Script is the per-topic document written by the script generation
// stage.
type Script struct {
	Title  string       `json:"title"`
	Script []ScriptLine `json:"script"`
}

// Synthesizer produces audio bytes for one dialogue line.
type Synthesizer interface {
	SynthesizeLine(ctx context.Context, runID string, topicIndex, sequence int, content, voiceModel string) ([]byte, error)
}

// FileEntry describes one synthesized clip in the manifest.
type FileEntry struct {
	Sequence   int    `json:"sequence"`
	Speaker    string `json:"speaker"`
	File       string `json:"file"`
	SizeBytes  int64  `json:"sizeBytes"`
	DurationMS int64  `json:"durationMs"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Manifest is the audio-files.json document summarizing a topic's
// synthesis pass.
type Manifest struct {
	RunID       string      `json:"runID"`
	TopicIndex  int         `json:"topicIndex"`
	Title       string      `json:"title"`
	GeneratedAt time.Time   `json:"generatedAt"`
	TotalLines  int         `json:"totalLines"`
	Dialogue    int         `json:"dialogueLines"`
	Skipped     int         `json:"skippedLines"`
	Synthesized int         `json:"synthesizedFiles"`
	Failed      int         `json:"failedFiles"`
	TotalBytes  int64       `json:"totalBytes"`
	Files       []FileEntry `json:"files"`
}

// Report is the caller-facing summary of one synthesis pass.
type Report struct {
	RunID       string
	TopicIndex  int
	TotalLines  int
	Synthesized int
	Skipped     int
	Failed      int
	ManifestKey string
}

// Options sizes the fan-out.
type Options struct {
	Concurrency   int
	WaveDelay     time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Synth drives speech synthesis for a topic.
type Synth struct {
	artifacts *artifact.Store
	tts       Synthesizer
	opts      Options
	logger    *slog.Logger
}

func New(artifacts *artifact.Store, tts Synthesizer, opts Options, logger *slog.Logger) *Synth {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &Synth{
		artifacts: artifacts,
		tts:       tts,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "audiosynth"),
	}
}

type dialogueLine struct {
	sequence int
	line     ScriptLine
}

// Run synthesizes every dialogue line of the topic's script. Individual
// line failures are recorded in the manifest and do not abort the pass;
// the merge stage decides later whether the surviving clips suffice.
func (s *Synth) Run(ctx context.Context, runID string, topicIndex int) (*Report, error) {
	var script Script
	if err := s.artifacts.GetJSON(ctx, artifact.ScriptKey(runID, topicIndex), &script); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, services.Wrap(services.ErrNotFound, "generate-audio", "load script", "script not yet generated", nil)
		}
		return nil, err
	}
	if len(script.Script) == 0 {
		return nil, services.Wrap(services.ErrValidation, "generate-audio", "load script", "script has no lines", nil)
	}

	dialogue := make([]dialogueLine, 0, len(script.Script))
	for i, line := range script.Script {
		if line.Type != "dialogue" {
			continue
		}
		if line.Content == "" {
			continue
		}
		dialogue = append(dialogue, dialogueLine{sequence: i + 1, line: line})
	}

	s.logger.Info("synthesizing script",
		logging.String(logging.FieldRunID, runID),
		logging.Int(logging.FieldTopicIndex, topicIndex),
		logging.Int("total_lines", len(script.Script)),
		logging.Int("dialogue_lines", len(dialogue)),
	)

	results := batch.Run(ctx, dialogue, batch.Options{Limit: s.opts.Concurrency, Delay: s.opts.WaveDelay}, func(ctx context.Context, item dialogueLine) (FileEntry, error) {
		return s.synthesizeOne(ctx, runID, topicIndex, item)
	})

	manifest := Manifest{
		RunID:       runID,
		TopicIndex:  topicIndex,
		Title:       script.Title,
		GeneratedAt: time.Now().UTC(),
		TotalLines:  len(script.Script),
		Dialogue:    len(dialogue),
		Skipped:     len(script.Script) - len(dialogue),
		Files:       make([]FileEntry, 0, len(results)),
	}
	for _, res := range results {
		entry := res.Output
		if res.Err != nil {
			entry = FileEntry{
				Sequence: res.Input.sequence,
				Speaker:  res.Input.line.Speaker,
				Status:   "error",
				Error:    res.Err.Error(),
			}
		}
		entry.DurationMS = res.Duration.Milliseconds()
		if entry.Status == "error" {
			manifest.Failed++
		} else {
			manifest.Synthesized++
			manifest.TotalBytes += entry.SizeBytes
		}
		manifest.Files = append(manifest.Files, entry)
	}

	manifestKey := artifact.AudioManifestKey(runID, topicIndex)
	if err := s.artifacts.PutJSON(ctx, manifestKey, manifest); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       runID,
		TopicIndex:  topicIndex,
		TotalLines:  len(script.Script),
		Synthesized: manifest.Synthesized,
		Skipped:     manifest.Skipped,
		Failed:      manifest.Failed,
		ManifestKey: manifestKey,
	}
	s.logger.Info("synthesis pass finished",
		logging.String(logging.FieldRunID, runID),
		logging.Int(logging.FieldTopicIndex, topicIndex),
		logging.Int("synthesized", report.Synthesized),
		logging.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Synth) synthesizeOne(ctx context.Context, runID string, topicIndex int, item dialogueLine) (FileEntry, error) {
	var data []byte
	err := services.Retry(ctx, s.opts.RetryAttempts, s.opts.RetryDelay, func() error {
		var synthErr error
		data, synthErr = s.tts.SynthesizeLine(ctx, runID, topicIndex, item.sequence, item.line.Content, item.line.VoiceModel)
		return synthErr
	})
	if err != nil {
		s.logger.Warn("line synthesis failed",
			logging.String(logging.FieldRunID, runID),
			logging.Int(logging.FieldTopicIndex, topicIndex),
			logging.Int("sequence", item.sequence),
			logging.Bool("retryable", services.Retryable(err)),
			logging.Error(err),
		)
		return FileEntry{}, err
	}
	if len(data) == 0 {
		return FileEntry{}, services.Wrap(services.ErrValidation, "generate-audio", "synthesize line", "empty audio response", nil)
	}

	fileName := fmt.Sprintf("%03d-%s.mp3", item.sequence, item.line.Speaker)
	key := artifact.AudioFileKey(runID, topicIndex, fileName)
	if err := s.artifacts.Put(ctx, key, data); err != nil {
		return FileEntry{}, err
	}
	return FileEntry{
		Sequence:  item.sequence,
		Speaker:   item.line.Speaker,
		File:      fileName,
		SizeBytes: int64(len(data)),
		Status:    "success",
	}, nil
}

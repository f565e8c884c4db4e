// Package finalize validates a run's merged audio tracks and promotes
// the run to published state. Promotion is all-or-nothing: a single
// invalid track leaves the previously published run in place.
package finalize

import (
	"context"
	"encoding/binary"
	"log/slog"

	"newscastd/internal/artifact"
	"newscastd/internal/logging"
	"newscastd/internal/state"
)

// TopicValidation is the outcome of checking one topic's final track.
type TopicValidation struct {
	TopicIndex int
	Key        string
	Valid      bool
	SizeBytes  int64
	Reason     string
}

// Outcome summarizes one finalization pass.
type Outcome struct {
	RunID             string
	Promoted          bool
	PreviousPublished string
	ValidCount        int
	Results           []TopicValidation
}

// Finalizer checks and publishes completed runs.
type Finalizer struct {
	store      *state.Store
	artifacts  *artifact.Store
	topicCount int
	logger     *slog.Logger
}

func New(store *state.Store, artifacts *artifact.Store, topicCount int, logger *slog.Logger) *Finalizer {
	return &Finalizer{
		store:      store,
		artifacts:  artifacts,
		topicCount: topicCount,
		logger:     logging.NewComponentLogger(logger, "finalize"),
	}
}

// Run validates every topic's merged track and, when promote is set and
// all tracks pass, swings the published pointer to runID.
func (f *Finalizer) Run(ctx context.Context, runID string, promote bool) (*Outcome, error) {
	outcome := &Outcome{
		RunID:   runID,
		Results: make([]TopicValidation, 0, f.topicCount),
	}

	for topicIndex := 1; topicIndex <= f.topicCount; topicIndex++ {
		result := f.validateTopic(ctx, runID, topicIndex)
		if result.Valid {
			outcome.ValidCount++
		} else {
			f.logger.Warn("track failed validation",
				logging.String(logging.FieldRunID, runID),
				logging.Int(logging.FieldTopicIndex, topicIndex),
				logging.String("reason", result.Reason),
			)
		}
		outcome.Results = append(outcome.Results, result)
	}

	allValid := outcome.ValidCount == f.topicCount
	if !promote {
		return outcome, nil
	}
	if !allValid {
		f.logger.Warn("promotion withheld",
			logging.String(logging.FieldRunID, runID),
			logging.Int("valid", outcome.ValidCount),
			logging.Int("expected", f.topicCount),
		)
		return outcome, nil
	}

	previous, err := f.store.PublishRun(ctx, runID)
	if err != nil {
		return outcome, err
	}
	outcome.Promoted = true
	outcome.PreviousPublished = previous
	f.logger.Info("run published",
		logging.String(logging.FieldRunID, runID),
		logging.String("previous_run_id", previous),
	)
	return outcome, nil
}

func (f *Finalizer) validateTopic(ctx context.Context, runID string, topicIndex int) TopicValidation {
	key := artifact.FinalAudioKey(runID, topicIndex)
	result := TopicValidation{TopicIndex: topicIndex, Key: key}

	size, exists, err := f.artifacts.Head(ctx, key)
	if err != nil {
		result.Reason = err.Error()
		return result
	}
	if !exists {
		result.Reason = "not found"
		return result
	}
	result.SizeBytes = size

	header, err := f.artifacts.ReadFirst(ctx, key, 4)
	if err != nil {
		result.Reason = err.Error()
		return result
	}
	if !sniffMPEGHeader(header) {
		result.Reason = "invalid header"
		return result
	}

	result.Valid = true
	return result
}

// sniffMPEGHeader reports whether data starts with an MPEG audio frame:
// the top eleven bits of the first 32-bit big-endian word are all set.
func sniffMPEGHeader(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	word := binary.BigEndian.Uint32(data[:4])
	return word>>21&0x7FF == 0x7FF
}

package artifact

import "fmt"

// Key helpers for the hierarchical layout under run/{runID}/...
// Topic segments are zero-padded to two digits and batch metrics numbers
// to three, matching what every stage collaborator writes and reads.

func RunPrefix(runID string) string {
	return fmt.Sprintf("run/%s", runID)
}

func TopicSegment(topicIndex int) string {
	return fmt.Sprintf("topic-%02d", topicIndex)
}

// NewsListKey is the flattened (topicIndex, newsID) queue written by the
// topic crawl stage.
func NewsListKey(runID string) string {
	return fmt.Sprintf("run/%s/news-list.json", runID)
}

func NewsDetailKey(runID string, topicIndex int, newsID string) string {
	return fmt.Sprintf("run/%s/%s/news/%s.json", runID, TopicSegment(topicIndex), newsID)
}

func ConsolidatedNewsKey(runID string, topicIndex int) string {
	return fmt.Sprintf("run/%s/%s/news.json", runID, TopicSegment(topicIndex))
}

func ScriptKey(runID string, topicIndex int) string {
	return fmt.Sprintf("run/%s/%s/newscast-script.json", runID, TopicSegment(topicIndex))
}

func AudioFileKey(runID string, topicIndex int, fileName string) string {
	return fmt.Sprintf("run/%s/%s/audio/%s", runID, TopicSegment(topicIndex), fileName)
}

// AudioManifestKey is the per-topic manifest listing every synthesized
// line and its outcome.
func AudioManifestKey(runID string, topicIndex int) string {
	return AudioFileKey(runID, topicIndex, "audio-files.json")
}

// FinalAudioKey is the merged per-topic track the finalizer validates.
func FinalAudioKey(runID string, topicIndex int) string {
	return fmt.Sprintf("run/%s/%s/newscast.mp3", runID, TopicSegment(topicIndex))
}

// BatchMetricsKey addresses one details-crawl batch report.
func BatchMetricsKey(runID string, batchNumber int) string {
	return fmt.Sprintf("run/%s/news-details-%03d.json", runID, batchNumber)
}

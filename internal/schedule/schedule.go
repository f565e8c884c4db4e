// Package schedule maps wall-clock time to the pipeline work that should
// run at that minute. It is a pure encoding of the daily UTC timetable and
// has no collaborators.
package schedule

import "fmt"

// Kind identifies a pipeline stage.
type Kind int

const (
	KindCrawlTopics Kind = iota
	KindCrawlDetails
	KindGenerateNews
	KindGenerateScript
	KindGenerateAudio
	KindMergeAudio
	KindComplete
)

// String returns the stage name used in logs and API responses.
func (k Kind) String() string {
	switch k {
	case KindCrawlTopics:
		return "crawl-topics"
	case KindCrawlDetails:
		return "crawl-details"
	case KindGenerateNews:
		return "generate-news"
	case KindGenerateScript:
		return "generate-script"
	case KindGenerateAudio:
		return "generate-audio"
	case KindMergeAudio:
		return "merge-audio"
	case KindComplete:
		return "complete"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// WorkItem is the unit of work the dispatcher routes. TopicIndex is only
// meaningful for the per-topic kinds (news, script, audio, merge) and is
// zero otherwise.
type WorkItem struct {
	Kind       Kind
	TopicIndex int
}

// PerTopic reports whether the work item carries a topic index.
func (w WorkItem) PerTopic() bool {
	switch w.Kind {
	case KindGenerateNews, KindGenerateScript, KindGenerateAudio, KindMergeAudio:
		return true
	default:
		return false
	}
}

// Determine returns the work scheduled for the given UTC hour and minute.
// Unmapped times return ok=false. The timetable:
//
//	09:05        crawl topics
//	09:11-09:40  crawl article details (cursor batch, every minute)
//	09:41-09:50  generate news, topic = minute-40
//	09:51-10:00  generate script, topic = minute-50 (10:00 -> topic 10)
//	10:01-10:10  generate audio, topic = minute
//	10:11-10:20  merge audio, topic = minute-10
//	10:30        validate and promote
func Determine(hour, minute int) (WorkItem, bool) {
	switch {
	case hour == 9 && minute == 5:
		return WorkItem{Kind: KindCrawlTopics}, true
	case hour == 9 && minute >= 11 && minute <= 40:
		return WorkItem{Kind: KindCrawlDetails}, true
	case hour == 9 && minute >= 41 && minute <= 50:
		return WorkItem{Kind: KindGenerateNews, TopicIndex: minute - 40}, true
	case hour == 9 && minute >= 51:
		return WorkItem{Kind: KindGenerateScript, TopicIndex: minute - 50}, true
	case hour == 10 && minute == 0:
		return WorkItem{Kind: KindGenerateScript, TopicIndex: 10}, true
	case hour == 10 && minute >= 1 && minute <= 10:
		return WorkItem{Kind: KindGenerateAudio, TopicIndex: minute}, true
	case hour == 10 && minute >= 11 && minute <= 20:
		return WorkItem{Kind: KindMergeAudio, TopicIndex: minute - 10}, true
	case hour == 10 && minute == 30:
		return WorkItem{Kind: KindComplete}, true
	default:
		return WorkItem{}, false
	}
}

// ParseKind maps a stage name back to its Kind. Used by the manual
// trigger API.
func ParseKind(name string) (Kind, bool) {
	for kind := KindCrawlTopics; kind <= KindComplete; kind++ {
		if kind.String() == name {
			return kind, true
		}
	}
	return 0, false
}

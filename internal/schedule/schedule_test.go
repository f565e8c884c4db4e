package schedule_test

import (
	"testing"

	"newscastd/internal/schedule"
)

func TestDetermineTimetable(t *testing.T) {
	cases := []struct {
		hour, minute int
		want         schedule.WorkItem
	}{
		{9, 5, schedule.WorkItem{Kind: schedule.KindCrawlTopics}},
		{9, 11, schedule.WorkItem{Kind: schedule.KindCrawlDetails}},
		{9, 25, schedule.WorkItem{Kind: schedule.KindCrawlDetails}},
		{9, 40, schedule.WorkItem{Kind: schedule.KindCrawlDetails}},
		{9, 41, schedule.WorkItem{Kind: schedule.KindGenerateNews, TopicIndex: 1}},
		{9, 45, schedule.WorkItem{Kind: schedule.KindGenerateNews, TopicIndex: 5}},
		{9, 50, schedule.WorkItem{Kind: schedule.KindGenerateNews, TopicIndex: 10}},
		{9, 51, schedule.WorkItem{Kind: schedule.KindGenerateScript, TopicIndex: 1}},
		{9, 55, schedule.WorkItem{Kind: schedule.KindGenerateScript, TopicIndex: 5}},
		{9, 59, schedule.WorkItem{Kind: schedule.KindGenerateScript, TopicIndex: 9}},
		{10, 0, schedule.WorkItem{Kind: schedule.KindGenerateScript, TopicIndex: 10}},
		{10, 1, schedule.WorkItem{Kind: schedule.KindGenerateAudio, TopicIndex: 1}},
		{10, 5, schedule.WorkItem{Kind: schedule.KindGenerateAudio, TopicIndex: 5}},
		{10, 10, schedule.WorkItem{Kind: schedule.KindGenerateAudio, TopicIndex: 10}},
		{10, 11, schedule.WorkItem{Kind: schedule.KindMergeAudio, TopicIndex: 1}},
		{10, 15, schedule.WorkItem{Kind: schedule.KindMergeAudio, TopicIndex: 5}},
		{10, 20, schedule.WorkItem{Kind: schedule.KindMergeAudio, TopicIndex: 10}},
		{10, 30, schedule.WorkItem{Kind: schedule.KindComplete}},
	}
	for _, tc := range cases {
		got, ok := schedule.Determine(tc.hour, tc.minute)
		if !ok {
			t.Fatalf("Determine(%d,%d) returned no work", tc.hour, tc.minute)
		}
		if got != tc.want {
			t.Fatalf("Determine(%d,%d) = %+v, want %+v", tc.hour, tc.minute, got, tc.want)
		}
	}
}

func TestDetermineUnmappedMinutesReturnNothing(t *testing.T) {
	scheduled := map[[2]int]struct{}{
		{9, 5}:   {},
		{10, 30}: {},
	}
	for m := 11; m <= 59; m++ {
		scheduled[[2]int{9, m}] = struct{}{}
	}
	for m := 0; m <= 20; m++ {
		scheduled[[2]int{10, m}] = struct{}{}
	}

	for hour := 0; hour < 24; hour++ {
		for minute := 0; minute < 60; minute++ {
			_, expected := scheduled[[2]int{hour, minute}]
			_, got := schedule.Determine(hour, minute)
			if got != expected {
				t.Fatalf("Determine(%d,%d) scheduled=%v, want %v", hour, minute, got, expected)
			}
		}
	}
}

func TestPerTopic(t *testing.T) {
	perTopic := []schedule.Kind{
		schedule.KindGenerateNews,
		schedule.KindGenerateScript,
		schedule.KindGenerateAudio,
		schedule.KindMergeAudio,
	}
	for _, kind := range perTopic {
		if !(schedule.WorkItem{Kind: kind, TopicIndex: 1}).PerTopic() {
			t.Fatalf("kind %v should be per-topic", kind)
		}
	}
	for _, kind := range []schedule.Kind{schedule.KindCrawlTopics, schedule.KindCrawlDetails, schedule.KindComplete} {
		if (schedule.WorkItem{Kind: kind}).PerTopic() {
			t.Fatalf("kind %v should not be per-topic", kind)
		}
	}
}

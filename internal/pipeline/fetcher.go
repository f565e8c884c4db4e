package pipeline

import (
	"context"

	"newscastd/internal/details"
	"newscastd/internal/services"
	"newscastd/internal/stages"
)

// StageDetailFetcher adapts the crawler's detail endpoint to the batch
// processor's fetcher contract.
type StageDetailFetcher struct {
	client *stages.Client
}

func NewStageDetailFetcher(client *stages.Client) *StageDetailFetcher {
	return &StageDetailFetcher{client: client}
}

func (f *StageDetailFetcher) CrawlDetail(ctx context.Context, runID string, topicIndex int, newsID string) (details.FetchResult, error) {
	result, err := f.client.CrawlDetail(ctx, runID, topicIndex, newsID)
	if err != nil {
		return details.FetchResult{}, err
	}
	if !result.Success {
		return details.FetchResult{}, services.Wrap(services.ErrTransient, "crawl-detail", "call", stageMessage(result.Result), nil)
	}
	return details.FetchResult{Size: result.Size}, nil
}

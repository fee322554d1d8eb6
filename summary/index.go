package summary

import (
	"context"

	"github.com/ujana-my/tenaga/rag"
)

// IndexDataset summarizes the dataset and ingests every summary into the
// engine in one batch. Returns the number of items actually added
// (unchanged summaries deduplicate away).
func IndexDataset(ctx context.Context, engine *rag.Engine, ds Dataset) (int, error) {
	items := Summarize(ds)
	inputs := make([]rag.IngestInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, rag.IngestInput{
			Content:  item.Content,
			Metadata: rag.Metadata(item.Metadata),
		})
	}
	return engine.IngestBatch(ctx, inputs)
}

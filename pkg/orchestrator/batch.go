package orchestrator

import (
	"context"

	"github.com/ogulcanaydogan/genroute/pkg/model"
)

// BatchChunkSize is the number of requests processed per sub-batch.
const BatchChunkSize = 8

// BatchItem is the outcome of one request in a batch. Exactly one of
// Result and Err is meaningful.
type BatchItem struct {
	Result model.GenerationResult
	Err    error
}

// BatchGenerate runs reqs in order, in sub-batches of BatchChunkSize, one
// request at a time. Results line up with reqs; a failed request never
// stops the rest. A cancelled ctx fails the remaining items.
func (o *Orchestrator) BatchGenerate(ctx context.Context, reqs []model.GenerationRequest) []BatchItem {
	items := make([]BatchItem, 0, len(reqs))
	for i, part := range chunk(reqs, BatchChunkSize) {
		o.logger.Debug("batch chunk", "index", i, "size", len(part), "total", len(reqs))
		for _, req := range part {
			if err := ctx.Err(); err != nil {
				items = append(items, BatchItem{Err: err})
				continue
			}
			res, err := o.Generate(ctx, req)
			items = append(items, BatchItem{Result: res, Err: err})
		}
	}
	return items
}

func chunk[T any](s []T, size int) [][]T {
	var out [][]T
	for size < len(s) {
		out = append(out, s[:size:size])
		s = s[size:]
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}

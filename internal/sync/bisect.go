package sync

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfujita/star-list-sync/internal/gql"
)

// Batch sizes and retry tuning. GitHub rejects whole documents on
// query cost, so batches must stay small enough to usually pass and
// the runner must be able to split the ones that do not.
const (
	listPageSize        = 50
	createBatchSize     = 15
	repoLookupBatchSize = 40
	addBatchSize        = 10

	purgeRounds      = 5
	progressInterval = 20

	// GitHub caps user lists per account.
	maxGitHubLists = 32
)

// Vars so tests can shrink the waits.
var (
	purgeRoundPause         = time.Second
	internalErrorRetryDelay = 3 * time.Second
)

// chunk splits items into slices of at most size elements. A
// non-positive size yields the whole input as one batch.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		return [][]T{items}
	}
	var batches [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// runBisect executes one batch through attempt. When attempt reports
// the batch must be split (transport exhaustion or a batch-wide
// resource-limit rejection), the batch is halved and each half retried
// independently; results merge back up. A batch of one that still
// fails becomes a leaf failure. Recursion runs sequentially inside the
// worker that owns the batch, so total concurrency stays bounded by
// the pool; depth is log2(n) and total calls at most 2n-1.
func runBisect[T any, R any](
	ctx context.Context,
	batch []T,
	attempt func(ctx context.Context, batch []T) (R, string, bool),
	merge func(a, b R) R,
	leafFail func(batch []T, errText string) R,
) R {
	result, errText, split := attempt(ctx, batch)
	if !split {
		return result
	}
	if len(batch) > 1 {
		mid := len(batch) / 2
		left := runBisect(ctx, batch[:mid], attempt, merge, leafFail)
		right := runBisect(ctx, batch[mid:], attempt, merge, leafFail)
		return merge(left, right)
	}
	return leafFail(batch, errText)
}

// forEachBatch fans batches out to a bounded worker pool, then calls
// collect with every worker's result on the caller's goroutine once
// all workers have finished.
func forEachBatch[T any, R any](
	ctx context.Context,
	batches [][]T,
	workers int,
	run func(ctx context.Context, batch []T) R,
	collect func(R),
) {
	if len(batches) == 0 {
		return
	}
	if workers > len(batches) {
		workers = len(batches)
	}
	if workers < 1 {
		workers = 1
	}

	results := make(chan R, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, b := range batches {
		batch := b
		g.Go(func() error {
			results <- run(gctx, batch)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for r := range results {
		collect(r)
	}
}

// executeBatch runs one aliased document through the client. A GitHub
// internal-error response gets exactly one delayed retry of the same
// document after slowing the limiter down: that failure class is
// transient and server-side, not load-related, so splitting would not
// help. Returns the response (nil when transport retries were
// exhausted), the transport error text, and whether the caller must
// bisect.
func executeBatch(ctx context.Context, client *gql.Client, doc string) (resp *gql.Response, errText string, split bool) {
	resp, err := client.Execute(ctx, doc)
	if err != nil {
		errText = err.Error()
	}

	if gql.AnyInternalError(resp, errText) {
		client.Limiter().SlowDown(gql.SlowDownFactor)
		select {
		case <-ctx.Done():
		case <-time.After(internalErrorRetryDelay):
		}
		resp, err = client.Execute(ctx, doc)
		errText = ""
		if err != nil {
			errText = err.Error()
		}
	}

	if resp == nil || gql.AnyResourceLimit(resp, errText) {
		if errText == "" && resp != nil && len(resp.Errors) > 0 {
			errText = resp.Errors[0].Message
		}
		return resp, errText, true
	}
	return resp, errText, false
}

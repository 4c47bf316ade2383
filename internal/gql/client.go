package gql

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfujita/star-list-sync/internal/ratelimit"
)

const maxRetries = 5

// SlowDownFactor is applied to a client's limiter whenever the remote
// service signals distress, on transport retries here and on
// internal-error retries in the batch runner.
const SlowDownFactor = 1.5

// Var so tests can collapse the backoff.
var backoffBase = 2.0

// Client executes GraphQL documents with pacing and transport-level
// retry. Semantic errors in a parsed response are returned verbatim;
// only channel failures are retried here.
type Client struct {
	exec    Executor
	limiter *ratelimit.Limiter
}

// NewClient wraps an executor with the given per-class limiter.
func NewClient(exec Executor, limiter *ratelimit.Limiter) *Client {
	return &Client{exec: exec, limiter: limiter}
}

// Limiter exposes the client's pacing governor so callers can slow it
// down on server-side distress.
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Execute runs one document. Transport failures are retried up to
// maxRetries with exponential backoff; exhaustion returns the last
// error. The limiter is acquired before every attempt, retries
// included.
func (c *Client) Execute(ctx context.Context, query string) (*Response, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		c.limiter.Acquire()

		resp, err := c.exec.Do(ctx, query)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt > maxRetries {
			return nil, lastErr
		}

		sleep := time.Duration(math.Pow(backoffBase, float64(attempt)) * float64(time.Second))
		c.limiter.SlowDown(SlowDownFactor)
		logrus.WithFields(logrus.Fields{
			"attempt": attempt,
			"sleep":   sleep.String(),
			"error":   err,
		}).Warn("graphql_retry")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

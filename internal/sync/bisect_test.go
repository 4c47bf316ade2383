package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfujita/star-list-sync/internal/domain"
	"github.com/mfujita/star-list-sync/internal/gql"
)

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	batches := chunk(items, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []int{1, 2}, batches[0])
	assert.Equal(t, []int{5}, batches[2])

	assert.Len(t, chunk(items, 10), 1)
	assert.Equal(t, [][]int{items}, chunk(items, 0))
	assert.Nil(t, chunk([]int{}, 3))
}

func makePairs(n int) []domain.RepoPair {
	pairs := make([]domain.RepoPair, n)
	for i := range pairs {
		pairs[i] = domain.RepoPair{Owner: "owner", Name: fmt.Sprintf("repo%02d", i)}
	}
	return pairs
}

func TestFetchRepoIDsSingleBatch(t *testing.T) {
	fake := newFakeGitHub()
	pairs := makePairs(25)
	for _, p := range pairs {
		fake.addRepo(p.FullName())
	}
	s := newTestSyncer(t, fake)

	ids := s.FetchRepoIDs(context.Background(), pairs)

	assert.Len(t, ids, 25)
	// 25 <= the lookup batch size of 40, so exactly one call
	assert.Equal(t, []int{25}, fake.callSizes(reRepoAlias))
}

func TestFetchRepoIDsBisectsOnResourceLimit(t *testing.T) {
	fake := newFakeGitHub()
	pairs := makePairs(25)
	for _, p := range pairs {
		fake.addRepo(p.FullName())
	}
	first := true
	fake.intercept = func(query string) (*gql.Response, error, bool) {
		if first && strings.Contains(query, "repository(") {
			first = false
			return resourceLimitResponse(), nil, true
		}
		return nil, nil, false
	}
	s := newTestSyncer(t, fake)

	ids := s.FetchRepoIDs(context.Background(), pairs)

	assert.Len(t, ids, 25)
	// the full batch is rejected once, then split into halves of 13 and 12
	assert.Equal(t, []int{25, 13, 12}, fake.callSizes(reRepoAlias))
}

func TestFetchRepoIDsAbsorbsUnknownRepos(t *testing.T) {
	fake := newFakeGitHub()
	fake.addRepo("owner/known")
	s := newTestSyncer(t, fake)

	ids := s.FetchRepoIDs(context.Background(), []domain.RepoPair{
		{Owner: "owner", Name: "known"},
		{Owner: "owner", Name: "ghost"},
	})

	require.Len(t, ids, 1)
	assert.Equal(t, "R_owner/known", ids[domain.RepoPair{Owner: "owner", Name: "known"}])
}

func makeAddOps(n int) []domain.AddOp {
	ops := make([]domain.AddOp, n)
	for i := range ops {
		ops[i] = domain.AddOp{
			Category: "cat",
			RepoID:   fmt.Sprintf("R%d", i),
			FullName: fmt.Sprintf("owner/repo%02d", i),
			ListID:   "L1",
		}
	}
	return ops
}

func TestAddReposBisectionBoundOnUniformFailure(t *testing.T) {
	fake := newFakeGitHub()
	fake.intercept = func(query string) (*gql.Response, error, bool) {
		if strings.Contains(query, "updateUserListsForItem") {
			return resourceLimitResponse(), nil, true
		}
		return nil, nil, false
	}
	s := newTestSyncer(t, fake)

	const n = 8 // fits in one add batch
	stats := s.AddReposToLists(context.Background(), makeAddOps(n))

	assert.Equal(t, n, stats.Attempted)
	assert.Equal(t, 0, stats.Succeeded)
	assert.Equal(t, n, stats.FailureKinds[gql.KindRateLimit])
	assert.Empty(t, stats.SyncedRepos)
	// uniform failure costs at most 2n-1 calls
	assert.Equal(t, 2*n-1, fake.callCount())
}

func TestAddReposPartialFailureIsolation(t *testing.T) {
	for _, failIdx := range []int{0, 1} {
		fake := newFakeGitHub()
		fake.addRepo("owner/good")
		fake.addRepo("owner/bad")
		failAlias := fmt.Sprintf("a%d", failIdx)
		fake.intercept = func(query string) (*gql.Response, error, bool) {
			if !strings.Contains(query, "updateUserListsForItem") {
				return nil, nil, false
			}
			data := map[string]json.RawMessage{}
			var errs []gql.QueryError
			for _, m := range reAddAlias.FindAllStringSubmatch(query, -1) {
				alias := m[1]
				if alias == failAlias {
					data[alias] = json.RawMessage("null")
					errs = append(errs, gql.QueryError{
						Message: "Could not resolve to a node with the global id of 'x'",
						Path:    []any{alias},
					})
				} else {
					data[alias] = mustRaw(map[string]string{"clientMutationId": ""})
				}
			}
			return &gql.Response{Data: data, Errors: errs}, nil, true
		}
		s := newTestSyncer(t, fake)

		ops := []domain.AddOp{
			{Category: "cat", RepoID: "R_owner/good", FullName: "owner/good", ListID: "L1"},
			{Category: "cat", RepoID: "R_owner/bad", FullName: "owner/bad", ListID: "L1"},
		}
		stats := s.AddReposToLists(context.Background(), ops)

		okName := ops[1-failIdx].FullName
		failName := ops[failIdx].FullName
		assert.Equal(t, 2, stats.Attempted, "fail index %d", failIdx)
		assert.Equal(t, 1, stats.Succeeded, "fail index %d", failIdx)
		assert.True(t, stats.SyncedRepos[okName], "fail index %d", failIdx)
		assert.False(t, stats.SyncedRepos[failName], "fail index %d", failIdx)
		assert.Equal(t, 1, stats.FailureKinds[gql.KindNotFound], "fail index %d", failIdx)
	}
}

func TestAddReposInternalErrorRetriedOnceWithSlowdown(t *testing.T) {
	fake := newFakeGitHub()
	fake.addRepo("owner/one")
	fake.addRepo("owner/two")
	first := true
	fake.intercept = func(query string) (*gql.Response, error, bool) {
		if first && strings.Contains(query, "updateUserListsForItem") {
			first = false
			return internalErrorResponse(), nil, true
		}
		return nil, nil, false
	}
	s := newTestSyncer(t, fake)
	s.itemClient.Limiter().SpeedUp(1) // pin interval to the floor so growth is observable
	before := s.itemClient.Limiter().Interval()

	ops := []domain.AddOp{
		{Category: "cat", RepoID: "R_owner/one", FullName: "owner/one", ListID: "L1"},
		{Category: "cat", RepoID: "R_owner/two", FullName: "owner/two", ListID: "L1"},
	}
	stats := s.AddReposToLists(context.Background(), ops)

	assert.Equal(t, 2, stats.Succeeded)
	// same batch retried exactly once, not split
	assert.Equal(t, []int{2, 2}, fake.callSizes(reAddAlias))
	want := time.Duration(float64(before) * gql.SlowDownFactor)
	assert.Equal(t, want, s.itemClient.Limiter().Interval())
}

func TestAddReposProgressAggregation(t *testing.T) {
	fake := newFakeGitHub()
	ops := makeAddOps(25)
	for _, op := range ops {
		fake.addRepo(op.FullName)
	}
	s := newTestSyncer(t, fake)

	stats := s.AddReposToLists(context.Background(), ops)

	assert.Equal(t, 25, stats.Attempted)
	assert.Equal(t, 25, stats.Succeeded)
	assert.Equal(t, 25, stats.PerCategory["cat"])
	assert.Len(t, stats.SyncedRepos, 25)
	// 25 ops at batch size 10 -> 3 calls
	assert.Len(t, fake.callSizes(reAddAlias), 3)
}

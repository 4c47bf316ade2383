package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mfujita/star-list-sync/internal/domain"
	"github.com/mfujita/star-list-sync/internal/gql"
)

// SyncStats aggregates add-to-list outcomes across all batches.
type SyncStats struct {
	Attempted    int
	Succeeded    int
	PerCategory  map[string]int
	FailureKinds map[string]int
	SyncedRepos  map[string]bool // fullNames confirmed added
}

func newSyncStats() *SyncStats {
	return &SyncStats{
		PerCategory:  map[string]int{},
		FailureKinds: map[string]int{},
		SyncedRepos:  map[string]bool{},
	}
}

func (s *SyncStats) merge(o *SyncStats) *SyncStats {
	s.Attempted += o.Attempted
	s.Succeeded += o.Succeeded
	for k, v := range o.PerCategory {
		s.PerCategory[k] += v
	}
	for k, v := range o.FailureKinds {
		s.FailureKinds[k] += v
	}
	for k := range o.SyncedRepos {
		s.SyncedRepos[k] = true
	}
	return s
}

// AddReposToLists issues one updateUserListsForItem mutation per op,
// batched through the bisecting runner, and aggregates outcomes.
// Per-alias failures are classified and counted, never propagated.
func (s *Syncer) AddReposToLists(ctx context.Context, ops []domain.AddOp) *SyncStats {
	if len(ops) == 0 {
		return newSyncStats()
	}

	attempt := func(ctx context.Context, batch []domain.AddOp) (*SyncStats, string, bool) {
		var b strings.Builder
		b.WriteString("mutation {\n")
		aliases := make([]string, len(batch))
		for i, op := range batch {
			alias := fmt.Sprintf("a%d", i)
			aliases[i] = alias
			fmt.Fprintf(&b, "  %s: updateUserListsForItem(input: { itemId: \"%s\", listIds: [\"%s\"], suggestedListIds: [] }) { clientMutationId }\n",
				alias, gql.Escape(op.RepoID), gql.Escape(op.ListID))
		}
		b.WriteString("}")

		resp, errText, split := executeBatch(ctx, s.itemClient, b.String())
		if split {
			return nil, errText, true
		}

		byAlias := resp.ErrorsByAlias()
		stats := newSyncStats()
		stats.Attempted = len(batch)
		for i, op := range batch {
			if resp.Node(aliases[i]) != nil {
				stats.Succeeded++
				stats.PerCategory[op.Category]++
				stats.SyncedRepos[op.FullName] = true
				continue
			}
			msg := strings.Join(byAlias[aliases[i]], "; ")
			if msg == "" {
				if errText != "" {
					msg = errText
				} else {
					msg = "unknown"
				}
			}
			kind := gql.Classify(msg)
			stats.FailureKinds[kind]++
			logrus.WithFields(logrus.Fields{
				"repo":       op.FullName,
				"category":   op.Category,
				"error_type": kind,
			}).Error("repo_add_failed")
		}
		return stats, "", false
	}

	leafFail := func(batch []domain.AddOp, errText string) *SyncStats {
		if errText == "" {
			errText = "batch failed"
		}
		stats := newSyncStats()
		stats.Attempted = len(batch)
		for _, op := range batch {
			kind := gql.Classify(errText)
			stats.FailureKinds[kind]++
			logrus.WithFields(logrus.Fields{
				"repo":       op.FullName,
				"category":   op.Category,
				"error_type": kind,
			}).Error("repo_add_failed")
		}
		return stats
	}

	total := newSyncStats()
	nextProgress := progressInterval
	forEachBatch(ctx, chunk(ops, addBatchSize), s.syncWorkers,
		func(ctx context.Context, batch []domain.AddOp) *SyncStats {
			return runBisect(ctx, batch, attempt, (*SyncStats).merge, leafFail)
		},
		func(part *SyncStats) {
			total.merge(part)
			for total.Attempted >= nextProgress {
				logrus.WithFields(logrus.Fields{
					"total":   total.Attempted,
					"success": total.Succeeded,
				}).Info("sync_progress")
				nextProgress += progressInterval
			}
		})
	return total
}

package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mfujita/star-list-sync/internal/domain"
	"github.com/mfujita/star-list-sync/internal/gql"
)

// FetchRepoIDs resolves (owner, name) pairs to repository node ids via
// batched lookups through the bisecting runner. Pairs that cannot be
// resolved (deleted, renamed, private) are simply absent from the
// result.
func (s *Syncer) FetchRepoIDs(ctx context.Context, pairs []domain.RepoPair) map[domain.RepoPair]string {
	if len(pairs) == 0 {
		return map[domain.RepoPair]string{}
	}

	attempt := func(ctx context.Context, batch []domain.RepoPair) (map[domain.RepoPair]string, string, bool) {
		var b strings.Builder
		b.WriteString("query {\n")
		aliases := make([]string, len(batch))
		for i, pair := range batch {
			alias := fmt.Sprintf("r%d", i)
			aliases[i] = alias
			fmt.Fprintf(&b, "  %s: repository(owner: \"%s\", name: \"%s\") { id nameWithOwner }\n",
				alias, gql.Escape(pair.Owner), gql.Escape(pair.Name))
		}
		b.WriteString("}")

		resp, errText, split := executeBatch(ctx, s.itemClient, b.String())
		if split {
			return nil, errText, true
		}

		byAlias := resp.ErrorsByAlias()
		out := map[domain.RepoPair]string{}
		for i, pair := range batch {
			var node struct {
				ID            string `json:"id"`
				NameWithOwner string `json:"nameWithOwner"`
			}
			raw := resp.Node(aliases[i])
			if raw != nil {
				if err := json.Unmarshal(raw, &node); err == nil && node.ID != "" {
					out[pair] = node.ID
					continue
				}
			}
			if msgs := byAlias[aliases[i]]; len(msgs) > 0 {
				logrus.WithFields(logrus.Fields{
					"repo":   pair.FullName(),
					"reason": strings.Join(msgs, "; "),
				}).Warn("repo_not_found")
			}
		}
		return out, "", false
	}

	merge := func(a, b map[domain.RepoPair]string) map[domain.RepoPair]string {
		for k, v := range b {
			a[k] = v
		}
		return a
	}

	leafFail := func(batch []domain.RepoPair, errText string) map[domain.RepoPair]string {
		for _, pair := range batch {
			logrus.WithFields(logrus.Fields{"repo": pair.FullName(), "reason": errText}).Warn("repo_lookup_failed")
		}
		return map[domain.RepoPair]string{}
	}

	repoIDs := map[domain.RepoPair]string{}
	forEachBatch(ctx, chunk(pairs, repoLookupBatchSize), s.syncWorkers,
		func(ctx context.Context, batch []domain.RepoPair) map[domain.RepoPair]string {
			return runBisect(ctx, batch, attempt, merge, leafFail)
		},
		func(part map[domain.RepoPair]string) {
			for k, v := range part {
				repoIDs[k] = v
			}
		})
	return repoIDs
}

package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mfujita/star-list-sync/internal/domain"
	"github.com/mfujita/star-list-sync/internal/gql"
)

// createSpec is one list pending creation.
type createSpec struct {
	Key         string // category key
	DisplayName string
	Description string
}

// GetAllLists fetches the viewer's lists, single page up to the
// GitHub list cap. Failures degrade to an empty slice.
func (s *Syncer) GetAllLists(ctx context.Context) []domain.RemoteList {
	query := fmt.Sprintf(`query {
  viewer {
    lists(first: %d) {
      nodes { id name description }
    }
  }
}`, listPageSize)

	resp, err := s.listClient.Execute(ctx, query)
	if err != nil {
		logrus.WithField("error", err).Error("get_lists_failed")
		return nil
	}

	var viewer struct {
		Lists struct {
			Nodes []domain.RemoteList `json:"nodes"`
		} `json:"lists"`
	}
	raw := resp.Node("viewer")
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, &viewer); err != nil {
		logrus.WithField("error", err).Error("get_lists_failed")
		return nil
	}
	return viewer.Lists.Nodes
}

// deleteList removes one list. A list that is already gone counts as
// deleted.
func (s *Syncer) deleteList(ctx context.Context, listID, listName string) bool {
	if listID == "" {
		return false
	}
	mutation := fmt.Sprintf(`mutation {
  deleteUserList(input: { listId: "%s" }) {
    clientMutationId
  }
}`, gql.Escape(listID))

	resp, err := s.listClient.Execute(ctx, mutation)
	if err != nil {
		if gql.IsNodeNotFound(err.Error()) {
			return true
		}
		logrus.WithFields(logrus.Fields{"name": listName, "reason": err}).Error("list_delete_failed")
		return false
	}

	if len(resp.Errors) > 0 {
		allGone := true
		for _, m := range resp.Messages() {
			if !gql.IsNodeNotFound(m) {
				allGone = false
			}
		}
		if allGone {
			return true
		}
		logrus.WithFields(logrus.Fields{
			"name":   listName,
			"reason": strings.Join(resp.Messages(), "; "),
		}).Error("list_delete_failed")
		return false
	}

	if resp.Node("deleteUserList") != nil {
		logrus.WithField("name", listName).Info("list_deleted")
		return true
	}
	return false
}

// PurgeAllLists deletes every remote list: list, delete concurrently,
// re-list, for a bounded number of rounds. Lists that survive all
// rounds are logged and reported but never abort the run.
func (s *Syncer) PurgeAllLists(ctx context.Context) (deleted, remaining int) {
	existing := s.GetAllLists(ctx)
	logrus.WithField("count", len(existing)).Info("existing_lists_found")

	for round := 1; round <= purgeRounds && len(existing) > 0; round++ {
		logrus.WithFields(logrus.Fields{"round": round, "remaining": len(existing)}).Info("delete_round")

		workers := s.listWorkers
		if workers > len(existing) {
			workers = len(existing)
		}
		results := make(chan bool, len(existing))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, lst := range existing {
			lst := lst
			g.Go(func() error {
				results <- s.deleteList(gctx, lst.ID, lst.Name)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
		for ok := range results {
			if ok {
				deleted++
			}
		}

		select {
		case <-ctx.Done():
			return deleted, len(existing)
		case <-time.After(purgeRoundPause):
		}
		existing = s.GetAllLists(ctx)
	}

	if len(existing) > 0 {
		logrus.WithField("remaining", len(existing)).Error("delete_incomplete")
	} else {
		logrus.WithField("count", deleted).Info("all_lists_deleted")
	}
	return deleted, len(existing)
}

// createLists creates the given lists in fixed-size batches through
// the bisecting runner. Categories whose creation ultimately fails are
// absent from the returned map.
func (s *Syncer) createLists(ctx context.Context, specs []createSpec) map[string]string {
	if len(specs) == 0 {
		return map[string]string{}
	}

	attempt := func(ctx context.Context, batch []createSpec) (map[string]string, string, bool) {
		var b strings.Builder
		b.WriteString("mutation {\n")
		aliases := make([]string, len(batch))
		for i, spec := range batch {
			alias := fmt.Sprintf("c%d", i)
			aliases[i] = alias
			desc := strings.ReplaceAll(spec.Description, "\n", " ")
			fmt.Fprintf(&b, "  %s: createUserList(input: { name: \"%s\", description: \"%s\" }) { list { id name } }\n",
				alias, gql.Escape(spec.DisplayName), gql.Escape(desc))
		}
		b.WriteString("}")

		resp, errText, split := executeBatch(ctx, s.listClient, b.String())
		if split {
			return nil, errText, true
		}

		byAlias := resp.ErrorsByAlias()
		out := map[string]string{}
		for i, spec := range batch {
			var node struct {
				List struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"list"`
			}
			raw := resp.Node(aliases[i])
			if raw != nil {
				if err := json.Unmarshal(raw, &node); err == nil && node.List.ID != "" {
					out[spec.Key] = node.List.ID
					logrus.WithFields(logrus.Fields{"name": node.List.Name, "category": spec.Key}).Info("list_created")
					continue
				}
			}
			reason := strings.Join(byAlias[aliases[i]], "; ")
			if reason == "" {
				if errText != "" {
					reason = errText
				} else {
					reason = "no id"
				}
			}
			logrus.WithFields(logrus.Fields{"category": spec.Key, "reason": reason}).Error("list_create_failed")
		}
		return out, "", false
	}

	merge := func(a, b map[string]string) map[string]string {
		for k, v := range b {
			a[k] = v
		}
		return a
	}

	leafFail := func(batch []createSpec, errText string) map[string]string {
		for _, spec := range batch {
			logrus.WithFields(logrus.Fields{
				"name":     spec.DisplayName,
				"category": spec.Key,
				"reason":   errText,
			}).Error("list_create_failed")
		}
		return map[string]string{}
	}

	listIDs := map[string]string{}
	forEachBatch(ctx, chunk(specs, createBatchSize), s.listWorkers,
		func(ctx context.Context, batch []createSpec) map[string]string {
			return runBisect(ctx, batch, attempt, merge, leafFail)
		},
		func(part map[string]string) {
			for k, v := range part {
				listIDs[k] = v
			}
		})
	return listIDs
}

// ResolveListIDs maps the needed categories to remote list ids,
// creating lists that do not exist yet. Existing lists match on the
// derived display name, case-insensitively.
func (s *Syncer) ResolveListIDs(ctx context.Context, organized domain.OrganizedStars, needed map[string]bool) map[string]string {
	existing := s.GetAllLists(ctx)
	existingByLower := map[string]string{}
	for _, lst := range existing {
		existingByLower[strings.ToLower(strings.TrimSpace(lst.Name))] = lst.ID
	}

	listIDs := map[string]string{}
	var toCreate []createSpec

	for catName, catData := range organized {
		if needed != nil && !needed[catName] {
			continue
		}
		if catData == nil || (len(catData.Repos) == 0 && catData.Description == "") {
			continue
		}
		display := domain.FormatListName(catName)
		if id, ok := existingByLower[strings.ToLower(strings.TrimSpace(display))]; ok && id != "" {
			listIDs[catName] = id
		} else {
			toCreate = append(toCreate, createSpec{
				Key:         catName,
				DisplayName: display,
				Description: catData.Description,
			})
		}
	}

	if len(listIDs)+len(toCreate) > maxGitHubLists {
		logrus.WithFields(logrus.Fields{
			"needed": len(listIDs) + len(toCreate),
			"cap":    maxGitHubLists,
		}).Warn("list_cap_exceeded")
	}

	if len(toCreate) > 0 {
		for k, v := range s.createLists(ctx, toCreate) {
			listIDs[k] = v
		}
	}
	return listIDs
}

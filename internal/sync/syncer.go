package sync

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mfujita/star-list-sync/internal/config"
	"github.com/mfujita/star-list-sync/internal/domain"
	"github.com/mfujita/star-list-sync/internal/gql"
	"github.com/mfujita/star-list-sync/internal/ratelimit"
	"github.com/mfujita/star-list-sync/internal/store"
)

// Syncer reconciles the local categorized assignment against GitHub
// user lists. List and item operations are paced by independent
// limiters shared across all workers of their class.
type Syncer struct {
	listClient *gql.Client
	itemClient *gql.Client

	listWorkers int
	syncWorkers int

	statePath string
}

// New builds a syncer on top of the given executor.
func New(exec gql.Executor, cfg *config.Config) *Syncer {
	return &Syncer{
		listClient:  gql.NewClient(exec, ratelimit.New(cfg.ListRateInterval)),
		itemClient:  gql.NewClient(exec, ratelimit.New(cfg.ItemRateInterval)),
		listWorkers: cfg.ListWorkers,
		syncWorkers: cfg.SyncWorkers,
		statePath:   cfg.StateFile,
	}
}

// buildTasks derives the run's task set from the categorized data,
// filtered against the already-synced URL set unless reset is on.
// Exactly one task per canonical URL survives.
func buildTasks(organized domain.OrganizedStars, alreadySynced map[string]bool, reset bool) []domain.SyncTask {
	var tasks []domain.SyncTask
	seen := map[string]bool{}
	for catName, catData := range organized {
		if catData == nil {
			continue
		}
		for _, repo := range catData.Repos {
			url := domain.CanonicalRepoURL(repo.URL)
			if url == "" || seen[url] {
				continue
			}
			if !reset && alreadySynced[url] {
				continue
			}
			owner, name := domain.ParseRepoURL(url)
			if owner == "" || name == "" {
				continue
			}
			seen[url] = true
			tasks = append(tasks, domain.SyncTask{
				Category: catName,
				FullName: owner + "/" + name,
				URL:      url,
			})
		}
	}
	return tasks
}

// Run executes one reconciliation pass and persists the merged sync
// state. Individual failures are absorbed into the report; Run itself
// only errors when the updated state cannot be written.
func (s *Syncer) Run(ctx context.Context, organized domain.OrganizedStars, alreadySynced map[string]bool, reset bool) (*domain.Report, error) {
	report := domain.NewReport()
	defer func() { report.FinishedAt = time.Now() }()

	tasks := buildTasks(organized, alreadySynced, reset)
	report.Tasks = len(tasks)
	report.TotalSynced = len(alreadySynced)
	if len(tasks) == 0 {
		logrus.Info("nothing_to_sync")
		return report, nil
	}

	pairSet := map[domain.RepoPair]bool{}
	for _, t := range tasks {
		owner, name := domain.ParseRepoURL(t.URL)
		pairSet[domain.RepoPair{Owner: owner, Name: name}] = true
	}
	pairs := make([]domain.RepoPair, 0, len(pairSet))
	for p := range pairSet {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].FullName() < pairs[j].FullName() })
	report.UniqueRepos = len(pairs)

	logrus.WithFields(logrus.Fields{
		"repos_to_sync": len(tasks),
		"unique_repos":  len(pairs),
		"reset":         reset,
	}).Info("sync_plan")

	// On reset, purging and repo-id resolution are independent and run
	// concurrently; both must finish before list resolution so that
	// list creation never races a purge still in flight.
	var repoIDs map[domain.RepoPair]string
	g, gctx := errgroup.WithContext(ctx)
	if reset {
		g.Go(func() error {
			_, remaining := s.PurgeAllLists(gctx)
			report.UnpurgedLists = remaining
			return nil
		})
	}
	g.Go(func() error {
		repoIDs = s.FetchRepoIDs(gctx, pairs)
		return nil
	})
	_ = g.Wait()

	logrus.WithFields(logrus.Fields{"found": len(repoIDs), "total": len(pairs)}).Info("repo_ids_resolved")

	needed := map[string]bool{}
	for _, t := range tasks {
		needed[t.Category] = true
	}
	listIDs := s.ResolveListIDs(ctx, organized, needed)
	logrus.WithField("count", len(listIDs)).Info("lists_ready")

	var ops []domain.AddOp
	fullNameToURL := map[string]string{}
	for _, t := range tasks {
		listID := listIDs[t.Category]
		if listID == "" {
			report.SkippedMissingList++
			continue
		}
		owner, name := domain.ParseRepoURL(t.URL)
		repoID := repoIDs[domain.RepoPair{Owner: owner, Name: name}]
		if repoID == "" {
			report.SkippedMissingRepo++
			continue
		}
		ops = append(ops, domain.AddOp{
			Category: t.Category,
			RepoID:   repoID,
			FullName: t.FullName,
			ListID:   listID,
		})
		fullNameToURL[t.FullName] = t.URL
	}
	if report.SkippedMissingRepo > 0 {
		logrus.WithField("count", report.SkippedMissingRepo).Info("repos_skipped_no_id")
	}
	if report.SkippedMissingList > 0 {
		logrus.WithField("count", report.SkippedMissingList).Info("repos_skipped_no_list")
	}

	stats := s.AddReposToLists(ctx, ops)
	report.Attempted = stats.Attempted
	report.Succeeded = stats.Succeeded
	report.PerCategory = stats.PerCategory
	report.FailureKinds = stats.FailureKinds

	logrus.WithFields(logrus.Fields{
		"added":   report.Succeeded,
		"failed":  report.Failed(),
		"skipped": report.SkippedMissingList + report.SkippedMissingRepo,
	}).Info("sync_complete")

	updated := map[string]bool{}
	for u := range alreadySynced {
		updated[u] = true
	}
	for fullName := range stats.SyncedRepos {
		url := fullNameToURL[fullName]
		if url == "" {
			url = domain.CanonicalRepoURL("https://github.com/" + fullName)
		}
		if url != "" && !updated[url] {
			updated[url] = true
			report.NewlySynced++
		}
	}
	report.TotalSynced = len(updated)

	if err := store.SaveSyncState(s.statePath, updated); err != nil {
		return report, err
	}
	logrus.WithFields(logrus.Fields{
		"total_synced": report.TotalSynced,
		"newly_added":  report.NewlySynced,
	}).Info("sync_state_saved")
	return report, nil
}

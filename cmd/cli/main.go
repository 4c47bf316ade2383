package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mfujita/star-list-sync/internal/config"
	"github.com/mfujita/star-list-sync/internal/domain"
	"github.com/mfujita/star-list-sync/internal/gql"
	"github.com/mfujita/star-list-sync/internal/starfetch"
	"github.com/mfujita/star-list-sync/internal/store"
	syncengine "github.com/mfujita/star-list-sync/internal/sync"
)

var (
	reset        bool
	dryRun       bool
	dataFile     string
	stateFile    string
	metadataFile string
	limit        int
)

var rootCmd = &cobra.Command{
	Use:   "star-list-sync",
	Short: "Sync categorized GitHub stars into GitHub lists",
	Long: `A CLI tool that reconciles a locally categorized set of starred
repositories against GitHub user lists.

It reads the categorized-data file produced by the categorization step,
filters out repositories already recorded in the sync state, and issues
batched GraphQL mutations to place each repository in its list.`,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile categorized stars with GitHub lists",
	Long: `Run one reconciliation pass: resolve repository and list ids,
create missing lists, add repositories to their lists, and persist the
updated sync state. With --reset, all remote lists are deleted first
and every repository is re-synced.`,
	RunE: runSync,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all GitHub lists",
	Long:  `Delete every list on the authenticated account. Used to recover from a broken remote state without running a full sync.`,
	RunE:  runPurge,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch starred repositories and write their metadata",
	Long: `Fetch every starred repository of the authenticated user, extract
readme excerpts, and write the metadata file the categorization step
consumes.`,
	RunE: runFetch,
}

var deadlinksCmd = &cobra.Command{
	Use:   "deadlinks",
	Short: "Audit starred repositories for dead links",
	Long:  `Probe every starred repository and report the ones that are gone (deleted, blocked, or made private).`,
	RunE:  runDeadlinks,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataFile, "data-file", "", "categorized data file (default from DATA_FILE)")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "sync state file (default from STATE_FILE)")

	syncCmd.Flags().BoolVar(&reset, "reset", false, "delete all lists and re-sync everything")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "derive the task set and report without touching GitHub")

	fetchCmd.Flags().StringVar(&metadataFile, "metadata-file", "", "metadata output file (default from METADATA_FILE)")
	fetchCmd.Flags().IntVar(&limit, "limit", 0, "limit starred repos fetched (for testing)")
	deadlinksCmd.Flags().IntVar(&limit, "limit", 0, "limit starred repos fetched (for testing)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(deadlinksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads and validates config, applying flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataFile != "" {
		cfg.DataFile = dataFile
	}
	if stateFile != "" {
		cfg.StateFile = stateFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	organized := store.LoadOrganizedStars(cfg.DataFile)
	if len(organized) == 0 {
		return fmt.Errorf("no categorized data in %s", cfg.DataFile)
	}

	alreadySynced := map[string]bool{}
	if !reset {
		alreadySynced = store.LoadSyncState(cfg.StateFile)
	}

	ctx := context.Background()

	if dryRun {
		printDryRun(organized, alreadySynced)
		return nil
	}

	syncer := syncengine.New(gql.NewHTTPExecutor(cfg.GitHubToken), cfg)
	report, err := syncer.Run(ctx, organized, alreadySynced, reset)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printReport(report)
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	syncer := syncengine.New(gql.NewHTTPExecutor(cfg.GitHubToken), cfg)
	deleted, remaining := syncer.PurgeAllLists(context.Background())

	fmt.Printf("Deleted %d lists", deleted)
	if remaining > 0 {
		fmt.Printf(", %d could not be deleted", remaining)
	}
	fmt.Println()
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if metadataFile != "" {
		cfg.MetadataFile = metadataFile
	}

	ctx := context.Background()
	fetcher := starfetch.NewFetcher(cfg.GitHubToken)

	fmt.Println("Fetching starred repositories...")
	repos, err := fetcher.FetchStarred(ctx, limit)
	if err != nil {
		logrus.WithField("error", err).Warn("starred_fetch_incomplete")
	}
	if len(repos) == 0 {
		return fmt.Errorf("no starred repositories fetched")
	}

	metadata := fetcher.ExtractMetadata(ctx, repos)
	if err := store.SaveRepoMetadata(cfg.MetadataFile, metadata); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	fmt.Printf("Wrote metadata for %d repositories to %s\n", len(metadata), cfg.MetadataFile)
	return nil
}

func runDeadlinks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	fetcher := starfetch.NewFetcher(cfg.GitHubToken)

	fmt.Println("Fetching starred repositories...")
	repos, err := fetcher.FetchStarred(ctx, limit)
	if err != nil {
		logrus.WithField("error", err).Warn("starred_fetch_incomplete")
	}
	if len(repos) == 0 {
		return fmt.Errorf("no starred repositories fetched")
	}
	fmt.Printf("Checking %d repositories...\n", len(repos))

	audit := fetcher.FindDeadRepos(ctx, repos)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Repository", "Status"})
	sort.Strings(audit.Dead)
	for _, name := range audit.Dead {
		table.Append([]string{name, fmt.Sprintf("%d", audit.Statuses[name])})
	}
	table.Render()

	fmt.Printf("\n%d dead, %d uncertain, %d checked\n", len(audit.Dead), len(audit.Uncertain), len(audit.Statuses))
	return nil
}

// printDryRun reports what a sync run would attempt, without issuing
// any remote call.
func printDryRun(organized domain.OrganizedStars, alreadySynced map[string]bool) {
	pending := map[string]int{}
	total := 0
	for catName, catData := range organized {
		if catData == nil {
			continue
		}
		for _, repo := range catData.Repos {
			url := domain.CanonicalRepoURL(repo.URL)
			if url == "" || alreadySynced[url] {
				continue
			}
			pending[catName]++
			total++
		}
	}

	fmt.Printf("\nDry run: %d repositories pending sync\n\n", total)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Category", "Pending"})
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		table.Append([]string{domain.FormatListName(name), fmt.Sprintf("%d", pending[name])})
	}
	table.Render()
}

func printReport(report *domain.Report) {
	fmt.Printf("\nSync Report (run %s)\n", report.RunID)
	fmt.Printf("Duration: %s\n\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Tasks", fmt.Sprintf("%d", report.Tasks)})
	table.Append([]string{"Unique Repositories", fmt.Sprintf("%d", report.UniqueRepos)})
	table.Append([]string{"Attempted", fmt.Sprintf("%d", report.Attempted)})
	table.Append([]string{"Succeeded", fmt.Sprintf("%d", report.Succeeded)})
	table.Append([]string{"Failed", fmt.Sprintf("%d", report.Failed())})
	table.Append([]string{"Skipped (no list)", fmt.Sprintf("%d", report.SkippedMissingList)})
	table.Append([]string{"Skipped (no repo id)", fmt.Sprintf("%d", report.SkippedMissingRepo)})
	table.Append([]string{"Unpurged Lists", fmt.Sprintf("%d", report.UnpurgedLists)})
	table.Append([]string{"Newly Synced", fmt.Sprintf("%d", report.NewlySynced)})
	table.Append([]string{"Total Synced", fmt.Sprintf("%d", report.TotalSynced)})
	table.Append([]string{"Success Rate", fmt.Sprintf("%.1f%%", report.SuccessRate())})
	table.Render()

	if len(report.PerCategory) > 0 {
		fmt.Println("\nPer category:")
		catTable := tablewriter.NewWriter(os.Stdout)
		catTable.SetHeader([]string{"Category", "Added"})
		type catCount struct {
			name  string
			count int
		}
		cats := make([]catCount, 0, len(report.PerCategory))
		for name, count := range report.PerCategory {
			cats = append(cats, catCount{name, count})
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i].count > cats[j].count })
		for _, c := range cats {
			catTable.Append([]string{domain.FormatListName(c.name), fmt.Sprintf("%d", c.count)})
		}
		catTable.Render()
	}

	if len(report.FailureKinds) > 0 {
		fmt.Println("\nFailures by kind:")
		failTable := tablewriter.NewWriter(os.Stdout)
		failTable.SetHeader([]string{"Kind", "Count"})
		kinds := make([]string, 0, len(report.FailureKinds))
		for kind := range report.FailureKinds {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			failTable.Append([]string{kind, fmt.Sprintf("%d", report.FailureKinds[kind])})
		}
		failTable.Render()
	}
}

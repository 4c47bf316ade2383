package starfetch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/go-github/v55/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/mfujita/star-list-sync/internal/domain"
)

const (
	readmeLinesToFetch = 150
	metadataWorkers    = 15
)

// Fetcher reads the viewer's starred repositories over the GitHub
// REST API.
type Fetcher struct {
	client *github.Client
}

// NewFetcher creates a fetcher authenticated with the token.
func NewFetcher(token string) *Fetcher {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Fetcher{client: github.NewClient(tc)}
}

// FetchStarred retrieves all starred repositories for the
// authenticated user. limit > 0 caps the result (used for test runs).
func (f *Fetcher) FetchStarred(ctx context.Context, limit int) ([]*github.Repository, error) {
	var all []*github.Repository
	opts := &github.ActivityListStarredOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		logrus.WithField("page", opts.Page).Info("fetching_page")
		starred, resp, err := f.client.Activity.ListStarred(ctx, "", opts)
		if err != nil {
			return all, fmt.Errorf("failed to list starred repos: %w", err)
		}

		for _, s := range starred {
			if s.Repository != nil {
				all = append(all, s.Repository)
			}
		}

		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			logrus.WithField("limit", limit).Info("test_limit_reached")
			break
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// fetchReadme returns the first readmeLinesToFetch non-blank lines of
// a repository's readme, empty on any failure.
func (f *Fetcher) fetchReadme(ctx context.Context, owner, name string) string {
	readme, _, err := f.client.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		return ""
	}
	content, err := readme.GetContent()
	if err != nil {
		return ""
	}

	var kept []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) >= readmeLinesToFetch {
			break
		}
	}
	return strings.Join(kept, "\n")
}

func buildMetadata(repo *github.Repository, readme string) domain.RepoMetadata {
	return domain.RepoMetadata{
		URL:         repo.GetHTMLURL(),
		Name:        repo.GetName(),
		FullName:    repo.GetFullName(),
		Description: repo.GetDescription(),
		Topics:      repo.Topics,
		Readme:      readme,
	}
}

// ExtractMetadata builds RepoMetadata for every repo, fetching readme
// excerpts in parallel. Readme failures degrade to empty excerpts.
func (f *Fetcher) ExtractMetadata(ctx context.Context, repos []*github.Repository) []domain.RepoMetadata {
	if len(repos) == 0 {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"total":   len(repos),
		"workers": metadataWorkers,
	}).Info("starting_metadata_extraction")

	results := make([]domain.RepoMetadata, len(repos))
	for i, r := range repos {
		results[i] = buildMetadata(r, "")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0
	semaphore := make(chan struct{}, metadataWorkers)

	for i, repo := range repos {
		wg.Add(1)
		go func(idx int, r *github.Repository) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			readme := f.fetchReadme(ctx, r.GetOwner().GetLogin(), r.GetName())
			results[idx] = buildMetadata(r, readme)

			mu.Lock()
			completed++
			if completed%50 == 0 {
				logrus.WithFields(logrus.Fields{"completed": completed, "total": len(repos)}).Info("metadata_progress")
			}
			mu.Unlock()
		}(i, repo)
	}
	wg.Wait()

	logrus.WithField("total", len(results)).Info("metadata_extraction_complete")
	return results
}

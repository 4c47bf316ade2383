package starfetch

import (
	"context"
	"strings"
	"sync"

	"github.com/google/go-github/v55/github"
	"github.com/sirupsen/logrus"
)

const deadCheckWorkers = 10

// Status codes recorded by the dead-link audit. Negative values stand
// in for transport-level outcomes.
const (
	StatusRequestError = -1
	StatusTimeout      = -2
)

var deadStatusCodes = map[int]bool{403: true, 404: true, 410: true, 451: true}

// AuditResult is the outcome of a dead-link audit over the starred set.
type AuditResult struct {
	Dead      []string       // full names that are gone
	Uncertain []string       // rate-limited or transport failures
	Statuses  map[string]int // full name -> HTTP status (or sentinel)
}

// checkRepoAlive probes one repository and returns its HTTP status.
func (f *Fetcher) checkRepoAlive(ctx context.Context, fullName string) int {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 {
		return StatusRequestError
	}

	_, resp, err := f.client.Repositories.Get(ctx, parts[0], parts[1])
	if resp != nil {
		if resp.StatusCode == 403 && resp.Rate.Remaining == 0 {
			logrus.WithFields(logrus.Fields{"repo": fullName, "reset": resp.Rate.Reset}).Warn("rate_limit_hit")
			return 429
		}
		return resp.StatusCode
	}
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			logrus.WithFields(logrus.Fields{"repo": fullName, "error": err}).Warn("dead_check_timeout")
			return StatusTimeout
		}
		logrus.WithFields(logrus.Fields{"repo": fullName, "error": err}).Warn("dead_check_error")
	}
	return StatusRequestError
}

// FindDeadRepos probes every starred repository and classifies it as
// alive, dead, or uncertain based on the response status.
func (f *Fetcher) FindDeadRepos(ctx context.Context, repos []*github.Repository) *AuditResult {
	result := &AuditResult{Statuses: map[string]int{}}
	if len(repos) == 0 {
		return result
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, deadCheckWorkers)

	for _, repo := range repos {
		fullName := repo.GetFullName()
		if fullName == "" {
			continue
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			status := f.checkRepoAlive(ctx, name)

			mu.Lock()
			result.Statuses[name] = status
			switch {
			case deadStatusCodes[status]:
				result.Dead = append(result.Dead, name)
			case status == 429 || status == StatusRequestError || status == StatusTimeout:
				result.Uncertain = append(result.Uncertain, name)
			}
			mu.Unlock()
		}(fullName)
	}
	wg.Wait()

	logrus.WithFields(logrus.Fields{
		"checked":   len(result.Statuses),
		"dead":      len(result.Dead),
		"uncertain": len(result.Uncertain),
	}).Info("dead_check_complete")
	return result
}

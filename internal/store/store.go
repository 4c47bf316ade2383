package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfujita/star-list-sync/internal/domain"
)

// syncStateFile is the on-disk shape of the sync state.
type syncStateFile struct {
	Version        int      `json:"version"`
	LastUpdatedAt  string   `json:"last_updated_at"`
	SyncedRepoURLs []string `json:"synced_repo_urls"`
}

// LoadOrganizedStars reads the categorized-data file. A missing file
// yields an empty map; malformed files are logged and also yield an
// empty map so a bad categorizer run never aborts a sync.
func LoadOrganizedStars(path string) domain.OrganizedStars {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithFields(logrus.Fields{"file": path, "error": err}).Error("load_organized_stars_failed")
		}
		return domain.OrganizedStars{}
	}

	var data domain.OrganizedStars
	if err := json.Unmarshal(raw, &data); err != nil {
		logrus.WithFields(logrus.Fields{"file": path, "error": err}).Error("load_organized_stars_failed")
		return domain.OrganizedStars{}
	}

	for _, cat := range data {
		if cat != nil && cat.Repos == nil {
			cat.Repos = []domain.RepoAssignment{}
		}
	}
	return data
}

// SaveOrganizedStars writes the categorized-data file.
func SaveOrganizedStars(path string, data domain.OrganizedStars) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode organized stars: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SaveRepoMetadata writes the starred-repo metadata file the
// categorization step consumes.
func SaveRepoMetadata(path string, repos []domain.RepoMetadata) error {
	raw, err := json.MarshalIndent(repos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode repo metadata: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadSyncState reads the set of canonical repo URLs already synced.
// Missing or unreadable state degrades to an empty set and the run
// re-attempts everything.
func LoadSyncState(path string) map[string]bool {
	synced := map[string]bool{}
	if path == "" {
		return synced
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithFields(logrus.Fields{"file": path, "error": err}).Warn("sync_state_load_failed")
		}
		return synced
	}

	var state syncStateFile
	if err := json.Unmarshal(raw, &state); err != nil {
		logrus.WithFields(logrus.Fields{"file": path, "error": err}).Warn("sync_state_load_failed")
		return synced
	}

	for _, u := range state.SyncedRepoURLs {
		if c := domain.CanonicalRepoURL(u); c != "" {
			synced[c] = true
		}
	}
	return synced
}

// SaveSyncState writes the synced URL set, sorted, with a version tag
// and an update timestamp.
func SaveSyncState(path string, synced map[string]bool) error {
	if path == "" {
		return nil
	}

	urls := make([]string, 0, len(synced))
	for u := range synced {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	state := syncStateFile{
		Version:        1,
		LastUpdatedAt:  time.Now().UTC().Format(time.RFC3339),
		SyncedRepoURLs: urls,
	}
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sync state: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ExtractAllRepoURLs collects every assignment URL across categories.
func ExtractAllRepoURLs(organized domain.OrganizedStars) map[string]bool {
	urls := map[string]bool{}
	for _, cat := range organized {
		if cat == nil {
			continue
		}
		for _, repo := range cat.Repos {
			if repo.URL != "" {
				urls[repo.URL] = true
			}
		}
	}
	return urls
}

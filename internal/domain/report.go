package domain

import (
	"time"

	"github.com/google/uuid"
)

// Report aggregates the outcome of one reconciliation run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Tasks       int
	UniqueRepos int

	Attempted int
	Succeeded int

	// Skips, tracked separately by reason
	SkippedMissingList int
	SkippedMissingRepo int

	// Lists that survived all purge rounds (reset runs only)
	UnpurgedLists int

	PerCategory  map[string]int
	FailureKinds map[string]int

	NewlySynced int
	TotalSynced int
}

// NewReport creates a report stamped with a fresh run id.
func NewReport() *Report {
	return &Report{
		RunID:        uuid.New().String(),
		StartedAt:    time.Now(),
		PerCategory:  map[string]int{},
		FailureKinds: map[string]int{},
	}
}

// Failed is the number of attempted operations that did not succeed.
func (r *Report) Failed() int {
	return r.Attempted - r.Succeeded
}

// SuccessRate is the percentage of attempted operations that succeeded.
func (r *Report) SuccessRate() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Attempted) * 100
}

package domain

// RepoAssignment is one categorized repository as produced by the
// categorization step.
type RepoAssignment struct {
	URL         string `json:"url"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`
}

// Category is one classification bucket with its assigned repositories.
type Category struct {
	Description string           `json:"description"`
	Repos       []RepoAssignment `json:"repos"`
}

// OrganizedStars maps category name to its data. This is the on-disk
// shape of the categorized-data file.
type OrganizedStars map[string]*Category

// RemoteList is a GitHub user list.
type RemoteList struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RepoPair identifies a repository by owner and name.
type RepoPair struct {
	Owner string
	Name  string
}

func (p RepoPair) FullName() string {
	return p.Owner + "/" + p.Name
}

// SyncTask is one pending add-to-list operation, derived per run from
// the categorized data filtered against the sync state.
type SyncTask struct {
	Category string
	FullName string
	URL      string
}

// AddOp is a fully resolved add-to-list mutation input.
type AddOp struct {
	Category string
	RepoID   string
	FullName string
	ListID   string
}

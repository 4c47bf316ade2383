package domain

// RepoMetadata is the textual material handed to the categorization
// step for one starred repository.
type RepoMetadata struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
	Readme      string   `json:"readme"`
}

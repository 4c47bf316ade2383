package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	graphqlEndpoint = "https://api.github.com/graphql"
	requestTimeout  = 30 * time.Second
)

// QueryError is one entry of a GraphQL response's top-level error list.
type QueryError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Path    []any  `json:"path,omitempty"`
}

// Alias returns the top-level alias the error is attached to, or
// "unknown" when the path is empty.
func (e QueryError) Alias() string {
	if len(e.Path) == 0 {
		return "unknown"
	}
	return fmt.Sprint(e.Path[0])
}

// Response is a parsed GraphQL response document. Errors may be
// populated alongside partial Data; callers classify them.
type Response struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []QueryError               `json:"errors"`
}

// Node returns the payload for one alias, nil when absent or null.
func (r *Response) Node(alias string) json.RawMessage {
	raw, ok := r.Data[alias]
	if !ok || string(raw) == "null" {
		return nil
	}
	return raw
}

// Messages flattens all error messages.
func (r *Response) Messages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// ErrorsByAlias groups error messages by the alias they point at.
func (r *Response) ErrorsByAlias() map[string][]string {
	grouped := map[string][]string{}
	for _, e := range r.Errors {
		alias := e.Alias()
		grouped[alias] = append(grouped[alias], e.Message)
	}
	return grouped
}

// Executor sends one GraphQL document and returns the parsed response.
// A non-nil error means the channel itself failed (network error or a
// body that is not a GraphQL response document); semantic errors come
// back inside the Response.
type Executor interface {
	Do(ctx context.Context, query string) (*Response, error)
}

// httpExecutor talks to the GitHub GraphQL endpoint over an
// authenticated HTTP client.
type httpExecutor struct {
	client   *http.Client
	endpoint string
}

// NewHTTPExecutor creates an Executor authenticated with the token.
func NewHTTPExecutor(token string) Executor {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	client := oauth2.NewClient(context.Background(), ts)
	client.Timeout = requestTimeout

	return &httpExecutor{
		client:   client,
		endpoint: graphqlEndpoint,
	}
}

func (e *httpExecutor) Do(ctx context.Context, query string) (*Response, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("non-parseable response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Data == nil && len(parsed.Errors) == 0 {
		return nil, fmt.Errorf("empty graphql response (status %d)", resp.StatusCode)
	}
	return &parsed, nil
}

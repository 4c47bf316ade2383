package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mfujita/star-list-sync/internal/config"
	"github.com/mfujita/star-list-sync/internal/domain"
	"github.com/mfujita/star-list-sync/internal/gql"
)

func TestMain(m *testing.M) {
	purgeRoundPause = time.Millisecond
	internalErrorRetryDelay = time.Millisecond
	os.Exit(m.Run())
}

var (
	reRepoAlias   = regexp.MustCompile(`(r\d+): repository\(owner: "([^"]*)", name: "([^"]*)"\)`)
	reCreateAlias = regexp.MustCompile(`(c\d+): createUserList\(input: \{ name: "([^"]*)"`)
	reAddAlias    = regexp.MustCompile(`(a\d+): updateUserListsForItem\(input: \{ itemId: "([^"]*)", listIds: \["([^"]*)"\]`)
	reDeleteList  = regexp.MustCompile(`deleteUserList\(input: \{ listId: "([^"]*)" \}\)`)
)

func mustRaw(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func resourceLimitResponse() *gql.Response {
	return &gql.Response{
		Data:   map[string]json.RawMessage{},
		Errors: []gql.QueryError{{Message: "Resource limits for this query exceeded"}},
	}
}

func internalErrorResponse() *gql.Response {
	return &gql.Response{
		Data:   map[string]json.RawMessage{},
		Errors: []gql.QueryError{{Message: "Something went wrong while executing your query"}},
	}
}

// fakeGitHub simulates the GraphQL surface the engine talks to: a
// mutable set of lists plus a fixed set of resolvable repositories.
type fakeGitHub struct {
	mu          sync.Mutex
	lists       []domain.RemoteList
	nextListID  int
	repoIDs     map[string]string // "owner/name" -> node id
	stickyLists map[string]bool   // list ids whose deletion always fails
	calls       []string

	// intercept, when set, sees every call first; handled short-circuits.
	intercept func(query string) (*gql.Response, error, bool)
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		repoIDs:     map[string]string{},
		stickyLists: map[string]bool{},
	}
}

func (f *fakeGitHub) addRepo(fullName string) {
	f.repoIDs[fullName] = "R_" + fullName
}

func (f *fakeGitHub) addList(id, name string) {
	f.lists = append(f.lists, domain.RemoteList{ID: id, Name: name})
}

func (f *fakeGitHub) Do(ctx context.Context, query string) (*gql.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)

	if f.intercept != nil {
		if resp, err, handled := f.intercept(query); handled {
			return resp, err
		}
	}

	switch {
	case strings.Contains(query, "createUserList"):
		data := map[string]json.RawMessage{}
		for _, m := range reCreateAlias.FindAllStringSubmatch(query, -1) {
			alias, name := m[1], m[2]
			f.nextListID++
			id := fmt.Sprintf("LIST%d", f.nextListID)
			f.lists = append(f.lists, domain.RemoteList{ID: id, Name: name})
			data[alias] = mustRaw(map[string]any{"list": map[string]string{"id": id, "name": name}})
		}
		return &gql.Response{Data: data}, nil

	case strings.Contains(query, "deleteUserList"):
		m := reDeleteList.FindStringSubmatch(query)
		id := m[1]
		if f.stickyLists[id] {
			return &gql.Response{
				Data:   map[string]json.RawMessage{"deleteUserList": json.RawMessage("null")},
				Errors: []gql.QueryError{{Message: "boom"}},
			}, nil
		}
		kept := f.lists[:0]
		found := false
		for _, lst := range f.lists {
			if lst.ID == id {
				found = true
				continue
			}
			kept = append(kept, lst)
		}
		f.lists = kept
		if !found {
			return &gql.Response{
				Data:   map[string]json.RawMessage{"deleteUserList": json.RawMessage("null")},
				Errors: []gql.QueryError{{Message: "Could not resolve to a node with the global id of '" + id + "'"}},
			}, nil
		}
		return &gql.Response{Data: map[string]json.RawMessage{
			"deleteUserList": mustRaw(map[string]string{"clientMutationId": ""}),
		}}, nil

	case strings.Contains(query, "updateUserListsForItem"):
		data := map[string]json.RawMessage{}
		var errs []gql.QueryError
		for _, m := range reAddAlias.FindAllStringSubmatch(query, -1) {
			alias, itemID := m[1], m[2]
			known := false
			for _, id := range f.repoIDs {
				if id == itemID {
					known = true
					break
				}
			}
			if !known {
				data[alias] = json.RawMessage("null")
				errs = append(errs, gql.QueryError{
					Message: "Could not resolve to a node with the global id of '" + itemID + "'",
					Path:    []any{alias},
				})
				continue
			}
			data[alias] = mustRaw(map[string]string{"clientMutationId": ""})
		}
		return &gql.Response{Data: data, Errors: errs}, nil

	case strings.Contains(query, "repository("):
		data := map[string]json.RawMessage{}
		var errs []gql.QueryError
		for _, m := range reRepoAlias.FindAllStringSubmatch(query, -1) {
			alias, owner, name := m[1], m[2], m[3]
			full := owner + "/" + name
			if id, ok := f.repoIDs[full]; ok {
				data[alias] = mustRaw(map[string]string{"id": id, "nameWithOwner": full})
			} else {
				data[alias] = json.RawMessage("null")
				errs = append(errs, gql.QueryError{
					Message: "Could not resolve to a Repository with the name '" + full + "'.",
					Path:    []any{alias},
				})
			}
		}
		return &gql.Response{Data: data, Errors: errs}, nil

	case strings.Contains(query, "viewer"):
		nodes := make([]domain.RemoteList, len(f.lists))
		copy(nodes, f.lists)
		return &gql.Response{Data: map[string]json.RawMessage{
			"viewer": mustRaw(map[string]any{"lists": map[string]any{"nodes": nodes}}),
		}}, nil
	}

	return nil, fmt.Errorf("unrecognized query: %s", query)
}

// callSizes returns the alias count of every recorded call matched by re.
func (f *fakeGitHub) callSizes(re *regexp.Regexp) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sizes []int
	for _, q := range f.calls {
		if n := len(re.FindAllStringSubmatch(q, -1)); n > 0 {
			sizes = append(sizes, n)
		}
	}
	return sizes
}

func (f *fakeGitHub) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestSyncer(t *testing.T, exec gql.Executor) *Syncer {
	t.Helper()
	cfg := &config.Config{
		GitHubToken: "test-token",
		StateFile:   t.TempDir() + "/state.json",
		SyncWorkers: 8,
		ListWorkers: 8,
	}
	return New(exec, cfg)
}

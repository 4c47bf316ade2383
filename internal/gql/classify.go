package gql

import "strings"

// Failure kinds produced by Classify. Best-effort buckets derived from
// GitHub's error message text; every failure lands in exactly one.
const (
	KindNotFound         = "not_found"
	KindRateLimit        = "rate_limit"
	KindPermissionDenied = "permission_denied"
	KindTimeout          = "timeout"
	KindInternalError    = "github_internal_error"
	KindUnknown          = "unknown"
)

// IsResourceLimit reports whether the message is GitHub's query-cost
// rejection. These are batch-wide: GitHub does not say which alias
// pushed the document over the limit.
func IsResourceLimit(msg string) bool {
	return strings.Contains(msg, "Resource limits for this query exceeded")
}

// IsInternalError reports whether the message is GitHub's transient
// server-side failure.
func IsInternalError(msg string) bool {
	return strings.Contains(msg, "Something went wrong while executing your query")
}

// IsNodeNotFound reports whether the message is a stale global-id
// lookup failure.
func IsNodeNotFound(msg string) bool {
	return strings.Contains(msg, "Could not resolve to a node with the global id")
}

// classifiers is an ordered list of substring predicates. Evaluation
// stops at the first match; extend by appending or inserting entries.
var classifiers = []struct {
	match func(string) bool
	kind  string
}{
	{func(m string) bool {
		return strings.Contains(m, "Could not resolve to a node") || strings.Contains(strings.ToLower(m), "not found")
	}, KindNotFound},
	{func(m string) bool { return strings.Contains(m, "Resource limits") }, KindRateLimit},
	{func(m string) bool {
		return strings.Contains(m, "403") || strings.Contains(strings.ToLower(m), "forbidden")
	}, KindPermissionDenied},
	{func(m string) bool { return strings.Contains(strings.ToLower(m), "timeout") }, KindTimeout},
	{IsInternalError, KindInternalError},
}

// Classify maps an error message to a failure kind. Best effort:
// unmatched messages fall through to unknown.
func Classify(msg string) string {
	if msg == "" || msg == "no error details available" {
		return KindUnknown
	}
	for _, c := range classifiers {
		if c.match(msg) {
			return c.kind
		}
	}
	return KindUnknown
}

// AnyResourceLimit reports whether any message in the response (or the
// transport-level error text) is a resource-limit rejection.
func AnyResourceLimit(resp *Response, errText string) bool {
	if IsResourceLimit(errText) {
		return true
	}
	if resp == nil {
		return false
	}
	for _, e := range resp.Errors {
		if IsResourceLimit(e.Message) {
			return true
		}
	}
	return false
}

// AnyInternalError reports whether any message in the response (or the
// transport-level error text) is a GitHub internal error.
func AnyInternalError(resp *Response, errText string) bool {
	if IsInternalError(errText) {
		return true
	}
	if resp == nil {
		return false
	}
	for _, e := range resp.Errors {
		if IsInternalError(e.Message) {
			return true
		}
	}
	return false
}

// Escape makes a string safe for embedding inside a double-quoted
// GraphQL string literal.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Package proxy is the request gateway: provider classification, URL and
// header rewriting, the retry loop, and response relay.
package proxy

import "strings"

// Provider names double as telemetry labels.
const (
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
)

// Upstream actions with special handling.
const (
	ActionStreamGenerate = "streamGenerateContent"
	ActionLROStart       = "predictLongRunning"
	ActionLROPoll        = "fetchPredictOperation"
)

// ClassifyPath decides the provider from the path alone: Vertex paths always
// address a project.
func ClassifyPath(path string) string {
	if strings.Contains(path, "projects/") {
		return ProviderVertex
	}
	return ProviderGemini
}

// ActionFromPath returns the path component after the final ':', or "" when
// the path carries no action.
func ActionFromPath(path string) string {
	i := strings.LastIndex(path, ":")
	if i < 0 {
		return ""
	}
	return path[i+1:]
}

// ModelFromPath extracts the model name for telemetry: the component after
// "models/", up to the first ':' or '/'. Best effort; "unknown" otherwise.
func ModelFromPath(path string) string {
	_, rest, ok := strings.Cut(path, "models/")
	if !ok || rest == "" {
		return "unknown"
	}
	if i := strings.IndexAny(rest, ":/"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}

// IsStreamingAction reports whether the response is forwarded chunk-by-chunk.
func IsStreamingAction(action string) bool {
	return action == ActionStreamGenerate
}

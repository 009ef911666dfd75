package proxy

import (
	"net/http"
	"regexp"
)

// Matches v1, v1beta1, v1beta2 and so on. Group 2 is the project id the
// client happened to send, which gets replaced with the active credential's.
var projectPathRegex = regexp.MustCompile(`^(v1(?:beta\d+)?/projects/)([^/]+)(/locations.*)$`)

// RewriteVertexPath splices projectID into the path. Paths that do not match
// the project form are forwarded unchanged.
func RewriteVertexPath(path, projectID string) string {
	m := projectPathRegex.FindStringSubmatch(path)
	if m == nil {
		return path
	}
	return m[1] + projectID + m[3]
}

// Only these client headers ever reach the upstream. Everything else,
// including inbound auth and hop-by-hop headers, is dropped.
var forwardedHeaders = []string{
	"Content-Type",
	"Accept",
	"Accept-Encoding",
	"Accept-Language",
	"User-Agent",
	"X-Goog-User-Project",
}

// BuildUpstreamHeaders constructs the outgoing header set from the client's.
func BuildUpstreamHeaders(src http.Header) http.Header {
	out := make(http.Header, len(forwardedHeaders))
	for _, name := range forwardedHeaders {
		if vals := src.Values(name); len(vals) > 0 {
			for _, v := range vals {
				out.Add(name, v)
			}
		}
	}
	return out
}

// Response headers never relayed back to the client. The relayed body is
// already decoded and unchunked, so these would lie.
var droppedResponseHeaders = map[string]bool{
	"Content-Encoding":  true,
	"Content-Length":    true,
	"Transfer-Encoding": true,
}

// CopyResponseHeaders relays upstream response headers minus the dropped set.
func CopyResponseHeaders(dst, src http.Header) {
	for name, vals := range src {
		if droppedResponseHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range vals {
			dst.Add(name, v)
		}
	}
}

package credential

import "golang.org/x/oauth2"

// CloudPlatformScope is required for all Vertex AI calls.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// GeminiKey is an opaque API key. The key itself is secret; telemetry and
// logs only ever see the ID form.
type GeminiKey string

// ID returns the non-sensitive identity used in telemetry: "..." plus the
// last four characters of the key.
func (k GeminiKey) ID() string {
	s := string(k)
	if len(s) <= 4 {
		return "..." + s
	}
	return "..." + s[len(s)-4:]
}

// Vertex is one loaded service-account credential. A Vertex value only exists
// after its signing material parsed successfully; partially constructed
// credentials never enter a pool.
type Vertex struct {
	ProjectID  string
	SourcePath string

	tokenSource oauth2.TokenSource
}

// NewVertex wraps an existing token source as a credential. Production code
// loads credentials from service-account files; this constructor exists for
// alternate sources and tests.
func NewVertex(projectID string, ts oauth2.TokenSource) *Vertex {
	return &Vertex{ProjectID: projectID, tokenSource: ts}
}

// TokenSource returns the OAuth2 assertion source bound to this service
// account. The source is not cached here; see the token package.
func (v *Vertex) TokenSource() oauth2.TokenSource {
	return v.tokenSource
}

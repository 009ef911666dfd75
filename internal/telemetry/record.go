// Package telemetry records one row per proxied request without ever adding
// latency or failures to the request path.
package telemetry

import "time"

// Record is the terminal outcome of one client request. Exactly one record
// is produced per request, describing the attempt whose response the client
// received (or the final failure).
type Record struct {
	Provider     string
	CredentialID string
	Model        string
	Action       string

	Method    string
	Path      string
	ClientIP  string
	UserAgent string

	StatusCode   int
	LatencyMS    int64
	AttemptCount int
	IsError      bool
	ErrorDetail  string

	// Usage counts are nullable: streaming responses and errors usually
	// carry none.
	PromptTokens     *int64
	CompletionTokens *int64
	TotalTokens      *int64

	RequestBody   []byte
	ResponseBody  []byte
	RequestSize   int64
	ResponseSize  int64
	BodyTruncated bool

	CreatedAt time.Time
}

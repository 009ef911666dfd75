package proxy

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-orchestrator-go/internal/config"
	"ai-orchestrator-go/internal/constants"
	"ai-orchestrator-go/internal/credential"
	"ai-orchestrator-go/internal/lro"
	"ai-orchestrator-go/internal/monitoring"
	"ai-orchestrator-go/internal/monitoring/tracing"
	"ai-orchestrator-go/internal/rotator"
	"ai-orchestrator-go/internal/telemetry"
	"ai-orchestrator-go/internal/token"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

const exhaustedBody = "All backends exhausted or unavailable"

// lroResponseLimit bounds how much of an operation-start response is read
// for name extraction. Operation resources are small JSON documents.
const lroResponseLimit = 1 << 20

// StatsSink receives one observation per finished client request.
type StatsSink interface {
	Observe(provider, model string, status int, latencyMS int64)
}

// Gateway turns one client request into at most max_retries upstream
// attempts, relays the winning response, and enqueues telemetry after the
// client has been served.
type Gateway struct {
	cfg      *config.Config
	client   *http.Client
	gemini   *rotator.Gemini
	vertex   *rotator.Vertex
	tokens   *token.Cacher
	lro      lro.Cache
	recorder *telemetry.Recorder
	stats    StatsSink

	retryable map[int]bool
}

// NewGateway wires the gateway from its collaborators. stats may be nil.
func NewGateway(cfg *config.Config, client *http.Client, gemini *rotator.Gemini,
	vertex *rotator.Vertex, tokens *token.Cacher, cache lro.Cache,
	recorder *telemetry.Recorder, stats StatsSink) *Gateway {
	retryable := make(map[int]bool, len(cfg.Services.RetryStatuses))
	for _, code := range cfg.Services.RetryStatuses {
		retryable[code] = true
	}
	return &Gateway{
		cfg:       cfg,
		client:    client,
		gemini:    gemini,
		vertex:    vertex,
		tokens:    tokens,
		lro:       cache,
		recorder:  recorder,
		stats:     stats,
		retryable: retryable,
	}
}

// attempt is the per-iteration state handed between the loop and the relay.
type attempt struct {
	credID  string
	project string
	pinned  bool
	req     *http.Request
}

// Handle proxies one client request.
func (g *Gateway) Handle(c *gin.Context) {
	t0 := time.Now()
	path := strings.TrimPrefix(c.Request.URL.Path, "/")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "failed to read request body")
		return
	}

	provider := ClassifyPath(path)
	action := ActionFromPath(path)
	model := ModelFromPath(path)

	ctx, span := tracing.StartSpan(c.Request.Context(), "proxy "+provider)
	span.SetAttributes(
		attribute.String("proxy.provider", provider),
		attribute.String("proxy.model", model),
		attribute.String("proxy.action", action),
	)
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	rec := &telemetry.Record{
		Provider:    provider,
		Model:       model,
		Action:      action,
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		ClientIP:    clientIPFrom(c),
		UserAgent:   c.Request.UserAgent(),
		RequestSize: int64(len(body)),
	}
	if g.cfg.Services.StoreRequestBodies && gjson.ValidBytes(body) {
		rec.RequestBody = body
	}

	// An operation poll must land on the project that started the
	// operation; a stale mapping falls back to rotation.
	pinnedProject := ""
	if provider == ProviderVertex && action == ActionLROPoll && c.Request.Method == http.MethodPost {
		if op := gjson.GetBytes(body, "operationName"); op.Exists() {
			if p, ok := g.lro.Lookup(c.Request.Context(), op.String()); ok {
				log.Infof("Routing operation poll %s to project %s", op.String(), p)
				pinnedProject = p
			}
		}
	}

	maxAttempts := g.maxAttempts(provider)
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		rec.AttemptCount = attempts

		at, fail := g.prepare(c, provider, path, body, &pinnedProject)
		if fail != nil {
			g.finish(c, rec, t0, fail.status, fail.detail)
			return
		}
		if at == nil {
			// Token refresh failed on a rotated credential; try the next one.
			continue
		}
		rec.CredentialID = at.credID

		monitoring.UpstreamAttempts.WithLabelValues(provider).Inc()
		log.Infof("Attempt %d/%d [%s] -> %s", attempts, maxAttempts, at.credID, at.req.URL.Path)

		resp, err := g.client.Do(at.req)
		if err != nil {
			log.WithError(err).Warnf("Upstream transport error on attempt %d", attempts)
			time.Sleep(constants.TransportRetrySleep)
			continue
		}

		if g.retryable[resp.StatusCode] && !at.pinned {
			g.drainAndClose(resp)
			log.Warnf("Upstream %d from [%s]; rotating", resp.StatusCode, at.credID)
			continue
		}
		if g.retryable[resp.StatusCode] && at.pinned {
			log.Warnf("Upstream %d from pinned project %s; another credential cannot serve this operation", resp.StatusCode, at.project)
		}

		g.relay(c, resp, at, rec, t0, action)
		return
	}

	g.finish(c, rec, t0, http.StatusServiceUnavailable, exhaustedBody)
}

type failure struct {
	status int
	detail string
}

// prepare selects a credential and builds the upstream request. Returns
// (nil, nil) when the attempt should be skipped and the loop continued.
func (g *Gateway) prepare(c *gin.Context, provider, path string, body []byte, pinnedProject *string) (*attempt, *failure) {
	headers := BuildUpstreamHeaders(c.Request.Header)
	query := c.Request.URL.Query()

	var at attempt
	var base string

	switch provider {
	case ProviderGemini:
		key, err := g.gemini.Next()
		if err != nil {
			return nil, &failure{http.StatusServiceUnavailable, "No Gemini keys available"}
		}
		at.credID = key.ID()
		base = g.cfg.Services.GeminiBaseURL
		query.Set("key", string(key))

	case ProviderVertex:
		var cred *credential.Vertex
		if *pinnedProject != "" {
			cred = g.vertex.ByProjectID(*pinnedProject)
			if cred == nil {
				log.Warnf("Pinned project %s no longer in pool; falling back to rotation", *pinnedProject)
				*pinnedProject = ""
			} else {
				at.pinned = true
			}
		}
		if cred == nil {
			var err error
			cred, err = g.vertex.Next()
			if err != nil {
				return nil, &failure{http.StatusServiceUnavailable, "No Vertex credentials available"}
			}
		}

		tok, err := g.tokens.Get(c.Request.Context(), cred)
		if err != nil {
			log.WithError(err).Warnf("Token refresh failed for %s", cred.ProjectID)
			if at.pinned {
				return nil, &failure{http.StatusServiceUnavailable, "Target credential failed"}
			}
			return nil, nil
		}

		at.credID = cred.ProjectID
		at.project = cred.ProjectID
		base = g.cfg.Services.VertexBaseURL
		path = RewriteVertexPath(path, cred.ProjectID)
		headers.Set("Authorization", "Bearer "+tok)
		headers.Set("X-Goog-User-Project", cred.ProjectID)
	}

	url := base + "/" + path
	if enc := query.Encode(); enc != "" {
		url += "?" + enc
	}
	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, url, bytes.NewReader(body))
	if err != nil {
		return nil, &failure{http.StatusBadGateway, fmt.Sprintf("failed to build upstream request: %v", err)}
	}
	req.Header = headers
	at.req = req
	return &at, nil
}

// maxAttempts caps the loop at the configured budget, but never more than
// the pool size: retrying the same credential within one request is futile.
func (g *Gateway) maxAttempts(provider string) int {
	n := g.cfg.Services.MaxRetries
	var pool int
	if provider == ProviderGemini {
		pool = g.gemini.Count()
	} else {
		pool = g.vertex.Count()
	}
	if pool > 0 && pool < n {
		return pool
	}
	return n
}

// relay forwards the winning upstream response to the client and records
// telemetry afterwards.
func (g *Gateway) relay(c *gin.Context, resp *http.Response, at *attempt, rec *telemetry.Record, t0 time.Time, action string) {
	defer resp.Body.Close()

	// Operation starts are read fully first so the operation name can be
	// remembered against the serving project.
	if at.project != "" && action == ActionLROStart && resp.StatusCode == http.StatusOK {
		data, err := io.ReadAll(io.LimitReader(resp.Body, lroResponseLimit))
		if err != nil {
			log.WithError(err).Warn("Failed to read operation-start response")
		} else if name := gjson.GetBytes(data, "name"); name.Exists() && name.String() != "" {
			g.lro.Remember(c.Request.Context(), name.String(), at.project)
			log.Infof("Registered operation %s on project %s", name.String(), at.project)
		} else {
			log.Warn("Operation-start response carried no operation name")
		}
		resp.Body = io.NopCloser(bytes.NewReader(data))
	}

	CopyResponseHeaders(c.Writer.Header(), resp.Header)
	c.Status(resp.StatusCode)
	// Latency runs to the response handoff. A client slowly consuming a
	// stream must not inflate it.
	rec.LatencyMS = time.Since(t0).Milliseconds()

	buf := newCappedBuffer(constants.TelemetryBodyCap)
	src := io.TeeReader(resp.Body, buf)

	var copyErr error
	if IsStreamingAction(action) {
		copyErr = copyFlush(c.Writer, src, constants.StreamCopyChunk)
	} else {
		_, copyErr = io.Copy(c.Writer, src)
	}
	if copyErr != nil {
		log.WithError(copyErr).Warn("Response relay interrupted")
	}

	rec.StatusCode = resp.StatusCode
	rec.ResponseSize = buf.Size()
	rec.BodyTruncated = buf.Truncated()
	rec.IsError = resp.StatusCode >= 400
	if !buf.Truncated() {
		telemetry.ParseUsage(buf.Bytes()).Apply(rec)
	}
	if g.cfg.Services.StoreRequestBodies && !buf.Truncated() && gjson.ValidBytes(buf.Bytes()) {
		rec.ResponseBody = buf.Bytes()
	}
	g.recorder.Enqueue(rec)
	g.observe(rec)
}

// finish answers the client with a proxy-generated error and records it.
func (g *Gateway) finish(c *gin.Context, rec *telemetry.Record, t0 time.Time, status int, detail string) {
	c.String(status, detail)
	rec.StatusCode = status
	rec.LatencyMS = time.Since(t0).Milliseconds()
	rec.IsError = true
	rec.ErrorDetail = detail
	g.recorder.Enqueue(rec)
	g.observe(rec)
}

func (g *Gateway) observe(rec *telemetry.Record) {
	monitoring.RequestsTotal.WithLabelValues(rec.Provider, fmt.Sprint(rec.StatusCode)).Inc()
	if g.stats != nil {
		g.stats.Observe(rec.Provider, rec.Model, rec.StatusCode, rec.LatencyMS)
	}
}

func (g *Gateway) drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// clientIPFrom prefers the IP the allow-list middleware resolved.
func clientIPFrom(c *gin.Context) string {
	if ip, ok := c.Get("client_ip"); ok {
		if s, ok := ip.(string); ok {
			return s
		}
	}
	return c.ClientIP()
}

// Package token caches Vertex OAuth access tokens per project with
// refresh-ahead and bounded refresh concurrency.
package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-orchestrator-go/internal/constants"
	"ai-orchestrator-go/internal/credential"
	"ai-orchestrator-go/internal/monitoring"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type entry struct {
	mu  sync.Mutex
	tok *oauth2.Token
}

// Cacher serves cached access tokens and refreshes them when they are within
// the refresh-ahead window of expiry. Refreshes for the same project are
// single-flight: the per-entry mutex makes concurrent callers wait for one
// upstream exchange instead of issuing their own. Total refresh concurrency
// across projects is bounded by a worker semaphore.
type Cacher struct {
	mu      sync.Mutex
	entries map[string]*entry

	sem          chan struct{}
	refreshAhead time.Duration
}

// NewCacher builds a cacher with the default worker budget.
func NewCacher() *Cacher {
	return &Cacher{
		entries:      make(map[string]*entry),
		sem:          make(chan struct{}, constants.TokenRefreshWorkers),
		refreshAhead: constants.TokenRefreshAhead,
	}
}

func (c *Cacher) entryFor(projectID string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[projectID]
	if !ok {
		e = &entry{}
		c.entries[projectID] = e
	}
	return e
}

func (c *Cacher) fresh(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	if tok.Expiry.IsZero() {
		return true
	}
	return time.Until(tok.Expiry) > c.refreshAhead
}

func expired(tok *oauth2.Token) bool {
	return tok == nil || tok.AccessToken == "" ||
		(!tok.Expiry.IsZero() && time.Now().After(tok.Expiry))
}

// Get returns a valid access token for the credential, refreshing if needed.
// An expired token is never returned: when refresh fails and the cached token
// has already expired, the error propagates to the caller.
func (c *Cacher) Get(ctx context.Context, cred *credential.Vertex) (string, error) {
	e := c.entryFor(cred.ProjectID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if c.fresh(e.tok) {
		return e.tok.AccessToken, nil
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	t0 := time.Now()
	tok, err := cred.TokenSource().Token()
	<-c.sem

	if err != nil {
		monitoring.TokenRefreshes.WithLabelValues("error").Inc()
		if !expired(e.tok) {
			// Still inside the refresh-ahead window; serve the old token
			// and let a later request retry the refresh.
			log.WithError(err).Warnf("Token refresh failed for %s; serving cached token", cred.ProjectID)
			return e.tok.AccessToken, nil
		}
		return "", fmt.Errorf("refresh token for %s: %w", cred.ProjectID, err)
	}

	monitoring.TokenRefreshes.WithLabelValues("ok").Inc()
	log.Debugf("Refreshed token for %s in %dms", cred.ProjectID, time.Since(t0).Milliseconds())
	e.tok = tok
	return tok.AccessToken, nil
}

// Reset drops all cached tokens. Called after a credential reload so stale
// tokens for removed projects cannot linger.
func (c *Cacher) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Package rotator implements round-robin credential selection over hot-swap
// pool snapshots. A reload replaces the snapshot atomically and resets the
// cursor; in-flight requests keep whatever credential they already drew.
package rotator

import (
	"errors"
	"sync/atomic"

	"ai-orchestrator-go/internal/credential"
	log "github.com/sirupsen/logrus"
)

// ErrEmptyPool is returned by Next when no credentials are loaded.
var ErrEmptyPool = errors.New("credential pool is empty")

type geminiSnapshot struct {
	keys   []credential.GeminiKey
	cursor atomic.Uint64
}

// Gemini rotates over API keys.
type Gemini struct {
	loader func() ([]credential.GeminiKey, error)
	snap   atomic.Pointer[geminiSnapshot]
}

// NewGemini builds a rotator backed by the given loader and performs the
// initial load. Loader errors are logged, never fatal: an empty pool is a
// valid state the gateway answers with 503.
func NewGemini(loader func() ([]credential.GeminiKey, error)) *Gemini {
	g := &Gemini{loader: loader}
	g.snap.Store(&geminiSnapshot{})
	if err := g.Reload(); err != nil {
		log.WithError(err).Warn("Initial Gemini key load failed")
	}
	return g
}

// Reload rebuilds the pool from the loader and swaps it in atomically.
// The rotation cursor restarts at zero.
func (g *Gemini) Reload() error {
	keys, err := g.loader()
	if err != nil {
		return err
	}
	g.snap.Store(&geminiSnapshot{keys: keys})
	log.Infof("Gemini key pool reloaded: %d keys", len(keys))
	return nil
}

// Next returns the next key in round-robin order.
func (g *Gemini) Next() (credential.GeminiKey, error) {
	s := g.snap.Load()
	if len(s.keys) == 0 {
		return "", ErrEmptyPool
	}
	i := (s.cursor.Add(1) - 1) % uint64(len(s.keys))
	return s.keys[i], nil
}

// Count reports the pool size.
func (g *Gemini) Count() int {
	return len(g.snap.Load().keys)
}

// Keys returns a copy of the current pool (diagnostics and tests).
func (g *Gemini) Keys() []credential.GeminiKey {
	s := g.snap.Load()
	out := make([]credential.GeminiKey, len(s.keys))
	copy(out, s.keys)
	return out
}

type vertexSnapshot struct {
	pool      []*credential.Vertex
	byProject map[string]*credential.Vertex
	cursor    atomic.Uint64
}

// Vertex rotates over service-account credentials and supports direct lookup
// by project id for LRO-pinned requests.
type Vertex struct {
	loader func() ([]*credential.Vertex, error)
	snap   atomic.Pointer[vertexSnapshot]
}

// NewVertex builds a rotator backed by the given loader and performs the
// initial load.
func NewVertex(loader func() ([]*credential.Vertex, error)) *Vertex {
	v := &Vertex{loader: loader}
	v.snap.Store(&vertexSnapshot{byProject: map[string]*credential.Vertex{}})
	if err := v.Reload(); err != nil {
		log.WithError(err).Warn("Initial Vertex credential load failed")
	}
	return v
}

// Reload rebuilds the pool from the loader and swaps it in atomically.
func (v *Vertex) Reload() error {
	pool, err := v.loader()
	if err != nil {
		return err
	}
	byProject := make(map[string]*credential.Vertex, len(pool))
	for _, c := range pool {
		byProject[c.ProjectID] = c
	}
	v.snap.Store(&vertexSnapshot{pool: pool, byProject: byProject})
	log.Infof("Vertex credential pool reloaded: %d credentials", len(pool))
	return nil
}

// Next returns the next credential in round-robin order.
func (v *Vertex) Next() (*credential.Vertex, error) {
	s := v.snap.Load()
	if len(s.pool) == 0 {
		return nil, ErrEmptyPool
	}
	i := (s.cursor.Add(1) - 1) % uint64(len(s.pool))
	return s.pool[i], nil
}

// ByProjectID returns the credential for the given project, or nil when the
// project is not in the current pool.
func (v *Vertex) ByProjectID(projectID string) *credential.Vertex {
	return v.snap.Load().byProject[projectID]
}

// Count reports the pool size.
func (v *Vertex) Count() int {
	return len(v.snap.Load().pool)
}

// ProjectIDs returns the project ids of the current pool (diagnostics and
// tests).
func (v *Vertex) ProjectIDs() []string {
	s := v.snap.Load()
	out := make([]string, 0, len(s.pool))
	for _, c := range s.pool {
		out = append(out, c.ProjectID)
	}
	return out
}

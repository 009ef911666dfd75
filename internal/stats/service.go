// Package stats keeps in-process request statistics for the admin surface.
package stats

import (
	"sync"
	"time"
)

type modelStats struct {
	requests     int64
	errors       int64
	totalLatency int64
	lastAccess   time.Time
}

// ModelSnapshot is the per-model view returned by Snapshot.
type ModelSnapshot struct {
	Requests     int64    `json:"requests"`
	Errors       int64    `json:"errors"`
	AvgLatencyMS float64  `json:"avg_latency_ms"`
	LastAccessS  *float64 `json:"last_access_ago"`
}

// Snapshot is the summary served by the admin stats endpoint.
type Snapshot struct {
	UptimeSeconds float64                             `json:"uptime_seconds"`
	TotalRequests int64                               `json:"total_requests"`
	TotalErrors   int64                               `json:"total_errors"`
	ErrorRate     float64                             `json:"error_rate"`
	CurrentRPS    float64                             `json:"current_rps"`
	Providers     map[string]map[string]ModelSnapshot `json:"providers"`
}

const rpsWindow = 60 * time.Second

// Service accumulates per-provider, per-model counters and a sliding
// one-minute request window for RPS.
type Service struct {
	mu        sync.Mutex
	startTime time.Time
	requests  int64
	errors    int64
	models    map[string]map[string]*modelStats
	window    []time.Time
}

// NewService starts the uptime clock now.
func NewService() *Service {
	return &Service{
		startTime: time.Now(),
		models:    make(map[string]map[string]*modelStats),
	}
}

// Observe records one finished client request.
func (s *Service) Observe(provider, model string, status int, latencyMS int64) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests++
	if status >= 400 {
		s.errors++
	}

	s.pruneWindow(now)
	s.window = append(s.window, now)

	byModel, ok := s.models[provider]
	if !ok {
		byModel = make(map[string]*modelStats)
		s.models[provider] = byModel
	}
	ms, ok := byModel[model]
	if !ok {
		ms = &modelStats{}
		byModel[model] = ms
	}
	ms.requests++
	ms.totalLatency += latencyMS
	ms.lastAccess = now
	if status >= 400 {
		ms.errors++
	}
}

func (s *Service) pruneWindow(now time.Time) {
	cutoff := now.Add(-rpsWindow)
	i := 0
	for i < len(s.window) && s.window[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		s.window = s.window[i:]
	}
}

// Snapshot returns the current summary.
func (s *Service) Snapshot() Snapshot {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneWindow(now)
	uptime := now.Sub(s.startTime).Seconds()

	denom := rpsWindow.Seconds()
	if uptime > 0 && uptime < denom {
		denom = uptime
	}
	var rps float64
	if denom > 0 {
		rps = float64(len(s.window)) / denom
	}

	var errRate float64
	if s.requests > 0 {
		errRate = float64(s.errors) / float64(s.requests) * 100
	}

	out := Snapshot{
		UptimeSeconds: uptime,
		TotalRequests: s.requests,
		TotalErrors:   s.errors,
		ErrorRate:     errRate,
		CurrentRPS:    rps,
		Providers:     make(map[string]map[string]ModelSnapshot, len(s.models)),
	}
	for provider, byModel := range s.models {
		view := make(map[string]ModelSnapshot, len(byModel))
		for model, ms := range byModel {
			snap := ModelSnapshot{
				Requests: ms.requests,
				Errors:   ms.errors,
			}
			if ms.requests > 0 {
				snap.AvgLatencyMS = float64(ms.totalLatency) / float64(ms.requests)
			}
			if !ms.lastAccess.IsZero() {
				ago := now.Sub(ms.lastAccess).Seconds()
				snap.LastAccessS = &ago
			}
			view[model] = snap
		}
		out.Providers[provider] = view
	}
	return out
}

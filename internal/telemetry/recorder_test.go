package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	keys     []string
	models   []string
	requests []*Record
	fail     bool
}

func (s *memStore) EnsureAPIKey(_ context.Context, keyID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("db down")
	}
	s.keys = append(s.keys, keyID)
	return nil
}

func (s *memStore) EnsureModel(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("db down")
	}
	s.models = append(s.models, name)
	return nil
}

func (s *memStore) InsertRequest(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("db down")
	}
	s.requests = append(s.requests, rec)
	return nil
}

func (s *memStore) snapshot() (keys, models []string, requests []*Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...), append([]string(nil), s.models...),
		append([]*Record(nil), s.requests...)
}

func runRecorder(t *testing.T, r *Recorder) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never satisfied")
}

func TestRecorderPersistsRecord(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store)
	stop := runRecorder(t, r)
	defer stop()

	r.Enqueue(&Record{
		Provider:     "gemini",
		CredentialID: "...cdef",
		Model:        "gemini-2.0-flash",
		StatusCode:   200,
		AttemptCount: 1,
	})

	waitFor(t, func() bool {
		_, _, reqs := store.snapshot()
		return len(reqs) == 1
	})
	keys, models, reqs := store.snapshot()
	require.Equal(t, []string{"...cdef"}, keys)
	require.Equal(t, []string{"gemini-2.0-flash"}, models)
	require.Equal(t, 200, reqs[0].StatusCode)
	require.False(t, reqs[0].CreatedAt.IsZero())
}

func TestRecorderCachesForeignKeys(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store)
	stop := runRecorder(t, r)
	defer stop()

	for i := 0; i < 3; i++ {
		r.Enqueue(&Record{CredentialID: "...cdef", Model: "gemini-2.0-flash"})
	}
	waitFor(t, func() bool {
		_, _, reqs := store.snapshot()
		return len(reqs) == 3
	})
	keys, models, _ := store.snapshot()
	require.Len(t, keys, 1)
	require.Len(t, models, 1)
}

func TestRecorderStoreFailureDoesNotPropagate(t *testing.T) {
	store := &memStore{fail: true}
	r := NewRecorder(store)
	stop := runRecorder(t, r)

	r.Enqueue(&Record{CredentialID: "...cdef", Model: "m"})
	time.Sleep(50 * time.Millisecond)
	stop()
	// Nothing to assert beyond not panicking and not blocking.
}

func TestRecorderNilStoreDiscards(t *testing.T) {
	r := NewRecorder(nil)
	r.Enqueue(&Record{Model: "m"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)
}

func TestRecorderDrainsOnShutdown(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store)

	// Enqueue before the worker starts, then start and stop immediately:
	// the queued records must still land.
	for i := 0; i < 5; i++ {
		r.Enqueue(&Record{Model: "m"})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx)

	_, _, reqs := store.snapshot()
	require.Len(t, reqs, 5)
}

package telemetry

import (
	"context"
	"sync"
	"time"

	"ai-orchestrator-go/internal/constants"
	log "github.com/sirupsen/logrus"
)

// Store persists telemetry rows. The postgres implementation lives in the
// storage package; tests use an in-memory double.
type Store interface {
	EnsureAPIKey(ctx context.Context, keyID, provider string) error
	EnsureModel(ctx context.Context, name string) error
	InsertRequest(ctx context.Context, rec *Record) error
}

// Recorder accepts records on the request path and persists them from a
// background worker. Enqueue never blocks: when the queue is full the record
// is dropped with a warning, and when the store fails the error is logged.
// Serving traffic always wins over bookkeeping.
type Recorder struct {
	store Store
	queue chan *Record

	mu          sync.Mutex
	knownKeys   map[string]bool
	knownModels map[string]bool

	dropped uint64
}

// NewRecorder builds a recorder over the given store. A nil store yields a
// recorder that discards everything, used when no database is configured.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:       store,
		queue:       make(chan *Record, constants.TelemetryQueueSize),
		knownKeys:   make(map[string]bool),
		knownModels: make(map[string]bool),
	}
}

// Enqueue hands a record to the background worker. Safe to call from any
// goroutine; never blocks.
func (r *Recorder) Enqueue(rec *Record) {
	if r.store == nil {
		return
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	select {
	case r.queue <- rec:
	default:
		r.mu.Lock()
		r.dropped++
		n := r.dropped
		r.mu.Unlock()
		log.Warnf("Telemetry queue full; dropped record (%d total)", n)
	}
}

// Run consumes the queue until ctx is cancelled, then drains what is already
// queued before returning.
func (r *Recorder) Run(ctx context.Context) {
	if r.store == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case rec := <-r.queue:
			r.persist(rec)
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.queue:
			r.persist(rec)
		default:
			return
		}
	}
}

func (r *Recorder) persist(rec *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.ensureKey(ctx, rec.CredentialID, rec.Provider); err != nil {
		log.WithError(err).Warn("Failed to register credential for telemetry")
	}
	if err := r.ensureModel(ctx, rec.Model); err != nil {
		log.WithError(err).Warn("Failed to register model for telemetry")
	}
	if err := r.store.InsertRequest(ctx, rec); err != nil {
		log.WithError(err).Error("Failed to persist request record")
	}
}

func (r *Recorder) ensureKey(ctx context.Context, keyID, provider string) error {
	if keyID == "" {
		return nil
	}
	r.mu.Lock()
	known := r.knownKeys[keyID]
	r.mu.Unlock()
	if known {
		return nil
	}
	if err := r.store.EnsureAPIKey(ctx, keyID, provider); err != nil {
		return err
	}
	r.mu.Lock()
	r.knownKeys[keyID] = true
	r.mu.Unlock()
	return nil
}

func (r *Recorder) ensureModel(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	known := r.knownModels[name]
	r.mu.Unlock()
	if known {
		return nil
	}
	if err := r.store.EnsureModel(ctx, name); err != nil {
		return err
	}
	r.mu.Lock()
	r.knownModels[name] = true
	r.mu.Unlock()
	return nil
}

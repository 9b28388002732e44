package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Query status values exposed by the API.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Query tracks one submitted query through its lifecycle.
type Query struct {
	ID         string
	Text       string
	Status     string
	Answer     string
	Transcript string
	Error      string

	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ProcessingSeconds is the wall time spent in the processing state.
func (q *Query) ProcessingSeconds() float64 {
	if q.StartedAt.IsZero() || q.FinishedAt.IsZero() {
		return 0
	}
	return q.FinishedAt.Sub(q.StartedAt).Seconds()
}

// Registry holds active queries keyed by their opaque ID. Entries are
// kept for the process lifetime; the expected query volume is
// interactive-scale.
type Registry struct {
	mu      sync.RWMutex
	queries map[string]*Query
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{queries: make(map[string]*Query)}
}

// Create registers a new queued query and returns it.
func (r *Registry) Create(text string) *Query {
	q := &Query{
		ID:          uuid.NewString(),
		Text:        text,
		Status:      StatusQueued,
		SubmittedAt: time.Now(),
	}

	r.mu.Lock()
	r.queries[q.ID] = q
	r.mu.Unlock()
	return q
}

// Get returns a copy of the query state, or false if the ID is unknown.
func (r *Registry) Get(id string) (Query, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.queries[id]
	if !ok {
		return Query{}, false
	}
	return *q, true
}

// SetProcessing marks the query as picked up by the worker.
func (r *Registry) SetProcessing(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queries[id]; ok {
		q.Status = StatusProcessing
		q.StartedAt = time.Now()
	}
}

// SetCompleted records a successful outcome.
func (r *Registry) SetCompleted(id, answer, transcript string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queries[id]; ok {
		q.Status = StatusCompleted
		q.Answer = answer
		q.Transcript = transcript
		q.FinishedAt = time.Now()
	}
}

// SetFailed records a failure.
func (r *Registry) SetFailed(id, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queries[id]; ok {
		q.Status = StatusFailed
		q.Error = errMsg
		q.FinishedAt = time.Now()
	}
}

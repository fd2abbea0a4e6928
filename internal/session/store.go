// Package session keeps per-caller state between requests: the model list
// fetched for the session and the model the caller selected. Nothing here is
// global; every handler passes the session ID explicitly.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/observability"
)

var (
	// ErrUnknownModel is returned when selecting a model the session's catalog
	// does not list.
	ErrUnknownModel = errors.New("model not in catalog")

	// ErrNotFound is returned for unknown or evicted session IDs.
	ErrNotFound = errors.New("session not found")
)

// ModelLister fetches the model catalog. It must never return an empty list.
type ModelLister interface {
	ListModels(ctx context.Context) []domain.ModelDescriptor
}

// State is one caller's session.
type State struct {
	ID        string                   `json:"session_id"`
	Models    []domain.ModelDescriptor `json:"models"`
	Selected  string                   `json:"selected"`
	CreatedAt time.Time                `json:"created_at"`
}

func (s State) clone() State {
	s.Models = slices.Clone(s.Models)
	return s
}

func (s State) hasModel(name string) bool {
	return slices.ContainsFunc(s.Models, func(m domain.ModelDescriptor) bool { return m.Name == name })
}

// NewID returns a fresh random session ID.
func NewID() string {
	return uuid.NewString()
}

// Store is a bounded, thread-safe session store. The least recently used
// session is evicted once maxEntries is exceeded.
type Store struct {
	cache   *lruCache[State]
	metrics *observability.Metrics
	mu      sync.Mutex // serializes read-modify-write in Select
}

// NewStore creates a session store holding up to maxEntries sessions.
func NewStore(maxEntries int, metrics *observability.Metrics) *Store {
	return &Store{
		cache:   newLRUCache[State](maxEntries),
		metrics: metrics,
	}
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (State, bool) {
	st, ok := s.cache.get(id)
	if !ok {
		s.metrics.SessionCache.WithLabelValues("miss").Inc()
		return State{}, false
	}
	s.metrics.SessionCache.WithLabelValues("hit").Inc()
	return st.clone(), true
}

// Put stores a copy of the session.
func (s *Store) Put(st State) {
	s.cache.put(st.ID, st.clone())
}

// Models returns the session, fetching the model list from lister the first
// time the session is seen. IDs are always minted here: an empty, unknown or
// evicted id starts a new session under a fresh ID, which the caller must
// hand back to the client. The first model is selected by default.
func (s *Store) Models(ctx context.Context, id string, lister ModelLister) State {
	if id != "" {
		if st, ok := s.Get(id); ok && len(st.Models) > 0 {
			return st
		}
	}
	id = NewID()

	models := lister.ListModels(ctx)
	st := State{
		ID:        id,
		Models:    models,
		CreatedAt: domain.Now(),
	}
	if len(models) > 0 {
		st.Selected = models[0].Name
	}
	s.Put(st)
	return st.clone()
}

// Select records the caller's model choice. The session must exist and the
// model must be in its catalog.
func (s *Store) Select(id, model string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.Get(id)
	if !ok {
		return State{}, fmt.Errorf("select %q: %w", model, ErrNotFound)
	}
	if !st.hasModel(model) {
		return State{}, fmt.Errorf("select %q: %w", model, ErrUnknownModel)
	}
	st.Selected = model
	s.Put(st)
	return st, nil
}

// CheckModel reports ErrUnknownModel when the session exists and its catalog
// does not list model. Unknown sessions have no catalog to check against and
// pass.
func (s *Store) CheckModel(id, model string) error {
	if id == "" {
		return nil
	}
	st, ok := s.Get(id)
	if !ok || st.hasModel(model) {
		return nil
	}
	return fmt.Errorf("model %q: %w", model, ErrUnknownModel)
}

// Selected returns the session's selected model, or "" when the session is
// unknown.
func (s *Store) Selected(id string) string {
	if id == "" {
		return ""
	}
	st, ok := s.Get(id)
	if !ok {
		return ""
	}
	return st.Selected
}

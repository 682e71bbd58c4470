package terminology

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry maps session ids to their Service instance. Each session owns
// its own cache and client state, so unrelated concurrent sessions never
// share expansion results or tokens by accident.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Service
	factory  func() *Service
	log      zerolog.Logger
}

// NewRegistry creates a Registry; factory builds the Service for a new
// session.
func NewRegistry(factory func() *Service, log zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Service),
		factory:  factory,
		log:      log,
	}
}

// NewSession allocates a fresh session id and its Service.
func (r *Registry) NewSession() (string, *Service) {
	id := uuid.NewString()
	return id, r.Session(id)
}

// Session returns the Service for id, creating it on first use.
func (r *Registry) Session(id string) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	if service, ok := r.sessions[id]; ok {
		return service
	}
	service := r.factory()
	r.sessions[id] = service
	r.log.Debug().Str("session", id).Msg("Created terminology session")
	return service
}

// Drop removes a session and its cache.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

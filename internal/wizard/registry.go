package wizard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/common/validation"
)

// Registry holds open intake sessions per owner. Sessions idle for longer than ttl are dropped
// by Sweep.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*session
	ttl       time.Duration
	validator *validation.Validator
	logger    logger.Logger
	now       func() time.Time
}

type session struct {
	owner    string
	wizard   *Wizard
	lastSeen time.Time
}

func NewRegistry(ttl time.Duration, log logger.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*session),
		ttl:       ttl,
		validator: validation.NewValidator(),
		logger:    logger.ForComponent(log, "wizard-registry"),
		now:       time.Now,
	}
}

// Open starts a new session for owner.
func (r *Registry) Open(owner string) *Wizard {
	id := uuid.New().String()
	w := New(id, r.validator, r.logger)

	r.mu.Lock()
	r.sessions[id] = &session{owner: owner, wizard: w, lastSeen: r.now()}
	r.mu.Unlock()

	r.logger.Debug("intake session opened", map[string]interface{}{"wizardId": id, "owner": owner})
	return w
}

// Get returns the session if it exists and belongs to owner.
func (r *Registry) Get(id, owner string) (*Wizard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.owner != owner {
		return nil, false
	}
	s.lastSeen = r.now()
	return s.wizard, true
}

func (r *Registry) Close(id, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.owner != owner {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Sweep drops idle sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("expired intake sessions removed", map[string]interface{}{"count": removed})
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

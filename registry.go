package tips

import (
	"sync"
)

// Registry indexes live sessions by id
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	onChange []func(active int)
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// OnChange registers a handler called with the session count after every
// add or remove
func (r *Registry) OnChange(handler func(active int)) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, handler)
	return r
}

// Add registers a session
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	count, handlers := len(r.sessions), r.onChange
	r.mu.Unlock()

	for _, handler := range handlers {
		handler(count)
	}
}

// Get looks a session up by id
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes and forgets a session
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	count, handlers := len(r.sessions), r.onChange
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	for _, handler := range handlers {
		handler(count)
	}
	return nil
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session and waits for their in-flight transfers
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	handlers := r.onChange
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	for _, s := range sessions {
		s.Wait()
	}
	for _, handler := range handlers {
		handler(0)
	}
}

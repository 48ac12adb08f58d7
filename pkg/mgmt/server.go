package mgmt

import (
	"fmt"
	"sort"
	"sync"
)

// Unit is one named management endpoint, grouped by domain. Several units
// may share a domain, so unregistering one unit does not imply the domain
// is gone.
type Unit struct {
	Domain string
	Name   string
}

func (u Unit) key() string { return u.Domain + ":" + u.Name }

// Listener receives unit registration notifications. Delivery is
// asynchronous; listeners serialize their own handling.
type Listener interface {
	UnitRegistered(Unit)
	UnitUnregistered(Unit)
}

// Server is the in-process management registry. It tracks registered units
// and notifies listeners as units come and go.
type Server struct {
	mu        sync.Mutex
	units     map[string]Unit
	listeners []Listener
}

// NewServer creates an empty management registry
func NewServer() *Server {
	return &Server{units: make(map[string]Unit)}
}

// Register adds a unit and notifies listeners. Registering the same
// (domain, name) twice is an error.
func (s *Server) Register(u Unit) error {
	s.mu.Lock()
	if _, ok := s.units[u.key()]; ok {
		s.mu.Unlock()
		return fmt.Errorf("unit already registered: %s/%s", u.Domain, u.Name)
	}
	s.units[u.key()] = u
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		go l.UnitRegistered(u)
	}
	return nil
}

// Unregister removes a unit and notifies listeners. Unregistering an
// unknown unit is a no-op.
func (s *Server) Unregister(u Unit) {
	s.mu.Lock()
	if _, ok := s.units[u.key()]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.units, u.key())
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		go l.UnitUnregistered(u)
	}
}

// Domains returns the distinct domains with at least one registered unit
func (s *Server) Domains() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var domains []string
	for _, u := range s.units {
		if _, ok := seen[u.Domain]; !ok {
			seen[u.Domain] = struct{}{}
			domains = append(domains, u.Domain)
		}
	}
	sort.Strings(domains)
	return domains
}

// Subscribe registers a notification listener
func (s *Server) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Unsubscribe removes a previously subscribed listener
func (s *Server) Unsubscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listeners {
		if existing == l {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Mutation is one entry in the Mem store's journal.
type Mutation struct {
	Op    string // "set", "create", "create-ephemeral", "delete", "delete-tree"
	Path  string
	Value string
}

// Mem is an in-memory Store used in tests and standalone single-process
// runs. It records every mutation in a journal so tests can assert on the
// exact store traffic, and exposes session control so session takeover and
// disconnect handling can be exercised without a real cluster.
type Mem struct {
	mu        sync.Mutex
	data      map[string]string
	ephemeral map[string]string // path -> owning session id
	journal   []Mutation
	session   string
	connected bool
	listeners []LifecycleListener
	failErr   error
}

// NewMem returns an empty in-memory store with a live session "s1".
func NewMem() *Mem {
	return &Mem{
		data:      make(map[string]string),
		ephemeral: make(map[string]string),
		session:   "s1",
		connected: true,
	}
}

// SetSession replaces the current session id. Existing ephemeral records
// keep their original owner, mimicking markers left by an expired session.
func (m *Mem) SetSession(id string) {
	m.mu.Lock()
	m.session = id
	m.mu.Unlock()
}

// Connect marks the store connected and notifies listeners.
func (m *Mem) Connect() {
	m.mu.Lock()
	m.connected = true
	listeners := append([]LifecycleListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l.OnConnected()
	}
}

// Disconnect drops the session, removes its ephemeral records, and
// notifies listeners.
func (m *Mem) Disconnect() {
	m.mu.Lock()
	m.connected = false
	for path, owner := range m.ephemeral {
		if owner == m.session {
			delete(m.data, path)
			delete(m.ephemeral, path)
		}
	}
	listeners := append([]LifecycleListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l.OnDisconnected()
	}
}

// Subscribe registers a lifecycle listener.
func (m *Mem) Subscribe(l LifecycleListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	connected := m.connected
	m.mu.Unlock()
	if connected {
		l.OnConnected()
	}
}

// FailWith makes every subsequent operation return err; FailWith(nil)
// restores normal operation.
func (m *Mem) FailWith(err error) {
	m.mu.Lock()
	m.failErr = err
	m.mu.Unlock()
}

// Journal returns a copy of the recorded mutations.
func (m *Mem) Journal() []Mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mutation(nil), m.journal...)
}

// ResetJournal clears the recorded mutations.
func (m *Mem) ResetJournal() {
	m.mu.Lock()
	m.journal = nil
	m.mu.Unlock()
}

func (m *Mem) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Mem) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Mem) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return false, m.failErr
	}
	_, ok := m.data[path]
	return ok, nil
}

func (m *Mem) Get(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return "", m.failErr
	}
	v, ok := m.data[path]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Mem) Set(ctx context.Context, path, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.data[path] = value
	m.journal = append(m.journal, Mutation{Op: "set", Path: path, Value: value})
	return nil
}

func (m *Mem) CreateDefault(ctx context.Context, path, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if _, ok := m.data[path]; ok {
		return nil
	}
	m.data[path] = value
	m.journal = append(m.journal, Mutation{Op: "create", Path: path, Value: value})
	return nil
}

func (m *Mem) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if _, ok := m.data[path]; !ok {
		return nil
	}
	delete(m.data, path)
	delete(m.ephemeral, path)
	m.journal = append(m.journal, Mutation{Op: "delete", Path: path})
	return nil
}

func (m *Mem) DeleteTree(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	prefix := path + "/"
	for k := range m.data {
		if k == path || strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			delete(m.ephemeral, k)
		}
	}
	m.journal = append(m.journal, Mutation{Op: "delete-tree", Path: path})
	return nil
}

func (m *Mem) Children(ctx context.Context, path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	prefix := path + "/"
	seen := make(map[string]struct{})
	var children []string
	for k := range m.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(k, prefix), "/")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			children = append(children, name)
		}
	}
	sort.Strings(children)
	return children, nil
}

func (m *Mem) CreateEphemeral(ctx context.Context, path, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.data[path] = value
	m.ephemeral[path] = m.session
	m.journal = append(m.journal, Mutation{Op: "create-ephemeral", Path: path, Value: value})
	return nil
}

func (m *Mem) EphemeralOwner(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return "", m.failErr
	}
	return m.ephemeral[path], nil
}

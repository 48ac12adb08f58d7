package conf

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var bucketConfigs = []byte("configs")

// EventKind classifies a configuration change.
type EventKind int

const (
	Updated EventKind = iota
	Deleted
)

// Event describes a change to one pid's property dictionary.
type Event struct {
	Pid  string
	Kind EventKind
}

// Listener receives configuration events. Delivery is asynchronous; the
// listener serializes its own handling.
type Listener interface {
	ConfigurationEvent(Event)
}

// Store persists per-pid property dictionaries in BoltDB and notifies
// listeners when a dictionary changes.
type Store struct {
	db *bolt.DB

	mu        sync.RWMutex
	listeners []Listener
}

// NewStore opens (or creates) the configuration database under dataDir
func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "conf.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConfigs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Subscribe registers a listener for configuration events
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Get returns the property dictionary for pid, or nil when none exists
func (s *Store) Get(pid string) (map[string]string, error) {
	var props map[string]string
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketConfigs).Get([]byte(pid))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &props)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", pid, err)
	}
	return props, nil
}

// Update replaces the property dictionary for pid and notifies listeners
func (s *Store) Update(pid string, props map[string]string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(props)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketConfigs).Put([]byte(pid), data)
	})
	if err != nil {
		return fmt.Errorf("failed to update config %s: %w", pid, err)
	}

	s.notify(Event{Pid: pid, Kind: Updated})
	return nil
}

// Delete removes the property dictionary for pid and notifies listeners
func (s *Store) Delete(pid string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConfigs).Delete([]byte(pid))
	})
	if err != nil {
		return fmt.Errorf("failed to delete config %s: %w", pid, err)
	}

	s.notify(Event{Pid: pid, Kind: Deleted})
	return nil
}

// notify delivers the event to every listener on a fresh goroutine; the
// mutation itself never blocks on a slow listener.
func (s *Store) notify(ev Event) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range listeners {
		go l.ConfigurationEvent(ev)
	}
}

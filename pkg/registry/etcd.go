package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/roost-io/roost/pkg/log"
)

const (
	dialTimeout   = 5 * time.Second
	sessionTTL    = 10 // seconds
	reconnectWait = 2 * time.Second
)

// Etcd implements Store on top of an etcd cluster. Ephemeral records are
// keys bound to the session lease; the session id is the lease id, so a
// record left behind by a previous session reports a different owner.
type Etcd struct {
	cli *clientv3.Client

	mu        sync.Mutex
	session   *concurrency.Session
	listeners []LifecycleListener

	stopCh chan struct{}
	logger zerolog.Logger
}

// Dial connects to etcd and establishes the first session. Lifecycle
// listeners subscribed afterwards are notified on every session
// establishment and loss, including the reconnects Etcd performs itself.
func Dial(ctx context.Context, endpoints []string) (*Etcd, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	e := &Etcd{
		cli:    cli,
		stopCh: make(chan struct{}),
		logger: log.WithComponent("registry"),
	}
	return e, nil
}

// Start establishes the session and begins the keep-alive loop.
func (e *Etcd) Start(ctx context.Context) error {
	session, err := concurrency.NewSession(e.cli, concurrency.WithTTL(sessionTTL))
	if err != nil {
		return fmt.Errorf("failed to establish etcd session: %w", err)
	}

	e.mu.Lock()
	e.session = session
	e.mu.Unlock()

	go e.sessionLoop(session)
	e.notifyConnected()
	return nil
}

// Subscribe registers a lifecycle listener. If a session is already live
// the listener's OnConnected fires immediately.
func (e *Etcd) Subscribe(l LifecycleListener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	connected := e.session != nil
	e.mu.Unlock()

	if connected {
		l.OnConnected()
	}
}

// Close tears down the session and the client connection.
func (e *Etcd) Close() error {
	close(e.stopCh)

	e.mu.Lock()
	session := e.session
	e.session = nil
	e.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
	return e.cli.Close()
}

// sessionLoop waits for session expiry and re-establishes it until Close.
func (e *Etcd) sessionLoop(session *concurrency.Session) {
	select {
	case <-e.stopCh:
		return
	case <-session.Done():
	}

	e.mu.Lock()
	e.session = nil
	e.mu.Unlock()

	e.logger.Warn().Msg("etcd session lost")
	e.notifyDisconnected()

	for {
		select {
		case <-e.stopCh:
			return
		case <-time.After(reconnectWait):
		}

		next, err := concurrency.NewSession(e.cli, concurrency.WithTTL(sessionTTL))
		if err != nil {
			e.logger.Warn().Err(err).Msg("failed to re-establish etcd session")
			continue
		}

		e.mu.Lock()
		e.session = next
		e.mu.Unlock()

		e.logger.Info().Str("session", e.SessionID()).Msg("etcd session re-established")
		go e.sessionLoop(next)
		e.notifyConnected()
		return
	}
}

func (e *Etcd) notifyConnected() {
	for _, l := range e.snapshotListeners() {
		l.OnConnected()
	}
}

func (e *Etcd) notifyDisconnected() {
	for _, l := range e.snapshotListeners() {
		l.OnDisconnected()
	}
}

func (e *Etcd) snapshotListeners() []LifecycleListener {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LifecycleListener, len(e.listeners))
	copy(out, e.listeners)
	return out
}

// SessionID returns the current lease id in hex, or "" when disconnected.
func (e *Etcd) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return fmt.Sprintf("%x", int64(e.session.Lease()))
}

// Connected reports whether a live session exists.
func (e *Etcd) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

func (e *Etcd) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := e.cli.Get(ctx, path, clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	return resp.Count > 0, nil
}

func (e *Etcd) Get(ctx context.Context, path string) (string, error) {
	resp, err := e.cli.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", path, err)
	}
	if len(resp.Kvs) == 0 {
		return "", ErrNotFound
	}
	return string(resp.Kvs[0].Value), nil
}

func (e *Etcd) Set(ctx context.Context, path, value string) error {
	if _, err := e.cli.Put(ctx, path, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// CreateDefault writes only when the key is still absent, in one txn, so a
// concurrent writer is never clobbered.
func (e *Etcd) CreateDefault(ctx context.Context, path, value string) error {
	_, err := e.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(path), "=", 0)).
		Then(clientv3.OpPut(path, value)).
		Commit()
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}

func (e *Etcd) Delete(ctx context.Context, path string) error {
	if _, err := e.cli.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (e *Etcd) DeleteTree(ctx context.Context, path string) error {
	if _, err := e.cli.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	if _, err := e.cli.Delete(ctx, path+"/", clientv3.WithPrefix()); err != nil {
		return fmt.Errorf("failed to delete children of %s: %w", path, err)
	}
	return nil
}

func (e *Etcd) Children(ctx context.Context, path string) ([]string, error) {
	prefix := path + "/"
	resp, err := e.cli.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}

	seen := make(map[string]struct{})
	var children []string
	for _, kv := range resp.Kvs {
		rest := strings.TrimPrefix(string(kv.Key), prefix)
		name, _, _ := strings.Cut(rest, "/")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			children = append(children, name)
		}
	}
	return children, nil
}

func (e *Etcd) CreateEphemeral(ctx context.Context, path, value string) error {
	e.mu.Lock()
	session := e.session
	e.mu.Unlock()
	if session == nil {
		return fmt.Errorf("failed to create ephemeral %s: no session", path)
	}
	if _, err := e.cli.Put(ctx, path, value, clientv3.WithLease(session.Lease())); err != nil {
		return fmt.Errorf("failed to create ephemeral %s: %w", path, err)
	}
	return nil
}

// EphemeralOwner reports the lease id behind path in hex. Keys written
// without a lease, and absent keys, have no owner.
func (e *Etcd) EphemeralOwner(ctx context.Context, path string) (string, error) {
	resp, err := e.cli.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", path, err)
	}
	if len(resp.Kvs) == 0 || resp.Kvs[0].Lease == 0 {
		return "", nil
	}
	return fmt.Sprintf("%x", resp.Kvs[0].Lease), nil
}

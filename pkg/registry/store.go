package registry

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists at the requested path.
var ErrNotFound = errors.New("registry: path not found")

// Store is the coordination-store client used for distributed registration.
// Paths form a hierarchical tree; all keys written by one node live under
// that node's namespace, so cross-node writes never collide.
//
// Every store operation may block on network I/O. Callers holding locks
// must treat calls as blocking.
type Store interface {
	// Exists reports whether a value exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Get returns the value at path, or ErrNotFound.
	Get(ctx context.Context, path string) (string, error)

	// Set writes value at path, creating parents as needed.
	Set(ctx context.Context, path, value string) error

	// CreateDefault writes value at path only if the path is still absent
	// at write time. A concurrent writer is never clobbered.
	CreateDefault(ctx context.Context, path, value string) error

	// Delete removes the value at path. Deleting an absent path is a no-op.
	Delete(ctx context.Context, path string) error

	// DeleteTree removes path and everything below it.
	DeleteTree(ctx context.Context, path string) error

	// Children lists the direct child names under path.
	Children(ctx context.Context, path string) ([]string, error)

	// CreateEphemeral writes value at path tied to the current session;
	// the record disappears when the session ends.
	CreateEphemeral(ctx context.Context, path, value string) error

	// EphemeralOwner returns the session id owning the ephemeral record at
	// path, or "" when the path is absent or not ephemeral.
	EphemeralOwner(ctx context.Context, path string) (string, error)

	// SessionID returns the current session identifier, valid only while
	// Connected reports true.
	SessionID() string

	// Connected reports whether a live session to the store exists.
	Connected() bool
}

// LifecycleListener receives store session transitions. Callbacks may be
// delivered on arbitrary goroutines; listeners serialize internally.
type LifecycleListener interface {
	OnConnected()
	OnDisconnected()
}

package ports

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/roost-io/roost/pkg/registry"
)

// Registry persists port assignments in the coordination store. Each
// assignment is written twice: under the owning node for lookup, and under
// the host for the used-port index shared by every service on that host.
type Registry struct {
	store registry.Store
}

// NewRegistry creates a port registry backed by store
func NewRegistry(store registry.Store) *Registry {
	return &Registry{store: store}
}

// Lookup returns the assigned port for (node, pid, key), or 0 when no
// assignment exists. A malformed stored value is treated as absent.
func (r *Registry) Lookup(ctx context.Context, node, pid, key string) (int, error) {
	value, err := r.store.Get(ctx, registry.PortAssignment(node, pid, key))
	if errors.Is(err, registry.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, nil
	}
	return port, nil
}

// UsedByHost returns the set of ports marked used on host, across all
// nodes and services sharing it.
func (r *Registry) UsedByHost(ctx context.Context, host string) (map[int]struct{}, error) {
	children, err := r.store.Children(ctx, registry.HostPorts(host))
	if err != nil {
		return nil, err
	}
	used := make(map[int]struct{}, len(children))
	for _, child := range children {
		port, err := strconv.Atoi(child)
		if err != nil {
			continue
		}
		used[port] = struct{}{}
	}
	return used, nil
}

// Register persists an assignment and its host index entry
func (r *Registry) Register(ctx context.Context, node, host, pid, key string, port int) error {
	if err := r.store.Set(ctx, registry.PortAssignment(node, pid, key), strconv.Itoa(port)); err != nil {
		return fmt.Errorf("failed to register port %d for %s/%s: %w", port, pid, key, err)
	}
	if err := r.store.Set(ctx, registry.HostPort(host, port), node+"/"+pid+"/"+key); err != nil {
		return fmt.Errorf("failed to index port %d on %s: %w", port, host, err)
	}
	return nil
}

// Unregister frees every assignment the node holds under pid, including
// the host index entries. This is the only path that releases ports.
func (r *Registry) Unregister(ctx context.Context, node, host, pid string) error {
	keys, err := r.store.Children(ctx, registry.PortAssignments(node, pid))
	if err != nil {
		return err
	}
	for _, key := range keys {
		port, err := r.Lookup(ctx, node, pid, key)
		if err != nil {
			return err
		}
		if port > 0 {
			if err := r.store.Delete(ctx, registry.HostPort(host, port)); err != nil {
				return err
			}
		}
	}
	return r.store.DeleteTree(ctx, registry.PortAssignments(node, pid))
}

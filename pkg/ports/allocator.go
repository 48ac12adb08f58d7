package ports

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roost-io/roost/pkg/conf"
	"github.com/roost-io/roost/pkg/metrics"
)

// Allocator hands out conflict-free ports. An existing assignment is
// returned unchanged; otherwise the locally configured value (or the
// service default) is incremented past every port already used on the
// host, then persisted.
//
// Allocation is best-effort and non-transactional: the used-port snapshot
// and the write are separate operations. Correctness across nodes comes
// from each node allocating only within its own host's namespace.
type Allocator struct {
	ports *Registry
	conf  *conf.Store
}

// NewAllocator creates an allocator using reg for persistence and cfg for
// locally configured candidate ports
func NewAllocator(reg *Registry, cfg *conf.Store) *Allocator {
	return &Allocator{ports: reg, conf: cfg}
}

// Allocate returns the port for (node, pid, key), assigning one if needed
func (a *Allocator) Allocate(ctx context.Context, node, host, pid, key string, defaultPort int) (int, error) {
	assigned, err := a.ports.Lookup(ctx, node, pid, key)
	if err != nil {
		return 0, err
	}
	if assigned > 0 {
		return assigned, nil
	}

	candidate := a.configuredPort(pid, key, defaultPort)

	used, err := a.ports.UsedByHost(ctx, host)
	if err != nil {
		return 0, err
	}
	for {
		if _, taken := used[candidate]; !taken {
			break
		}
		candidate++
	}

	if err := a.ports.Register(ctx, node, host, pid, key, candidate); err != nil {
		return 0, err
	}
	metrics.PortsAllocatedTotal.With(prometheus.Labels{"pid": pid}).Inc()
	return candidate, nil
}

// configuredPort reads the locally configured value for key under pid.
// Absent or malformed values fall back to defaultPort.
func (a *Allocator) configuredPort(pid, key string, defaultPort int) int {
	props, err := a.conf.Get(pid)
	if err != nil || props == nil {
		return defaultPort
	}
	value, ok := props[key]
	if !ok {
		return defaultPort
	}
	port, err := strconv.Atoi(value)
	if err != nil || port <= 0 {
		return defaultPort
	}
	return port
}

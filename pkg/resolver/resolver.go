package resolver

import (
	"context"
	"errors"

	"github.com/roost-io/roost/pkg/registry"
)

// Policy selects how a node's externally reachable address is resolved.
type Policy string

const (
	Hostname      Policy = "hostname"
	IP            Policy = "ip"
	LocalHostname Policy = "local-hostname"
	LocalIP       Policy = "local-ip"
	Manual        Policy = "manual"

	// DefaultPolicy applies when nothing is stored or overridden.
	DefaultPolicy = LocalHostname
)

// Policies returns every valid policy, in a fixed order.
func Policies() []Policy {
	return []Policy{Hostname, IP, LocalHostname, LocalIP, Manual}
}

// Valid reports whether s names a known policy.
func Valid(s string) bool {
	for _, p := range Policies() {
		if string(p) == s {
			return true
		}
	}
	return false
}

// Resolver computes the resolution policy for a node by combining the
// stored per-node value, environment-supplied overrides, and the stored
// cluster-global default.
type Resolver struct {
	store registry.Store

	// nodeOverride and globalOverride come from the environment; invalid
	// values are ignored.
	nodeOverride   string
	globalOverride string
}

// New creates a resolver. nodeOverride and globalOverride may be empty.
func New(store registry.Store, nodeOverride, globalOverride string) *Resolver {
	return &Resolver{
		store:          store,
		nodeOverride:   nodeOverride,
		globalOverride: globalOverride,
	}
}

// Resolve returns the policy for node, evaluating the fallback chain:
// stored per-node value, valid per-node override, global policy. A value
// that did not come from the store is persisted under the per-node key,
// create-if-absent so a concurrent writer wins. At most one write per key.
func (r *Resolver) Resolve(ctx context.Context, node string) (Policy, error) {
	path := registry.NodeResolver(node)

	stored, err := r.store.Get(ctx, path)
	if err == nil {
		return Policy(stored), nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return "", err
	}

	var policy Policy
	if Valid(r.nodeOverride) {
		policy = Policy(r.nodeOverride)
	} else {
		policy, err = r.global(ctx)
		if err != nil {
			return "", err
		}
	}

	if err := r.store.CreateDefault(ctx, path, string(policy)); err != nil {
		return "", err
	}
	return policy, nil
}

// global returns the cluster-wide default: the stored value, else a valid
// environment override, else DefaultPolicy. A value not already stored is
// persisted under the global key.
func (r *Resolver) global(ctx context.Context) (Policy, error) {
	stored, err := r.store.Get(ctx, registry.GlobalResolver())
	if err == nil {
		return Policy(stored), nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return "", err
	}

	policy := DefaultPolicy
	if Valid(r.globalOverride) {
		policy = Policy(r.globalOverride)
	}
	if err := r.store.CreateDefault(ctx, registry.GlobalResolver(), string(policy)); err != nil {
		return "", err
	}
	return policy, nil
}

// Pointer renders the node's templated address pointer for policy. The
// published value defers resolution to the policy key, so the underlying
// address can change without republishing dependent records.
func Pointer(node string, policy Policy) string {
	return registry.Pointer(node, string(policy))
}

package agent

import (
	"context"

	"github.com/roost-io/roost/pkg/registry"
)

// Member is the cluster member the agent registers endpoints for. Host is
// the identity ports are namespaced under; it may block on store reads.
type Member interface {
	ID() string
	Host(ctx context.Context) (string, error)
}

// MemberSource supplies the fully constructed member once the surrounding
// runtime has one. Before that, the coordinator registers through a
// placeholder.
type MemberSource interface {
	Current() (Member, error)
}

// localMember is a member with a known literal host.
type localMember struct {
	id   string
	host string
}

// NewMember returns a member with a fixed host address.
func NewMember(id, host string) Member {
	return localMember{id: id, host: host}
}

func (m localMember) ID() string { return m.id }

func (m localMember) Host(ctx context.Context) (string, error) {
	return m.host, nil
}

// placeholderMember stands in before the real member exists. Its host is
// resolved by expanding the node's address pointer against the store, so
// registration can proceed as soon as the address records are published.
type placeholderMember struct {
	id    string
	store registry.Store
}

func (m placeholderMember) ID() string { return m.id }

func (m placeholderMember) Host(ctx context.Context) (string, error) {
	return registry.Expand(ctx, m.store, registry.Pointer(m.id, "address"))
}

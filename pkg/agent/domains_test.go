package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roost-io/roost/pkg/mgmt"
	"github.com/roost-io/roost/pkg/registry"
)

// attachedCoordinator returns a connected coordinator with a management
// registry attached as the domain lister. Notifications are driven by the
// tests directly, so handling stays deterministic.
func attachedCoordinator(t *testing.T) (*Coordinator, *registry.Mem, *mgmt.Server) {
	t.Helper()
	c, store, _ := newTestCoordinator(t, nil)
	server := mgmt.NewServer()
	c.AttachManagementRegistry(server)
	c.OnConnected()
	return c, store, server
}

func domainMutations(store *registry.Mem, node, domain string) []registry.Mutation {
	var out []registry.Mutation
	for _, m := range store.Journal() {
		if m.Path == registry.NodeDomain(node, domain) {
			out = append(out, m)
		}
	}
	return out
}

func TestDomainAddIdempotent(t *testing.T) {
	ctx := context.Background()
	c, store, server := attachedCoordinator(t)
	store.ResetJournal()

	require.NoError(t, server.Register(mgmt.Unit{Domain: "org.foo", Name: "a"}))
	c.UnitRegistered(mgmt.Unit{Domain: "org.foo", Name: "a"})
	c.UnitRegistered(mgmt.Unit{Domain: "org.foo", Name: "a"})

	exists, err := store.Exists(ctx, registry.NodeDomain("node-a", "org.foo"))
	require.NoError(t, err)
	assert.True(t, exists)

	// exactly one store write for the duplicate notifications
	assert.Len(t, domainMutations(store, "node-a", "org.foo"), 1)
}

func TestDomainRemovalRetainsSharedDomain(t *testing.T) {
	ctx := context.Background()
	c, store, server := attachedCoordinator(t)

	// two units share the domain
	require.NoError(t, server.Register(mgmt.Unit{Domain: "org.foo", Name: "a"}))
	require.NoError(t, server.Register(mgmt.Unit{Domain: "org.foo", Name: "b"}))
	c.UnitRegistered(mgmt.Unit{Domain: "org.foo", Name: "a"})
	c.UnitRegistered(mgmt.Unit{Domain: "org.foo", Name: "b"})

	// removing one unit leaves the domain in use
	server.Unregister(mgmt.Unit{Domain: "org.foo", Name: "a"})
	c.UnitUnregistered(mgmt.Unit{Domain: "org.foo", Name: "a"})

	exists, err := store.Exists(ctx, registry.NodeDomain("node-a", "org.foo"))
	require.NoError(t, err)
	assert.True(t, exists)

	// removing the last unit deletes the record
	server.Unregister(mgmt.Unit{Domain: "org.foo", Name: "b"})
	c.UnitUnregistered(mgmt.Unit{Domain: "org.foo", Name: "b"})

	exists, err = store.Exists(ctx, registry.NodeDomain("node-a", "org.foo"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestResyncPublishesAllDomains(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator(t, nil)
	server := mgmt.NewServer()
	require.NoError(t, server.Register(mgmt.Unit{Domain: "org.foo", Name: "a"}))
	require.NoError(t, server.Register(mgmt.Unit{Domain: "org.bar", Name: "b"}))

	c.OnConnected()

	// attach after connect triggers an immediate resync
	c.AttachManagementRegistry(server)

	children, err := store.Children(ctx, registry.NodeDomains("node-a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"org.bar", "org.foo"}, children)
}

func TestResyncIdempotentOverExistingRecords(t *testing.T) {
	c, store, server := attachedCoordinator(t)
	require.NoError(t, server.Register(mgmt.Unit{Domain: "org.foo", Name: "a"}))
	c.UnitRegistered(mgmt.Unit{Domain: "org.foo", Name: "a"})
	store.ResetJournal()

	// re-attaching resyncs; the existing record produces no write
	c.AttachManagementRegistry(server)
	assert.Empty(t, domainMutations(store, "node-a", "org.foo"))
}

func TestNotificationsIgnoredWithoutRegistry(t *testing.T) {
	c, store, _ := newTestCoordinator(t, nil)
	c.OnConnected()
	store.ResetJournal()

	c.UnitRegistered(mgmt.Unit{Domain: "org.foo", Name: "a"})
	assert.Empty(t, store.Journal())
}

func TestDetachRemovesDomainRecords(t *testing.T) {
	ctx := context.Background()
	c, store, server := attachedCoordinator(t)
	require.NoError(t, server.Register(mgmt.Unit{Domain: "org.foo", Name: "a"}))
	c.UnitRegistered(mgmt.Unit{Domain: "org.foo", Name: "a"})

	c.DetachManagementRegistry()

	exists, err := store.Exists(ctx, registry.NodeDomain("node-a", "org.foo"))
	require.NoError(t, err)
	assert.False(t, exists)

	// notifications after detach are ignored
	store.ResetJournal()
	c.UnitRegistered(mgmt.Unit{Domain: "org.bar", Name: "b"})
	assert.Empty(t, store.Journal())
}

package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roost-io/roost/pkg/conf"
	"github.com/roost-io/roost/pkg/config"
	"github.com/roost-io/roost/pkg/hostinfo"
	"github.com/roost-io/roost/pkg/registry"
)

func newTestCoordinator(t *testing.T, cfg *config.Config) (*Coordinator, *registry.Mem, *conf.Store) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{
			NodeID:    "node-a",
			Version:   "1.0",
			Addresses: make(map[string]string),
		}
	}
	store := registry.NewMem()
	confStore, err := conf.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { confStore.Close() })

	return New(store, confStore, cfg), store, confStore
}

// alivePathMutations filters the journal down to liveness-marker traffic.
func alivePathMutations(store *registry.Mem, node string) []registry.Mutation {
	var out []registry.Mutation
	for _, m := range store.Journal() {
		if m.Path == registry.NodeAlive(node) {
			out = append(out, m)
		}
	}
	return out
}

func TestConnectRegistersFreshNode(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator(t, nil)

	c.OnConnected()

	// three endpoint records with the default ports
	management, err := store.Get(ctx, registry.NodeEndpoint("node-a", KindManagement))
	require.NoError(t, err)
	assert.Contains(t, management, ":44444/jndi/rmi://")
	assert.Contains(t, management, ":1099/roost-node-a")

	shell, err := store.Get(ctx, registry.NodeEndpoint("node-a", KindShell))
	require.NoError(t, err)
	assert.Equal(t, "${reg:node-a/address}:8101", shell)

	web, err := store.Get(ctx, registry.NodeEndpoint("node-a", KindWeb))
	require.NoError(t, err)
	assert.Equal(t, "${reg:node-a/address}:8181", web)

	// liveness marker owned by the current session
	owner, err := store.EphemeralOwner(ctx, registry.NodeAlive("node-a"))
	require.NoError(t, err)
	assert.Equal(t, store.SessionID(), owner)

	// resolver defaults to local-hostname and the address is a pointer
	policy, err := store.Get(ctx, registry.NodeResolver("node-a"))
	require.NoError(t, err)
	assert.Equal(t, "local-hostname", policy)

	address, err := store.Get(ctx, registry.NodeAddress("node-a"))
	require.NoError(t, err)
	assert.Equal(t, "${reg:node-a/local-hostname}", address)

	hostname, err := store.Get(ctx, registry.NodeLocalHostname("node-a"))
	require.NoError(t, err)
	assert.Equal(t, hostinfo.LocalHostname(), hostname)

	// published URLs expand to concrete addresses
	expanded, err := registry.Expand(ctx, store, shell)
	require.NoError(t, err)
	assert.Equal(t, hostinfo.LocalHostname()+":8101", expanded)
}

func TestConnectAllocatesAroundUsedPorts(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator(t, nil)

	// another service on the same host already holds 1099 and 1100
	host := hostinfo.LocalHostname()
	require.NoError(t, store.Set(ctx, registry.HostPort(host, 1099), "other/x/y"))
	require.NoError(t, store.Set(ctx, registry.HostPort(host, 1100), "other/x/z"))

	c.OnConnected()

	management, err := store.Get(ctx, registry.NodeEndpoint("node-a", KindManagement))
	require.NoError(t, err)
	assert.Contains(t, management, ":1101/roost-node-a")
}

func TestLivenessMarkerSessionTakeover(t *testing.T) {
	c, store, _ := newTestCoordinator(t, nil)

	store.SetSession("s1")
	c.OnConnected()
	store.ResetJournal()

	// marker left behind by s1; reconnect under s2 must take it over
	store.SetSession("s2")
	c.OnConnected()

	alive := alivePathMutations(store, "node-a")
	require.Len(t, alive, 2)
	assert.Equal(t, "delete", alive[0].Op)
	assert.Equal(t, "create-ephemeral", alive[1].Op)

	owner, err := store.EphemeralOwner(context.Background(), registry.NodeAlive("node-a"))
	require.NoError(t, err)
	assert.Equal(t, "s2", owner)

	// reconnecting again under s2 leaves the marker untouched
	store.ResetJournal()
	c.OnConnected()
	assert.Empty(t, alivePathMutations(store, "node-a"))
}

func TestConnectPartialFailureRetriesCleanly(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator(t, nil)

	store.FailWith(errors.New("store unavailable"))
	c.OnConnected()

	// nothing published, nothing panicked
	exists, _ := store.Exists(ctx, registry.NodeEndpoint("node-a", KindShell))
	assert.False(t, exists)

	// next connect converges
	store.FailWith(nil)
	c.OnConnected()

	shell, err := store.Get(ctx, registry.NodeEndpoint("node-a", KindShell))
	require.NoError(t, err)
	assert.Equal(t, "${reg:node-a/address}:8101", shell)
}

func TestConnectSeedsAddressesAndBindings(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		NodeID:      "node-a",
		Version:     "1.1",
		Profiles:    "default",
		Geolocation: "52.5,13.4",
		PortMin:     "1024",
		PortMax:     "65535",
		Addresses: map[string]string{
			"manual": "203.0.113.7",
		},
	}
	c, store, _ := newTestCoordinator(t, cfg)

	// a pre-existing literal must not be overwritten by the seed
	require.NoError(t, store.Set(ctx, registry.NodeKey("node-a", "hostname"), "kept.example.com"))
	cfg.Addresses["hostname"] = "seeded.example.com"

	c.OnConnected()

	version, err := store.Get(ctx, registry.NodeVersion("node-a"))
	require.NoError(t, err)
	assert.Equal(t, "1.1", version)

	profiles, err := store.Get(ctx, registry.VersionNode("1.1", "node-a"))
	require.NoError(t, err)
	assert.Equal(t, "default", profiles)

	manual, err := store.Get(ctx, registry.NodeKey("node-a", "manual"))
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", manual)

	kept, err := store.Get(ctx, registry.NodeKey("node-a", "hostname"))
	require.NoError(t, err)
	assert.Equal(t, "kept.example.com", kept)

	portMin, err := store.Get(ctx, registry.NodePortMin("node-a"))
	require.NoError(t, err)
	assert.Equal(t, "1024", portMin)

	geo, err := store.Get(ctx, registry.NodeGeolocation("node-a"))
	require.NoError(t, err)
	assert.Equal(t, "52.5,13.4", geo)
}

func TestConnectDiscardsStaleDomainRecords(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator(t, nil)

	// leftovers from a previous session
	require.NoError(t, store.Set(ctx, registry.NodeDomain("node-a", "org.stale"), ""))

	c.OnConnected()

	exists, err := store.Exists(ctx, registry.NodeDomain("node-a", "org.stale"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDisconnectedSuspendsMutation(t *testing.T) {
	c, store, confStore := newTestCoordinator(t, nil)

	c.OnConnected()
	c.OnDisconnected()
	store.ResetJournal()

	require.NoError(t, confStore.Update(ShellPid, map[string]string{SSHKey: "9999"}))
	c.ConfigurationEvent(conf.Event{Pid: ShellPid, Kind: conf.Updated})

	assert.Empty(t, store.Journal())
}

func TestMemberFallsBackToPlaceholder(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t, nil)

	c.OnConnected()

	m := c.member()
	host, err := m.Host(ctx)
	require.NoError(t, err)
	assert.Equal(t, hostinfo.LocalHostname(), host)
}

func TestMemberSourcePreferred(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t, nil)

	c.SetMemberSource(staticSource{m: NewMember("node-a", "10.0.0.5")})

	host, err := c.member().Host(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", host)
}

type staticSource struct{ m Member }

func (s staticSource) Current() (Member, error) { return s.m, nil }

func TestDestroyRemovesDomainRecords(t *testing.T) {
	ctx := context.Background()
	c, store, _ := newTestCoordinator(t, nil)

	c.OnConnected()
	require.NoError(t, store.Set(ctx, registry.NodeDomain("node-a", "org.foo"), ""))

	c.Destroy()

	exists, err := store.Exists(ctx, registry.NodeDomain("node-a", "org.foo"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestURLBuildersAreDistinctPerService(t *testing.T) {
	// web and shell render the same shape but through separate builders
	shell := shellURL("node-a", map[string]int{SSHKey: 8101})
	web := webURL("node-a", map[string]int{HTTPKey: 8181})

	assert.True(t, strings.HasSuffix(shell, ":8101"))
	assert.True(t, strings.HasSuffix(web, ":8181"))
}

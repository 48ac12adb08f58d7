package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/roost-io/roost/pkg/conf"
	"github.com/roost-io/roost/pkg/config"
	"github.com/roost-io/roost/pkg/hostinfo"
	"github.com/roost-io/roost/pkg/log"
	"github.com/roost-io/roost/pkg/metrics"
	"github.com/roost-io/roost/pkg/mgmt"
	"github.com/roost-io/roost/pkg/ports"
	"github.com/roost-io/roost/pkg/registry"
	"github.com/roost-io/roost/pkg/resolver"
)

// Coordinator is the per-node lifecycle state machine. It reacts to store
// session transitions, configuration changes, and management-registry
// notifications, and reconciles the node's published registration facts.
//
// Every entry point serializes on one mutex, so connect processing, domain
// notifications, and configuration handling never interleave their store
// read-modify-write sequences. Store calls block while holding the mutex.
//
// No entry point surfaces an error: failures are logged and the cycle is
// abandoned. Steps are individually idempotent, so the next triggering
// event converges the published state again.
type Coordinator struct {
	mu sync.Mutex

	store    registry.Store
	conf     *conf.Store
	portsReg *ports.Registry
	alloc    *ports.Allocator
	resolver *resolver.Resolver
	cfg      *config.Config

	members MemberSource // optional

	registrar *endpointRegistrar
	sync      *domainSynchronizer

	// domains is the in-memory view of locally exposed management domains;
	// the store-side children are derived from it, never the reverse.
	domains map[string]struct{}

	lister    DomainLister // nil until the management registry attaches
	connected bool

	logger zerolog.Logger
}

// New creates a coordinator for the node described by cfg.
func New(store registry.Store, cfgStore *conf.Store, cfg *config.Config) *Coordinator {
	logger := log.WithComponent("agent").With().Str("node_id", cfg.NodeID).Logger()

	portsReg := ports.NewRegistry(store)
	c := &Coordinator{
		store:    store,
		conf:     cfgStore,
		portsReg: portsReg,
		alloc:    ports.NewAllocator(portsReg, cfgStore),
		resolver: resolver.New(store, cfg.Resolver, cfg.GlobalResolver),
		cfg:      cfg,
		domains:  make(map[string]struct{}),
		logger:   logger,
	}
	c.registrar = &endpointRegistrar{
		store:  store,
		ports:  portsReg,
		alloc:  c.alloc,
		conf:   cfgStore,
		logger: logger,
	}
	c.sync = &domainSynchronizer{
		store:   store,
		node:    cfg.NodeID,
		domains: c.domains,
		logger:  logger,
	}
	return c
}

// SetMemberSource wires the source of the real member identity. Without
// one, registration proceeds through a placeholder that resolves its host
// from the store.
func (c *Coordinator) SetMemberSource(src MemberSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.members = src
}

// OnConnected runs the full registration sequence for a fresh session.
// The sequence is one failure boundary: a mid-sequence failure logs a
// warning and abandons the rest until the next connect.
func (c *Coordinator) OnConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = true
	c.logger.Debug().Str("session", c.store.SessionID()).Msg("session connected")

	timer := metrics.NewTimer()
	metrics.ConnectCyclesTotal.Inc()

	if err := c.register(context.Background()); err != nil {
		metrics.RegistrationErrorsTotal.WithLabelValues("connect").Inc()
		c.logger.Warn().Err(err).Msg("error updating node registration, will retry on next connect")
		return
	}
	timer.ObserveDuration(metrics.ConnectCycleDuration)
}

// register is the connect-time reconciliation sequence.
func (c *Coordinator) register(ctx context.Context) error {
	node := c.cfg.NodeID

	// Version and profile bindings, only when profiles were supplied.
	if c.cfg.Profiles != "" {
		if err := c.store.CreateDefault(ctx, registry.NodeVersion(node), c.cfg.Version); err != nil {
			return err
		}
		if err := c.store.CreateDefault(ctx, registry.VersionNode(c.cfg.Version, node), c.cfg.Profiles); err != nil {
			return err
		}
	}

	if err := c.reconcileLiveness(ctx); err != nil {
		return err
	}

	// Domain records from a previous session are stale; start clean.
	exists, err := c.store.Exists(ctx, registry.NodeDomains(node))
	if err != nil {
		return err
	}
	if exists {
		if err := c.store.DeleteTree(ctx, registry.NodeDomains(node)); err != nil {
			return err
		}
	}

	policy, err := c.resolver.Resolve(ctx, node)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, registry.NodeLocalHostname(node), hostinfo.LocalHostname()); err != nil {
		return err
	}
	if err := c.store.Set(ctx, registry.NodeLocalIP(node), hostinfo.LocalIP()); err != nil {
		return err
	}
	if err := c.store.Set(ctx, registry.NodeAddress(node), resolver.Pointer(node, policy)); err != nil {
		return err
	}
	if err := c.store.CreateDefault(ctx, registry.NodeGeolocation(node), c.cfg.Geolocation); err != nil {
		return err
	}

	// Seed literal addresses supplied by the environment, for bootstrap
	// before a full registration exists. Stored values win.
	for _, kind := range resolver.Policies() {
		address := c.cfg.Addresses[string(kind)]
		if address == "" {
			continue
		}
		exists, err := c.store.Exists(ctx, registry.NodeKey(node, string(kind)))
		if err != nil {
			return err
		}
		if !exists {
			if err := c.store.Set(ctx, registry.NodeKey(node, string(kind)), address); err != nil {
				return err
			}
		}
	}

	m := c.member()
	for _, svc := range services {
		if err := c.registrar.register(ctx, m, svc); err != nil {
			return err
		}
	}

	if c.cfg.PortMin != "" {
		if err := c.store.CreateDefault(ctx, registry.NodePortMin(node), c.cfg.PortMin); err != nil {
			return err
		}
	}
	if c.cfg.PortMax != "" {
		if err := c.store.CreateDefault(ctx, registry.NodePortMax(node), c.cfg.PortMax); err != nil {
			return err
		}
	}

	if c.lister != nil {
		if err := c.sync.resync(ctx, c.lister); err != nil {
			return err
		}
	}
	return nil
}

// reconcileLiveness enforces single ownership of the liveness marker: a
// marker left behind by a stale session is deleted and recreated under the
// current one; a marker already owned by this session is left untouched.
func (c *Coordinator) reconcileLiveness(ctx context.Context) error {
	node := c.cfg.NodeID
	alive := registry.NodeAlive(node)
	session := c.store.SessionID()

	exists, err := c.store.Exists(ctx, alive)
	if err != nil {
		return err
	}
	if exists {
		owner, err := c.store.EphemeralOwner(ctx, alive)
		if err != nil {
			return err
		}
		if owner == session {
			return nil
		}
		if err := c.store.Delete(ctx, alive); err != nil {
			return err
		}
	}
	if err := c.store.CreateEphemeral(ctx, alive, session); err != nil {
		return fmt.Errorf("failed to create liveness marker: %w", err)
	}
	return nil
}

// OnDisconnected suspends store mutation until the next connect.
func (c *Coordinator) OnDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.logger.Debug().Msg("session disconnected")
}

// Destroy removes the node's published domain records, best effort.
func (c *Coordinator) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug().Msg("destroy")
	if !c.connected {
		return
	}
	if err := c.sync.unregisterAll(context.Background()); err != nil {
		c.logger.Warn().Err(err).Msg("error removing domain records during destroy, ignoring")
	}
}

// AttachManagementRegistry starts domain synchronization against lister
// and, when already connected, resyncs immediately. The caller subscribes
// the coordinator to the registry's notifications.
func (c *Coordinator) AttachManagementRegistry(lister DomainLister) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lister = lister
	if !c.connected {
		return
	}
	if err := c.sync.resync(context.Background(), lister); err != nil {
		metrics.RegistrationErrorsTotal.WithLabelValues("attach").Inc()
		c.logger.Warn().Err(err).Msg("error during domain resync, ignoring")
	}
}

// DetachManagementRegistry stops domain synchronization and removes the
// published domain records, best effort.
func (c *Coordinator) DetachManagementRegistry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lister == nil {
		return
	}
	c.lister = nil
	if !c.connected {
		return
	}
	if err := c.sync.unregisterAll(context.Background()); err != nil {
		c.logger.Warn().Err(err).Msg("error removing domain records during detach, ignoring")
	}
}

// UnitRegistered handles a management-registry add notification.
func (c *Coordinator) UnitRegistered(u mgmt.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// notifications may arrive while the store session is down
	if !c.connected || c.lister == nil {
		return
	}
	if err := c.sync.registered(context.Background(), u.Domain); err != nil {
		metrics.RegistrationErrorsTotal.WithLabelValues("domain").Inc()
		c.logger.Warn().Err(err).Str("domain", u.Domain).Msg("error during domain synchronization, ignoring")
	}
}

// UnitUnregistered handles a management-registry remove notification.
func (c *Coordinator) UnitUnregistered(u mgmt.Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.lister == nil {
		return
	}
	if err := c.sync.unregistered(context.Background(), c.lister, u.Domain); err != nil {
		metrics.RegistrationErrorsTotal.WithLabelValues("domain").Inc()
		c.logger.Warn().Err(err).Str("domain", u.Domain).Msg("error during domain synchronization, ignoring")
	}
}

// ConfigurationEvent re-registers the endpoint whose pid changed. Only
// update events for tracked pids matter, and only while connected.
func (c *Coordinator) ConfigurationEvent(ev conf.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || ev.Kind != conf.Updated {
		return
	}
	for _, svc := range services {
		if svc.Pid != ev.Pid {
			continue
		}
		metrics.ConfigEventsTotal.Inc()
		if err := c.registrar.reregister(context.Background(), c.member(), svc); err != nil {
			metrics.RegistrationErrorsTotal.WithLabelValues("config").Inc()
			c.logger.Warn().Err(err).Str("pid", ev.Pid).Msg("error re-registering endpoint, ignoring")
		}
		return
	}
}

// member returns the real member when the source has one, else the
// placeholder resolving its host through the store.
func (c *Coordinator) member() Member {
	if c.members != nil {
		if m, err := c.members.Current(); err == nil && m != nil {
			return m
		}
	}
	return placeholderMember{id: c.cfg.NodeID, store: c.store}
}

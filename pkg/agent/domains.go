package agent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/roost-io/roost/pkg/metrics"
	"github.com/roost-io/roost/pkg/registry"
)

// DomainLister enumerates the management domains currently exposed locally.
type DomainLister interface {
	Domains() []string
}

// domainSynchronizer reconciles the locally exposed management domains
// against the store. The domain set is owned by the coordinator and handed
// in by reference; all calls arrive serialized under the coordinator lock.
type domainSynchronizer struct {
	store   registry.Store
	node    string
	domains map[string]struct{}
	logger  zerolog.Logger
}

// resync replaces the domain set with the registry's current view and
// publishes a child record per domain. Creates are idempotent, so a resync
// over existing records writes nothing new.
func (s *domainSynchronizer) resync(ctx context.Context, lister DomainLister) error {
	current := lister.Domains()

	for d := range s.domains {
		delete(s.domains, d)
	}
	for _, domain := range current {
		s.domains[domain] = struct{}{}
		if err := s.store.CreateDefault(ctx, registry.NodeDomain(s.node, domain), ""); err != nil {
			return err
		}
	}

	metrics.DomainSyncTotal.WithLabelValues("resync").Inc()
	s.logger.Debug().Int("domains", len(current)).Msg("domains resynced")
	return nil
}

// registered handles a new-domain notification. Only a domain newly added
// to the local set, with no store record yet, produces a write; duplicate
// notifications are free.
func (s *domainSynchronizer) registered(ctx context.Context, domain string) error {
	if _, ok := s.domains[domain]; ok {
		return nil
	}
	s.domains[domain] = struct{}{}

	exists, err := s.store.Exists(ctx, registry.NodeDomain(s.node, domain))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.store.Set(ctx, registry.NodeDomain(s.node, domain), ""); err != nil {
		return err
	}

	metrics.DomainSyncTotal.WithLabelValues("add").Inc()
	s.logger.Debug().Str("domain", domain).Msg("domain registered")
	return nil
}

// unregistered handles a domain-removal notification. The notification
// does not say whether other units still use the domain, so the registry
// is re-enumerated; the store record is deleted only when the domain is
// gone entirely.
func (s *domainSynchronizer) unregistered(ctx context.Context, lister DomainLister, domain string) error {
	for d := range s.domains {
		delete(s.domains, d)
	}
	for _, d := range lister.Domains() {
		s.domains[d] = struct{}{}
	}

	if _, still := s.domains[domain]; still {
		return nil
	}
	if err := s.store.Delete(ctx, registry.NodeDomain(s.node, domain)); err != nil {
		return err
	}

	metrics.DomainSyncTotal.WithLabelValues("remove").Inc()
	s.logger.Debug().Str("domain", domain).Msg("domain unregistered")
	return nil
}

// unregisterAll deletes every published domain record for the node.
func (s *domainSynchronizer) unregisterAll(ctx context.Context) error {
	children, err := s.store.Children(ctx, registry.NodeDomains(s.node))
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.store.Delete(ctx, registry.NodeDomain(s.node, child)); err != nil {
			return err
		}
	}
	return nil
}

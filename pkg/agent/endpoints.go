package agent

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/roost-io/roost/pkg/conf"
	"github.com/roost-io/roost/pkg/ports"
	"github.com/roost-io/roost/pkg/registry"
)

// endpointRegistrar publishes one connection URL per service and keeps the
// locally configured ports in line with the allocated ones.
type endpointRegistrar struct {
	store  registry.Store
	ports  *ports.Registry
	alloc  *ports.Allocator
	conf   *conf.Store
	logger zerolog.Logger
}

// register allocates ports for svc, publishes its URL, and pushes the
// allocated ports back into the local configuration store when they differ
// from what the service is configured to bind.
func (r *endpointRegistrar) register(ctx context.Context, m Member, svc Service) error {
	host, err := m.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve host for %s: %w", m.ID(), err)
	}

	allocated := make(map[string]int, len(svc.Keys))
	for _, key := range svc.Keys {
		port, err := r.alloc.Allocate(ctx, m.ID(), host, svc.Pid, key.Name, key.Default)
		if err != nil {
			return fmt.Errorf("failed to allocate %s/%s: %w", svc.Pid, key.Name, err)
		}
		allocated[key.Name] = port
	}

	url := svc.URL(m.ID(), allocated)
	if err := r.store.Set(ctx, registry.NodeEndpoint(m.ID(), svc.Kind), url); err != nil {
		return fmt.Errorf("failed to publish %s endpoint: %w", svc.Kind, err)
	}

	r.pushConfiguredPorts(svc, allocated)

	r.logger.Debug().
		Str("kind", svc.Kind).
		Str("url", url).
		Msg("endpoint registered")
	return nil
}

// pushConfiguredPorts updates the service's local configuration so it
// binds the allocated ports. A local-config failure leaves the endpoint
// with its previously published port; the failure is logged, not returned.
func (r *endpointRegistrar) pushConfiguredPorts(svc Service, allocated map[string]int) {
	props, err := r.conf.Get(svc.Pid)
	if err != nil {
		r.logger.Warn().Err(err).Str("pid", svc.Pid).Msg("failed to read local configuration")
		return
	}
	if props == nil {
		props = make(map[string]string)
	}

	changed := false
	for name, port := range allocated {
		value := strconv.Itoa(port)
		if props[name] != value {
			props[name] = value
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := r.conf.Update(svc.Pid, props); err != nil {
		r.logger.Warn().Err(err).Str("pid", svc.Pid).Msg("failed to update local configuration")
	}
}

// reregister handles a configuration change for svc: republish the URL
// from the newly configured ports, and when they differ from the currently
// registered assignment, release the old assignment and register the new
// ports. This is the only path that frees a port assignment.
func (r *endpointRegistrar) reregister(ctx context.Context, m Member, svc Service) error {
	props, err := r.conf.Get(svc.Pid)
	if err != nil {
		return fmt.Errorf("failed to read configuration for %s: %w", svc.Pid, err)
	}
	if props == nil {
		return nil
	}

	configured := make(map[string]int, len(svc.Keys))
	for _, key := range svc.Keys {
		value, ok := props[key.Name]
		if !ok {
			return fmt.Errorf("configuration for %s is missing %s", svc.Pid, key.Name)
		}
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("configuration for %s has malformed %s: %w", svc.Pid, key.Name, err)
		}
		configured[key.Name] = port
	}

	url := svc.URL(m.ID(), configured)
	if err := r.store.Set(ctx, registry.NodeEndpoint(m.ID(), svc.Kind), url); err != nil {
		return fmt.Errorf("failed to publish %s endpoint: %w", svc.Kind, err)
	}

	changed := false
	for _, key := range svc.Keys {
		current, err := r.ports.Lookup(ctx, m.ID(), svc.Pid, key.Name)
		if err != nil {
			return err
		}
		if current != configured[key.Name] {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	host, err := m.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve host for %s: %w", m.ID(), err)
	}
	if err := r.ports.Unregister(ctx, m.ID(), host, svc.Pid); err != nil {
		return fmt.Errorf("failed to release ports for %s: %w", svc.Pid, err)
	}
	for _, key := range svc.Keys {
		if err := r.ports.Register(ctx, m.ID(), host, svc.Pid, key.Name, configured[key.Name]); err != nil {
			return fmt.Errorf("failed to register port for %s/%s: %w", svc.Pid, key.Name, err)
		}
	}

	r.logger.Info().
		Str("kind", svc.Kind).
		Str("url", url).
		Msg("endpoint re-registered after configuration change")
	return nil
}

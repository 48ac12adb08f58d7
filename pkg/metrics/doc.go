/*
Package metrics provides Prometheus metrics and health endpoints for the
Roost agent.

Metrics cover the agent's reconciliation activity: connect cycles and their
duration, abandoned registration cycles by trigger, port allocations by
service pid, domain synchronization operations, and handled configuration
events. The package also serves /healthz, /readyz, and /livez handlers
backed by a component health checker; the store session, the local
configuration store, and the agent itself report their state into it.
*/
package metrics

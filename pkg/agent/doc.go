/*
Package agent implements the per-node registration coordinator for Roost.

Each cluster member runs one Coordinator. On every store session connect it
reconciles the node's published facts: the ephemeral liveness marker (with
stale-session takeover), the resolution policy and address records, one
connection URL per exposed service with a conflict-free allocated port, the
configured port-range bounds, and the set of locally exposed management
domains.

# Architecture

	session connect ──────────┐
	configuration change ─────┤
	domain notifications ─────┼──▶ Coordinator (single mutex)
	registry attach/detach ───┘         │
	                   ┌────────────────┼────────────────┐
	                   ▼                ▼                ▼
	            liveness marker  endpointRegistrar  domainSynchronizer
	                                    │
	                              ports.Allocator

All triggers serialize on the coordinator's mutex. The connect sequence is
a single failure boundary: a mid-sequence store failure logs a warning and
abandons the cycle, and the next connect retries from scratch. Every step
is individually idempotent, so a partial run followed by a retry converges.

The in-memory domain set and the current port assignments are owned by the
coordinator; the store-side copies are derived, never the in-process source
of truth.
*/
package agent

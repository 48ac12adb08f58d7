/*
Package registry is the coordination-store layer for Roost.

It defines the Store interface every component registers through, the path
layout of the shared tree, and the ${reg:node/key} substitution tokens that
let published records defer address resolution to read time.

Two implementations ship with it:

  - Etcd: the production store. Sessions map to etcd leases; ephemeral
    records are lease-bound keys and the session id is the lease id, so a
    marker left behind by a previous session reports a different owner.
  - Mem: an in-memory store for tests and standalone runs. It journals
    every mutation and exposes session control, so tests can assert on the
    exact store traffic of a reconciliation cycle.

All keys a node writes live under that node's id. Cross-node collisions are
impossible by key design, not by locking; individual operations are
idempotent so a partially failed cycle converges on the next retry.
*/
package registry

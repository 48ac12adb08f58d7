/*
Package conf is the node-local configuration store.

Each running service owns a property dictionary keyed by its pid (a reverse-
DNS service identity like "io.roost.shell"). Dictionaries persist in BoltDB
under the agent's data directory. Mutations are synchronous; change events
are delivered asynchronously to subscribed listeners, carrying the pid and
the kind of change, mirroring how a configuration-admin service notifies
its consumers.
*/
package conf

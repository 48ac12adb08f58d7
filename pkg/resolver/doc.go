/*
Package resolver computes the address-resolution policy for a node.

The policy decides which per-node attribute (hostname, ip, local-hostname,
local-ip, or a manually seeded value) answers "how do I reach this node".
Resolution walks a fallback chain: the value already stored for the node
wins outright, then a valid per-node override from the environment, then
the cluster-global default, itself seeded from an environment override or
falling back to local-hostname. A freshly computed value is persisted once,
create-if-absent, so concurrent resolvers converge on one answer.
*/
package resolver

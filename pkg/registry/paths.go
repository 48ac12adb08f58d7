package registry

import "strconv"

// Store path layout. Everything a node publishes lives under its own id so
// that concurrent nodes never write the same keys.
const (
	registryRoot = "/roost/registry"
	configRoot   = "/roost/config"

	nodesPrefix    = registryRoot + "/nodes"
	portsPrefix    = registryRoot + "/ports"
	policiesPrefix = registryRoot + "/policies"
)

// NodeKey returns the path of an arbitrary per-node attribute.
func NodeKey(node, key string) string {
	return nodesPrefix + "/" + node + "/" + key
}

// NodeAlive is the node's ephemeral liveness marker.
func NodeAlive(node string) string { return NodeKey(node, "alive") }

// NodeDomains is the subtree whose children are the node's exposed
// management domains.
func NodeDomains(node string) string { return NodeKey(node, "domains") }

// NodeDomain is the record for a single exposed domain.
func NodeDomain(node, domain string) string { return NodeDomains(node) + "/" + domain }

// NodeResolver holds the node's persisted resolution policy.
func NodeResolver(node string) string { return NodeKey(node, "resolver") }

// NodeAddress holds the templated address pointer for the node.
func NodeAddress(node string) string { return NodeKey(node, "address") }

// NodeLocalHostname and NodeLocalIP hold the literal local addresses.
func NodeLocalHostname(node string) string { return NodeKey(node, "local-hostname") }
func NodeLocalIP(node string) string       { return NodeKey(node, "local-ip") }

// NodeGeolocation holds the node's geolocation hint.
func NodeGeolocation(node string) string { return NodeKey(node, "geolocation") }

// NodeEndpoint holds a service connection URL (management, shell, web).
func NodeEndpoint(node, kind string) string { return NodeKey(node, kind) }

// NodePortMin and NodePortMax hold the configured port-range bounds.
func NodePortMin(node string) string { return NodeKey(node, "port-min") }
func NodePortMax(node string) string { return NodeKey(node, "port-max") }

// GlobalResolver holds the cluster-wide default resolution policy.
func GlobalResolver() string { return policiesPrefix + "/resolver" }

// PortAssignment is the persisted port for a (node, pid, key) triple.
func PortAssignment(node, pid, key string) string {
	return portsPrefix + "/nodes/" + node + "/" + pid + "/" + key
}

// PortAssignments is the subtree of a node's assignments for one pid.
func PortAssignments(node, pid string) string {
	return portsPrefix + "/nodes/" + node + "/" + pid
}

// HostPorts is the subtree whose children are the ports in use on a host,
// across every node and service sharing it.
func HostPorts(host string) string {
	return portsPrefix + "/hosts/" + host
}

// HostPort is the host-side index entry for one allocated port.
func HostPort(host string, port int) string {
	return HostPorts(host) + "/" + strconv.Itoa(port)
}

// NodeVersion is the node's version binding.
func NodeVersion(node string) string {
	return configRoot + "/nodes/" + node + "/version"
}

// VersionNode is the node's profile binding under a version.
func VersionNode(version, node string) string {
	return configRoot + "/versions/" + version + "/nodes/" + node
}

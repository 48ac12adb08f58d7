package agent

import (
	"fmt"

	"github.com/roost-io/roost/pkg/registry"
)

// Service kinds exposed by every node.
const (
	KindManagement = "management"
	KindShell      = "shell"
	KindWeb        = "web"
)

// Service pids: the identities the local configuration store files port
// settings under.
const (
	ManagementPid = "io.roost.management"
	ShellPid      = "io.roost.shell"
	WebPid        = "io.roost.web"
)

// Port keys and defaults.
const (
	RmiRegistryKey = "rmiRegistryPort"
	RmiServerKey   = "rmiServerPort"
	SSHKey         = "sshPort"
	HTTPKey        = "httpPort"

	DefaultRmiRegistryPort = 1099
	DefaultRmiServerPort   = 44444
	DefaultSSHPort         = 8101
	DefaultHTTPPort        = 8181
)

// PortKey names one configurable port of a service.
type PortKey struct {
	Name    string
	Default int
}

// Service describes one exposed endpoint: its identity in the local
// configuration store, the ports it binds, and how its connection URL is
// rendered. Each service owns its URL builder, even where the rendered
// shape coincides with another's.
type Service struct {
	Kind string
	Pid  string
	Keys []PortKey
	URL  func(node string, ports map[string]int) string
}

// services is the fixed set registered for every node.
var services = []Service{
	{
		Kind: KindManagement,
		Pid:  ManagementPid,
		Keys: []PortKey{
			{Name: RmiRegistryKey, Default: DefaultRmiRegistryPort},
			{Name: RmiServerKey, Default: DefaultRmiServerPort},
		},
		URL: managementURL,
	},
	{
		Kind: KindShell,
		Pid:  ShellPid,
		Keys: []PortKey{{Name: SSHKey, Default: DefaultSSHPort}},
		URL:  shellURL,
	},
	{
		Kind: KindWeb,
		Pid:  WebPid,
		Keys: []PortKey{{Name: HTTPKey, Default: DefaultHTTPPort}},
		URL:  webURL,
	},
}

// addressPointer is the token embedded in every URL; it expands to the
// node's address record, which itself points at the resolved policy key.
func addressPointer(node string) string {
	return registry.Pointer(node, "address")
}

func managementURL(node string, ports map[string]int) string {
	pointer := addressPointer(node)
	return fmt.Sprintf("service:jmx:rmi://%s:%d/jndi/rmi://%s:%d/roost-%s",
		pointer, ports[RmiServerKey], pointer, ports[RmiRegistryKey], node)
}

func shellURL(node string, ports map[string]int) string {
	return fmt.Sprintf("%s:%d", addressPointer(node), ports[SSHKey])
}

func webURL(node string, ports map[string]int) string {
	return fmt.Sprintf("%s:%d", addressPointer(node), ports[HTTPKey])
}

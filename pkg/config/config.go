package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the agent. Values set in the
// environment override the config file; command-line flags override both.
const (
	EnvNodeID         = "ROOST_NODE_ID"
	EnvVersion        = "ROOST_VERSION"
	EnvProfiles       = "ROOST_PROFILES"
	EnvResolver       = "ROOST_RESOLVER"
	EnvGlobalResolver = "ROOST_GLOBAL_RESOLVER"
	EnvPortMin        = "ROOST_PORT_MIN"
	EnvPortMax        = "ROOST_PORT_MAX"
	EnvGeolocation    = "ROOST_GEOLOCATION"
	EnvEtcdEndpoints  = "ROOST_ETCD_ENDPOINTS"
	EnvDataDir        = "ROOST_DATA_DIR"
	EnvLogLevel       = "ROOST_LOG_LEVEL"
	EnvLogJSON        = "ROOST_LOG_JSON"
	EnvAdminAddr      = "ROOST_ADMIN_ADDR"

	// Per-resolver-kind literal address seeds, see Config.Addresses.
	envAddrPrefix = "ROOST_ADDR_"
)

// Config holds the agent configuration
type Config struct {
	NodeID   string `yaml:"node_id"`
	Version  string `yaml:"version"`
	Profiles string `yaml:"profiles"`

	// Resolver is the per-node resolution-policy override; GlobalResolver
	// seeds the cluster-wide default when none is stored yet.
	Resolver       string `yaml:"resolver"`
	GlobalResolver string `yaml:"global_resolver"`

	// Addresses maps a resolver kind (hostname, ip, local-hostname,
	// local-ip, manual) to a literal address published once at bootstrap.
	Addresses map[string]string `yaml:"addresses"`

	PortMin     string `yaml:"port_min"`
	PortMax     string `yaml:"port_max"`
	Geolocation string `yaml:"geolocation"`

	EtcdEndpoints []string `yaml:"etcd_endpoints"`
	DataDir       string   `yaml:"data_dir"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	AdminAddr string `yaml:"admin_addr"`
}

// Default returns the built-in configuration defaults
func Default() *Config {
	return &Config{
		Version:       "1.0",
		Addresses:     make(map[string]string),
		EtcdEndpoints: []string{"localhost:2379"},
		DataDir:       "./roost-data",
		LogLevel:      "info",
		AdminAddr:     "127.0.0.1:8484",
	}
}

// Load builds the effective configuration: defaults, overlaid by the
// optional YAML file at path, overlaid by ROOST_* environment variables.
// A generated node id is assigned when none was supplied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.NodeID == "" {
		cfg.NodeID = GenerateNodeID()
	}
	if cfg.Addresses == nil {
		cfg.Addresses = make(map[string]string)
	}

	return cfg, nil
}

// GenerateNodeID returns a fresh node identifier
func GenerateNodeID() string {
	return "node-" + uuid.New().String()[:8]
}

func (c *Config) applyEnv() {
	setString(&c.NodeID, EnvNodeID)
	setString(&c.Version, EnvVersion)
	setString(&c.Profiles, EnvProfiles)
	setString(&c.Resolver, EnvResolver)
	setString(&c.GlobalResolver, EnvGlobalResolver)
	setString(&c.PortMin, EnvPortMin)
	setString(&c.PortMax, EnvPortMax)
	setString(&c.Geolocation, EnvGeolocation)
	setString(&c.DataDir, EnvDataDir)
	setString(&c.LogLevel, EnvLogLevel)
	setString(&c.AdminAddr, EnvAdminAddr)

	if v := os.Getenv(EnvEtcdEndpoints); v != "" {
		c.EtcdEndpoints = strings.Split(v, ",")
	}
	if v := os.Getenv(EnvLogJSON); v != "" {
		c.LogJSON = v == "true" || v == "1"
	}

	if c.Addresses == nil {
		c.Addresses = make(map[string]string)
	}
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envAddrPrefix) || value == "" {
			continue
		}
		// ROOST_ADDR_LOCAL_HOSTNAME -> local-hostname
		kind := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, envAddrPrefix), "_", "-"))
		c.Addresses[kind] = value
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// Package config loads the agent configuration from defaults, an optional
// YAML file, and ROOST_* environment variables, in increasing precedence.
package config

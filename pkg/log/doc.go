/*
Package log provides structured logging for Roost using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Usage

Initializing the Logger:

	import "github.com/roost-io/roost/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("agent started")
	log.Warn("coordination store unreachable")

Structured Logging:

	log.Logger.Warn().
		Err(err).
		Str("node_id", "node-abc").
		Msg("registration failed")

Component Loggers:

	agentLog := log.WithComponent("agent")
	agentLog.Debug().Str("domain", "io.roost.web").Msg("domain registered")

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing

Context Logger Pattern:
  - Create child loggers with context fields
  - Automatically includes context in all logs

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Consistent error format across codebase

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers

Don't:
  - Log sensitive data
  - Use Debug level in production
  - Concatenate strings (use .Str, .Int)
*/
package log

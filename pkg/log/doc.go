/*
Package log provides structured logging for fleetsched using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions
for the dimensions fleetsched logs against most often: component, AWS
account, region, and schedule name. All logs include timestamps and
support filtering by severity level for production debugging.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Context Loggers                   │          │
	│  │  - WithComponent("orchestrator")            │          │
	│  │  - WithAccount("111111111111")              │          │
	│  │  - WithRegion("us-east-1")                  │          │
	│  │  - WithSchedule("office-hours")              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  {"level":"info","component":"orchestrator", │          │
	│  │   "account":"111111111111","region":"us-east-1",        │
	│  │   "time":"2026-03-01T09:00:00Z",            │          │
	│  │   "message":"tick complete"}                │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

Initializing the logger once at process start:

	import "github.com/cuemby/fleetsched/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers, used by the orchestrator and every per-target worker
to scope every line to the partition it's working:

	logger := log.WithComponent("orchestrator")
	logger.Info().Int("targets", 42).Msg("tick complete")

	workerLog := log.WithAccount(account).With().
		Str("region", region).
		Str("service", "ec2").
		Logger()
	workerLog.Warn().Err(err).Msg("resource-level error")

# Integration Points

This package is used by:

  - pkg/orchestrator: logs tick timing, target counts, and per-target
    worker outcomes
  - pkg/targetsched, pkg/asgsched: log per-resource decisions and errors
  - cmd/fleetsched: logs process lifecycle

pkg/leader and pkg/storage do not log through this package; they return
errors to their callers.

# Best Practices

Do:
  - Use Info level for production
  - Create component-specific loggers rather than the bare global Logger
  - Log errors with .Err() so they carry through structured fields
  - Include account/region/schedule context wherever a log line is
    about one partition of the fleet

Don't:
  - Log resource tag values or credentials
  - Use Debug level in production
  - Concatenate strings into the message (use .Str, .Int)
*/
package log

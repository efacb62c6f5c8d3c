package logust

import "errors"

// Configuration errors are returned synchronously from registration paths
// (RegisterLevel, AddFile, AddConsole, NewFromConfig). Sink write failures,
// rotation failures, and callback panics are never returned to the caller of
// a log statement; they are routed to the logger's error handler instead.
var (
	// ErrInvalidLevel indicates a level registration with a negative severity
	// or an attempt to reassign the numeric value of a built-in level.
	ErrInvalidLevel = errors.New("invalid log level")

	// ErrUnknownLevel indicates a lookup of a level name that was never
	// registered. Logging at an unregistered numeric level is still allowed.
	ErrUnknownLevel = errors.New("unknown log level")

	// ErrInvalidRotation indicates a rotation spec that is neither a size
	// ("100 bytes", "10 MB") nor a schedule ("hourly", "daily", "weekly").
	ErrInvalidRotation = errors.New("invalid rotation spec")

	// ErrInvalidRetention indicates a retention spec that is neither a count
	// ("5") nor an age ("10 days").
	ErrInvalidRetention = errors.New("invalid retention spec")

	// ErrInvalidStream indicates a console stream other than "stdout" or "stderr".
	ErrInvalidStream = errors.New(`stream must be "stdout" or "stderr"`)

	// ErrLoggerClosed indicates an operation on a closed logger.
	ErrLoggerClosed = errors.New("logger is closed")
)

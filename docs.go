// Package logust provides a structured, handler-based logging library for Go.
//
// Overview:
// Logust routes every log record through a set of independently configured
// handlers. Each handler pairs a sink (console stream, rotating file, or a
// callable) with its own severity threshold, format template, optional filter,
// and context-collection directives. Expensive context (caller, goroutine,
// process) is collected at most once per log call, and only when some handler
// actually needs it.
//
// Key Features:
// - Eight built-in severity levels (TRACE through CRITICAL) plus custom levels
// - Format templates with alignment specs: "{time} | {level:<8} | {message}"
// - Newline-delimited JSON output per handler
// - Color markup in messages: "deployed <green>successfully</green>"
// - Bound context via Bind and scoped context via Contextualize
// - Asynchronous file writes with a strict-FIFO background worker
// - Size-based and scheduled rotation, gzip compression, retention pruning
// - Rate limiting and pluggable internal error handling
// - Thread-safe operations
//
// Getting Started:
//
// Basic example:
//
//	package main
//
//	import "github.com/yamaaaaaa31/logust"
//
//	func main() {
//	    log := logust.New()
//	    defer log.Close()
//
//	    log.Info("application starting")
//	    log.Debugf("listening on %s", addr)
//	}
//
// Handlers:
//
// The default logger writes colorized output to stdout at Debug. Additional
// handlers are registered with AddFile, AddConsole, and AddSink, each
// returning an id for later removal:
//
//	id, err := log.AddFile("logs/app.log",
//	    logust.WithLevel(warning),
//	    logust.WithRotation("10 MB"),
//	    logust.WithRetention("7 days"),
//	    logust.WithCompression(),
//	    logust.WithEnqueue(),
//	)
//	...
//	log.Remove(id)
//
// Bound context:
//
//	reqLog := log.Bind(map[string]string{"request_id": id})
//	reqLog.Info("handling request") // carries request_id in {extra[request_id]}
//
// Configuration:
//
// Loggers can also be built from a JSON document:
//
//	jsonCfg := `{
//	    "level": "INFO",
//	    "handlers": [
//	        {"sink": "logs/app.log", "rotation": "daily", "retention": "5"}
//	    ]
//	}`
//	log, err := logust.WithConfig(jsonCfg)
//
// Error Handling:
//
// Registration paths return configuration errors synchronously. Sink write
// and rotation failures never surface from a log statement; they go to the
// handler installed with WithErrorHandler, or to stderr by default.
package logust

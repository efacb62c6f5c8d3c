package logust

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// core is the state shared by every bound view of a logger: the handler
// table, callbacks, level registry, and the caches derived from them.
// Handler add/remove are rare writers; log emission is the frequent reader.
type core struct {
	mu        sync.RWMutex
	handlers  []*handler
	callbacks []*callback
	levels    *levelRegistry

	nextID   atomic.Uint64
	minLevel atomic.Int32
	reqs     requirements // guarded by mu, recomputed on add/remove
	closed   atomic.Bool

	start        time.Time
	limiter      *rate.Limiter
	errorHandler func(error)

	callerFn  func() Caller
	threadFn  func() Thread
	processFn func() Process
}

// Logger is a view onto a shared core plus its private bound context. Bind
// derives new views cheaply; handler mutations through any view are visible
// to all of them.
type Logger struct {
	core  *core
	extra atomic.Pointer[map[string]string]
}

type loggerOptions struct {
	consoleLevel int
	noConsole    bool
	maxLogRate   int
	errorHandler func(error)
	callerFn     func() Caller
	threadFn     func() Thread
	processFn    func() Process
}

// Option configures a Logger at construction time.
type Option func(*loggerOptions)

// WithConsoleLevel sets the threshold of the default console handler.
func WithConsoleLevel(level Level) Option {
	return func(o *loggerOptions) { o.consoleLevel = level.No }
}

// WithoutConsole creates the logger without the default console handler.
func WithoutConsole() Option {
	return func(o *loggerOptions) { o.noConsole = true }
}

// WithMaxLogRate caps emission at n records per second; records over the rate
// are dropped before dispatch.
func WithMaxLogRate(n int) Option {
	return func(o *loggerOptions) { o.maxLogRate = n }
}

// WithErrorHandler routes internal sink and rotation failures to fn instead
// of the stderr fallback. Those failures are never returned from log calls.
func WithErrorHandler(fn func(error)) Option {
	return func(o *loggerOptions) { o.errorHandler = fn }
}

// WithCallerCollector replaces the runtime caller-info capability.
func WithCallerCollector(fn func() Caller) Option {
	return func(o *loggerOptions) { o.callerFn = fn }
}

// WithThreadCollector replaces the goroutine-info capability.
func WithThreadCollector(fn func() Thread) Option {
	return func(o *loggerOptions) { o.threadFn = fn }
}

// WithProcessCollector replaces the process-info capability.
func WithProcessCollector(fn func() Process) Option {
	return func(o *loggerOptions) { o.processFn = fn }
}

// New creates a logger with its own level registry and, unless disabled, a
// colorized console handler on stdout at Debug.
func New(opts ...Option) *Logger {
	o := loggerOptions{
		consoleLevel: DebugNo,
		callerFn:     collectCaller,
		threadFn:     collectThread,
		processFn:    collectProcess,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &core{
		levels:       newLevelRegistry(),
		start:        time.Now(),
		errorHandler: o.errorHandler,
		callerFn:     o.callerFn,
		threadFn:     o.threadFn,
		processFn:    o.processFn,
	}
	if o.maxLogRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(o.maxLogRate), o.maxLogRate)
	}

	if !o.noConsole {
		h := &handler{
			id:       c.nextID.Add(1),
			kind:     sinkConsole,
			level:    o.consoleLevel,
			format:   newFormatSpec("", false),
			colorize: isTerminal(false),
			console:  newConsoleSink(false),
		}
		c.handlers = append(c.handlers, h)
	}
	c.refreshCachesLocked()

	return &Logger{core: c}
}

func (c *core) reportError(err error) {
	if c.errorHandler != nil {
		c.errorHandler(err)
		return
	}
	fmt.Fprintf(os.Stderr, "LOGGER ERROR: %v\n", err)
}

// refreshCachesLocked recomputes the minimum-level fast-reject cache and the
// aggregated token requirements. Called with c.mu held (or before the core is
// shared) on every handler or callback mutation, so log calls read a cached
// result and never walk the table for requirements.
func (c *core) refreshCachesLocked() {
	min := noLevel
	var combined requirements
	for _, h := range c.handlers {
		if h.level < min {
			min = h.level
		}
		combined = combined.merge(h.dynamicNeeds())
	}
	for _, cb := range c.callbacks {
		if cb.level < min {
			min = cb.level
		}
	}
	// Raw callbacks receive the full record; their data dependency is opaque.
	if len(c.callbacks) > 0 {
		combined = allRequirements()
	}
	c.reqs = combined
	c.minLevel.Store(int32(min))
}

// emit is the per-call entry: the cheap rejections happen before level
// resolution and long before any context collection.
func (l *Logger) emit(no int, message, exception string) {
	c := l.core
	if c.closed.Load() {
		return
	}
	if int32(no) < c.minLevel.Load() {
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return
	}
	l.dispatch(c.levels.resolveNo(no), message, exception)
}

func (l *Logger) dispatch(lv Level, message, exception string) {
	c := l.core

	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	rec := Record{
		Level:     lv,
		Message:   message,
		Time:      now,
		Elapsed:   now.Sub(c.start),
		Exception: exception,
	}
	if m := l.extra.Load(); m != nil {
		rec.Extra = *m
	}

	reqs := c.reqs
	if reqs.caller {
		rec.Caller = c.callerFn()
	}
	if reqs.thread {
		rec.Thread = c.threadFn()
	}
	if reqs.process {
		rec.Process = c.processFn()
	}

	for _, cb := range c.callbacks {
		if isEnabled(lv.No, cb.level) {
			cb.invoke(rec)
		}
	}
	for _, h := range c.handlers {
		h.accept(&rec)
	}
}

// Trace logs a message at Trace level.
func (l *Logger) Trace(message string) { l.emit(TraceNo, message, "") }

// Debug logs a message at Debug level.
func (l *Logger) Debug(message string) { l.emit(DebugNo, message, "") }

// Info logs a message at Info level.
func (l *Logger) Info(message string) { l.emit(InfoNo, message, "") }

// Success logs a message at Success level.
func (l *Logger) Success(message string) { l.emit(SuccessNo, message, "") }

// Warning logs a message at Warning level.
func (l *Logger) Warning(message string) { l.emit(WarningNo, message, "") }

// Error logs a message at Error level.
func (l *Logger) Error(message string) { l.emit(ErrorNo, message, "") }

// Fail logs a message at Fail level.
func (l *Logger) Fail(message string) { l.emit(FailNo, message, "") }

// Critical logs a message at Critical level.
func (l *Logger) Critical(message string) { l.emit(CriticalNo, message, "") }

// Tracef logs a formatted message at Trace level.
func (l *Logger) Tracef(format string, args ...any) { l.emit(TraceNo, fmt.Sprintf(format, args...), "") }

// Debugf logs a formatted message at Debug level.
func (l *Logger) Debugf(format string, args ...any) { l.emit(DebugNo, fmt.Sprintf(format, args...), "") }

// Infof logs a formatted message at Info level.
func (l *Logger) Infof(format string, args ...any) { l.emit(InfoNo, fmt.Sprintf(format, args...), "") }

// Successf logs a formatted message at Success level.
func (l *Logger) Successf(format string, args ...any) {
	l.emit(SuccessNo, fmt.Sprintf(format, args...), "")
}

// Warningf logs a formatted message at Warning level.
func (l *Logger) Warningf(format string, args ...any) {
	l.emit(WarningNo, fmt.Sprintf(format, args...), "")
}

// Errorf logs a formatted message at Error level.
func (l *Logger) Errorf(format string, args ...any) { l.emit(ErrorNo, fmt.Sprintf(format, args...), "") }

// Failf logs a formatted message at Fail level.
func (l *Logger) Failf(format string, args ...any) { l.emit(FailNo, fmt.Sprintf(format, args...), "") }

// Criticalf logs a formatted message at Critical level.
func (l *Logger) Criticalf(format string, args ...any) {
	l.emit(CriticalNo, fmt.Sprintf(format, args...), "")
}

// Log emits at a level given by name, numeric value, or Level. Unknown names
// are an error; unregistered numbers are accepted and carry a bare number
// with an empty name.
func (l *Logger) Log(level any, message string) error {
	return l.LogWithException(level, message, "")
}

// LogWithException is Log with a preformatted traceback attached to the
// record.
func (l *Logger) LogWithException(level any, message, exception string) error {
	c := l.core
	var lv Level
	switch v := level.(type) {
	case string:
		resolved, err := c.levels.resolve(v)
		if err != nil {
			return err
		}
		lv = resolved
	case int:
		lv = c.levels.resolveNo(v)
	case Level:
		lv = v
	default:
		return fmt.Errorf("%w: level must be a name, a number, or a Level", ErrInvalidLevel)
	}

	if c.closed.Load() {
		return nil
	}
	if int32(lv.No) < c.minLevel.Load() {
		return nil
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return nil
	}
	l.dispatch(lv, message, exception)
	return nil
}

// Bind returns a new logger view sharing this logger's handlers and level
// registry, with the given keys merged into its bound context. A key bound
// again in a child view overrides the parent's value.
func (l *Logger) Bind(extra map[string]string) *Logger {
	bound := &Logger{core: l.core}
	merged := mergeExtra(l.loadExtra(), extra)
	bound.extra.Store(&merged)
	return bound
}

// Contextualize runs fn with the given keys merged into this logger's bound
// context and restores the previous context on every exit path, including a
// panic propagating out of fn.
func (l *Logger) Contextualize(extra map[string]string, fn func()) {
	merged := mergeExtra(l.loadExtra(), extra)
	prev := l.extra.Swap(&merged)
	defer l.extra.Store(prev)
	fn()
}

func (l *Logger) loadExtra() map[string]string {
	if m := l.extra.Load(); m != nil {
		return *m
	}
	return nil
}

func mergeExtra(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// AddFile registers a file handler. Rotation, retention, compression, and
// enqueue mode come from the handler options; an invalid rotation or
// retention spec or an unopenable path is a configuration error and nothing
// is registered.
func (l *Logger) AddFile(path string, opts ...HandlerOption) (uint64, error) {
	c := l.core
	if c.closed.Load() {
		return 0, ErrLoggerClosed
	}

	cfg := buildHandlerConfig(opts)
	rotation, err := parseRotation(cfg.rotation)
	if err != nil {
		return 0, err
	}
	retention, err := parseRetention(cfg.retention)
	if err != nil {
		return 0, err
	}

	sink, err := newFileSink(path, rotation, retention, cfg.compress, cfg.enqueue, c.reportError)
	if err != nil {
		return 0, err
	}

	h := &handler{
		id:      c.nextID.Add(1),
		kind:    sinkFile,
		level:   cfg.level,
		format:  cfg.formatSpec(),
		filter:  cfg.filter,
		collect: cfg.collect,
		file:    sink,
	}
	c.addHandler(h)
	return h.id, nil
}

// AddConsole registers a console handler on "stdout" or "stderr". Colorization
// defaults to terminal auto-detection and is forced off for serialized output.
func (l *Logger) AddConsole(stream string, opts ...HandlerOption) (uint64, error) {
	c := l.core
	if c.closed.Load() {
		return 0, ErrLoggerClosed
	}

	var stderr bool
	switch stream {
	case "stdout":
	case "stderr":
		stderr = true
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStream, stream)
	}

	cfg := buildHandlerConfig(opts)
	colorize := isTerminal(stderr) && !cfg.serialize
	if cfg.colorize != nil {
		colorize = *cfg.colorize
	}

	h := &handler{
		id:       c.nextID.Add(1),
		kind:     sinkConsole,
		level:    cfg.level,
		format:   cfg.formatSpec(),
		filter:   cfg.filter,
		colorize: colorize,
		collect:  cfg.collect,
		console:  newConsoleSink(stderr),
	}
	c.addHandler(h)
	return h.id, nil
}

// AddSink registers a callable sink that receives each rendered line. File
// options (rotation, retention, compression, enqueue) do not apply here and
// are rejected.
func (l *Logger) AddSink(fn func(line string), opts ...HandlerOption) (uint64, error) {
	c := l.core
	if c.closed.Load() {
		return 0, ErrLoggerClosed
	}

	cfg := buildHandlerConfig(opts)
	if cfg.rotation != "" || cfg.retention != "" || cfg.compress || cfg.enqueue {
		return 0, fmt.Errorf("%w: rotation options apply to file sinks only", ErrInvalidRotation)
	}

	colorize := false
	if cfg.colorize != nil {
		colorize = *cfg.colorize
	}

	h := &handler{
		id:       c.nextID.Add(1),
		kind:     sinkCallback,
		level:    cfg.level,
		format:   cfg.formatSpec(),
		filter:   cfg.filter,
		colorize: colorize,
		collect:  cfg.collect,
		emit:     fn,
	}
	c.addHandler(h)
	return h.id, nil
}

// AddCallback registers a raw record consumer. Callbacks bypass formatting
// and receive the full record, so registering one forces full context
// collection on every accepted call.
func (l *Logger) AddCallback(fn func(Record), opts ...HandlerOption) uint64 {
	c := l.core
	cfg := buildHandlerConfig(opts)

	cb := &callback{id: c.nextID.Add(1), level: cfg.level, fn: fn}
	c.mu.Lock()
	c.callbacks = append(c.callbacks, cb)
	c.refreshCachesLocked()
	c.mu.Unlock()
	return cb.id
}

func (c *core) addHandler(h *handler) {
	c.mu.Lock()
	c.handlers = append(c.handlers, h)
	c.refreshCachesLocked()
	c.mu.Unlock()
}

// Remove unregisters a handler by id, returning whether it existed. Removing
// a file handler drains its queue and closes the file.
func (l *Logger) Remove(id uint64) bool {
	c := l.core
	c.mu.Lock()
	var removed *handler
	for i, h := range c.handlers {
		if h.id == id {
			removed = h
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			break
		}
	}
	if removed != nil {
		c.refreshCachesLocked()
	}
	c.mu.Unlock()

	if removed == nil {
		return false
	}
	if removed.kind == sinkFile {
		removed.file.close()
	}
	return true
}

// RemoveAll unregisters every handler and callback, closing file sinks.
func (l *Logger) RemoveAll() {
	c := l.core
	c.mu.Lock()
	removed := c.handlers
	c.handlers = nil
	c.callbacks = nil
	c.refreshCachesLocked()
	c.mu.Unlock()

	for _, h := range removed {
		if h.kind == sinkFile {
			h.file.close()
		}
	}
}

// RemoveCallback unregisters a callback by id, returning whether it existed.
func (l *Logger) RemoveCallback(id uint64) bool {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cb := range c.callbacks {
		if cb.id == id {
			c.callbacks = append(c.callbacks[:i], c.callbacks[i+1:]...)
			c.refreshCachesLocked()
			return true
		}
	}
	return false
}

// RemoveCallbacks unregisters several callbacks at once and returns how many
// were found.
func (l *Logger) RemoveCallbacks(ids []uint64) int {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, id := range ids {
		for i, cb := range c.callbacks {
			if cb.id == id {
				c.callbacks = append(c.callbacks[:i], c.callbacks[i+1:]...)
				removed++
				break
			}
		}
	}
	if removed > 0 {
		c.refreshCachesLocked()
	}
	return removed
}

// HandlerCount returns the number of registered handlers, callbacks excluded.
func (l *Logger) HandlerCount() int {
	c := l.core
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// RegisterLevel registers or updates a custom level. Built-in level numbers
// cannot be reassigned, but their color and icon can.
func (l *Logger) RegisterLevel(name string, no int, color, icon string) error {
	return l.core.levels.register(name, no, color, icon)
}

// LevelFor resolves a registered level by name.
func (l *Logger) LevelFor(name string) (Level, error) {
	return l.core.levels.resolve(name)
}

// SetLevel sets the threshold of every console handler.
func (l *Logger) SetLevel(level Level) {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.handlers {
		if h.kind == sinkConsole {
			h.level = level.No
		}
	}
	c.refreshCachesLocked()
}

// GetLevel returns the threshold of the first console handler, or Debug when
// no console handler exists.
func (l *Logger) GetLevel() Level {
	c := l.core
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, h := range c.handlers {
		if h.kind == sinkConsole {
			return c.levels.resolveNo(h.level)
		}
	}
	return c.levels.resolveNo(DebugNo)
}

// IsLevelEnabled reports whether any handler or callback would accept the
// given level.
func (l *Logger) IsLevelEnabled(level Level) bool {
	return int32(level.No) >= l.core.minLevel.Load()
}

// Enable restores console output at Debug if no console handler exists.
func (l *Logger) Enable() {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.handlers {
		if h.kind == sinkConsole {
			return
		}
	}
	h := &handler{
		id:       c.nextID.Add(1),
		kind:     sinkConsole,
		level:    DebugNo,
		format:   newFormatSpec("", false),
		colorize: isTerminal(false),
		console:  newConsoleSink(false),
	}
	c.handlers = append(c.handlers, h)
	c.refreshCachesLocked()
}

// Disable removes all console handlers.
func (l *Logger) Disable() {
	c := l.core
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.handlers[:0]
	for _, h := range c.handlers {
		if h.kind != sinkConsole {
			kept = append(kept, h)
		}
	}
	c.handlers = kept
	c.refreshCachesLocked()
}

// IsEnabled reports whether console output is enabled.
func (l *Logger) IsEnabled() bool {
	c := l.core
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, h := range c.handlers {
		if h.kind == sinkConsole {
			return true
		}
	}
	return false
}

// Complete blocks until every record enqueued to async file sinks before the
// call has been written to disk.
func (l *Logger) Complete() {
	c := l.core
	c.mu.RLock()
	sinks := make([]*fileSink, 0, len(c.handlers))
	for _, h := range c.handlers {
		if h.kind == sinkFile {
			sinks = append(sinks, h.file)
		}
	}
	c.mu.RUnlock()

	for _, s := range sinks {
		s.flush()
	}
}

// Close drains async sinks, closes all files, and marks the logger closed.
// Subsequent log calls are dropped.
func (l *Logger) Close() error {
	c := l.core
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.handlers {
		if h.kind == sinkFile {
			h.file.close()
		}
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (l *Logger) IsClosed() bool {
	return l.core.closed.Load()
}

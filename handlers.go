package logust

// A handler binds a sink to a level threshold, a parsed format, an optional
// filter, and its context-collection directives. The sink kinds form a closed
// set; accept dispatches over them exhaustively.

type sinkKind int

const (
	sinkConsole sinkKind = iota
	sinkFile
	sinkCallback
)

type handler struct {
	id       uint64
	kind     sinkKind
	level    int
	format   *formatSpec
	filter   func(*Record) bool
	colorize bool
	collect  collectOptions

	console *consoleSink
	file    *fileSink
	emit    func(string) // callable sink; receives the rendered line
}

// dynamicNeeds is this handler's contribution to the aggregated collection
// decision. A filter's data dependency is opaque, so its presence forces full
// collection for the fields left on auto.
func (h *handler) dynamicNeeds() requirements {
	return h.collect.dynamicNeeds(h.format.reqs, h.filter != nil)
}

// accept applies the handler's own threshold and filter, renders the record,
// and hands the line to the sink. A filter rejecting the record is a silent
// skip. Callable sinks run under a recover so a panicking sink cannot reach
// the caller of the log statement or starve the other sinks.
func (h *handler) accept(rec *Record) {
	if !isEnabled(rec.Level.No, h.level) {
		return
	}
	if h.filter != nil && !h.filter(rec) {
		return
	}

	view := h.collect.view(rec)
	line := h.format.render(&view, h.colorize)

	switch h.kind {
	case sinkConsole:
		h.console.write(line)
	case sinkFile:
		h.file.write(line)
	case sinkCallback:
		h.invoke(line)
	}
}

func (h *handler) invoke(line string) {
	defer func() {
		// A panicking sink is discarded silently; the log call must not fail.
		_ = recover()
	}()
	h.emit(line)
}

// callback is a raw record consumer, tracked separately from handlers so
// HandlerCount and Remove(nil) semantics match the handler table. Callbacks
// receive the full record, so their presence forces full context collection.
type callback struct {
	id    uint64
	level int
	fn    func(Record)
}

func (c *callback) invoke(rec Record) {
	defer func() {
		_ = recover()
	}()
	c.fn(rec)
}

// HandlerOption configures a handler at registration time.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level      int
	format     string
	timeLayout string
	serialize  bool
	filter     func(*Record) bool
	colorize   *bool
	rotation   string
	retention  string
	compress   bool
	enqueue    bool
	collect    collectOptions
}

// WithLevel sets the handler's own minimum severity, overriding the
// logger-wide default of Debug.
func WithLevel(level Level) HandlerOption {
	return func(c *handlerConfig) { c.level = level.No }
}

// WithLevelNo sets the handler's minimum severity by number.
func WithLevelNo(no int) HandlerOption {
	return func(c *handlerConfig) { c.level = no }
}

// WithFormat sets the handler's format template. It is parsed once at
// registration.
func WithFormat(template string) HandlerOption {
	return func(c *handlerConfig) { c.format = template }
}

// WithTimeFormat sets the timestamp layout used by {time} and JSON output.
func WithTimeFormat(layout string) HandlerOption {
	return func(c *handlerConfig) { c.timeLayout = layout }
}

// WithSerialize switches the handler to newline-delimited JSON output.
func WithSerialize() HandlerOption {
	return func(c *handlerConfig) { c.serialize = true }
}

// WithFilter installs a predicate over the full record. Returning false skips
// the record for this handler only.
func WithFilter(filter func(*Record) bool) HandlerOption {
	return func(c *handlerConfig) { c.filter = filter }
}

// WithColorize overrides the terminal auto-detection for console handlers.
func WithColorize(on bool) HandlerOption {
	return func(c *handlerConfig) { c.colorize = &on }
}

// WithRotation sets the file rotation spec: a size ("100 bytes", "10 MB") or
// a schedule ("hourly", "daily", "weekly", "daily at 14:30").
func WithRotation(spec string) HandlerOption {
	return func(c *handlerConfig) { c.rotation = spec }
}

// WithRetention sets the rotated-file retention spec: a count ("5") or an age
// ("10 days").
func WithRetention(spec string) HandlerOption {
	return func(c *handlerConfig) { c.retention = spec }
}

// WithCompression gzips rotated files.
func WithCompression() HandlerOption {
	return func(c *handlerConfig) { c.compress = true }
}

// WithEnqueue defers this file handler's writes to a dedicated background
// worker. Emission becomes an O(1) queue push; Complete drains the queue.
func WithEnqueue() HandlerOption {
	return func(c *handlerConfig) { c.enqueue = true }
}

// WithCaller sets the handler's caller-collection directive.
func WithCaller(mode CollectMode) HandlerOption {
	return func(c *handlerConfig) { c.collect.callerMode = mode }
}

// WithThread sets the handler's thread-collection directive.
func WithThread(mode CollectMode) HandlerOption {
	return func(c *handlerConfig) { c.collect.threadMode = mode }
}

// WithProcess sets the handler's process-collection directive.
func WithProcess(mode CollectMode) HandlerOption {
	return func(c *handlerConfig) { c.collect.processMode = mode }
}

// WithFixedCaller substitutes a fixed caller value for this handler instead
// of collecting one.
func WithFixedCaller(caller Caller) HandlerOption {
	return func(c *handlerConfig) {
		c.collect.callerMode = collectFixed
		c.collect.fixedCaller = caller
	}
}

// WithFixedThread substitutes a fixed thread value for this handler.
func WithFixedThread(thread Thread) HandlerOption {
	return func(c *handlerConfig) {
		c.collect.threadMode = collectFixed
		c.collect.fixedThread = thread
	}
}

// WithFixedProcess substitutes a fixed process value for this handler.
func WithFixedProcess(process Process) HandlerOption {
	return func(c *handlerConfig) {
		c.collect.processMode = collectFixed
		c.collect.fixedProcess = process
	}
}

func buildHandlerConfig(opts []HandlerOption) handlerConfig {
	cfg := handlerConfig{level: DebugNo}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c handlerConfig) formatSpec() *formatSpec {
	spec := newFormatSpec(c.format, c.serialize)
	if c.timeLayout != "" {
		spec.timeLayout = c.timeLayout
	}
	return spec
}

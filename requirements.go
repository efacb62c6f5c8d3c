package logust

// The token requirements analyzer decides, per log call, which of the
// expensive context fields (caller, thread, process) actually need to be
// collected. Each handler contributes the requirements of its parsed format
// plus its collect directives; the aggregate is cached on the core and
// recomputed only when a handler or callback is added or removed, so the
// steady-state cost per log call is a struct read.

// requirements flags which context fields some output depends on.
type requirements struct {
	caller  bool
	thread  bool
	process bool
}

func (r requirements) merge(o requirements) requirements {
	return requirements{
		caller:  r.caller || o.caller,
		thread:  r.thread || o.thread,
		process: r.process || o.process,
	}
}

func allRequirements() requirements {
	return requirements{caller: true, thread: true, process: true}
}

// CollectMode controls how a handler sources one context field.
type CollectMode int

const (
	// CollectAuto collects the field only if the handler's format uses it.
	CollectAuto CollectMode = iota
	// CollectAlways collects the field regardless of the format.
	CollectAlways
	// CollectNever leaves the field empty for this handler.
	CollectNever
	// collectFixed substitutes a fixed per-handler placeholder value.
	collectFixed
)

// collectOptions holds one handler's per-field directives. A fixed directive
// carries the placeholder substituted into that handler's view of the record.
type collectOptions struct {
	callerMode  CollectMode
	threadMode  CollectMode
	processMode CollectMode

	fixedCaller  Caller
	fixedThread  Thread
	fixedProcess Process
}

// dynamicNeeds resolves one handler's contribution to the global collection
// decision. Precedence per field: an explicit CollectAlways wins; otherwise
// auto-detection from the format (or an opaque filter dependency) decides;
// fixed and never directives contribute nothing to dynamic collection.
func (c collectOptions) dynamicNeeds(formatReqs requirements, opaque bool) requirements {
	need := func(mode CollectMode, formatNeeds bool) bool {
		switch mode {
		case CollectAlways:
			return true
		case CollectNever, collectFixed:
			return false
		default:
			return formatNeeds || opaque
		}
	}
	return requirements{
		caller:  need(c.callerMode, formatReqs.caller),
		thread:  need(c.threadMode, formatReqs.thread),
		process: need(c.processMode, formatReqs.process),
	}
}

// view returns the record as this handler should see it, substituting fixed
// placeholders and blanking suppressed fields. The common all-auto case
// returns the record unchanged.
func (c collectOptions) view(rec *Record) Record {
	if c.callerMode == CollectAuto && c.threadMode == CollectAuto && c.processMode == CollectAuto {
		return *rec
	}
	out := *rec
	switch c.callerMode {
	case CollectNever:
		out.Caller = Caller{}
	case collectFixed:
		out.Caller = c.fixedCaller
	}
	switch c.threadMode {
	case CollectNever:
		out.Thread = Thread{}
	case collectFixed:
		out.Thread = c.fixedThread
	}
	switch c.processMode {
	case CollectNever:
		out.Process = Process{}
	case collectFixed:
		out.Process = c.fixedProcess
	}
	return out
}

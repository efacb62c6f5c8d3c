package logust

import (
	"fmt"
	"time"
)

// Caller identifies the source location of a log call.
type Caller struct {
	Module   string
	Function string
	Line     int
	File     string
}

// Thread identifies the emitting goroutine.
type Thread struct {
	Name string
	ID   uint64
}

// Process identifies the emitting OS process.
type Process struct {
	Name string
	ID   int
}

// Record is the structured representation of one log event, constructed fresh
// per log call and immutable once handed to a handler. Handlers that defer
// work (async file sinks) receive the rendered line, not the record, so the
// record never outlives the dispatch.
type Record struct {
	Level     Level
	Message   string
	Time      time.Time
	Elapsed   time.Duration
	Caller    Caller
	Thread    Thread
	Process   Process
	Exception string
	Extra     map[string]string
}

func (c Caller) empty() bool {
	return c.Module == "" && c.Function == "" && c.Line == 0 && c.File == ""
}

// formatElapsed renders a duration as HH:MM:SS.mmm, clamping negative values
// (clock adjustment) to zero.
func formatElapsed(d time.Duration) string {
	millis := d.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	ms := millis % 1000
	secs := millis / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", secs/3600, (secs%3600)/60, secs%60, ms)
}

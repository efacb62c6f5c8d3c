package logust

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// Context collection is the expensive part of a log call: the dispatcher only
// invokes these collectors when the aggregated token requirements say some
// handler's output actually depends on the field. Each collector is an
// injected capability on the logger core so tests (and callers with cheaper
// sources of truth) can replace it.

// collectCaller walks up the stack to the first frame outside this package
// and returns its module path, function name, line, and file basename.
func collectCaller() Caller {
	var pcs [16]uintptr
	// Skip runtime.Callers, collectCaller, and the logust dispatch frames.
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return Caller{}
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function == "" {
			break
		}
		module, function := splitFuncName(frame.Function)
		if module != selfPackage {
			return Caller{
				Module:   module,
				Function: function,
				Line:     frame.Line,
				File:     filepath.Base(frame.File),
			}
		}
		if !more {
			break
		}
	}
	return Caller{}
}

// selfPackage is the import path of this package, used to skip our own frames
// when locating the caller.
var selfPackage = func() string {
	pc, _, _, ok := runtime.Caller(0)
	if !ok {
		return "logust"
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		module, _ := splitFuncName(fn.Name())
		return module
	}
	return "logust"
}()

// splitFuncName splits a runtime function name like
// "github.com/acme/app/web.(*Server).handle" into the package path and the
// bare function name.
func splitFuncName(full string) (module, function string) {
	slash := strings.LastIndexByte(full, '/')
	dot := strings.IndexByte(full[slash+1:], '.')
	if dot < 0 {
		return full, full
	}
	dot += slash + 1
	module = full[:dot]
	function = full[dot+1:]
	if idx := strings.LastIndexByte(function, '.'); idx >= 0 {
		function = function[idx+1:]
	}
	function = strings.TrimSuffix(strings.TrimPrefix(function, "("), ")")
	return module, function
}

// collectThread reports the emitting goroutine. Goroutines have no names, so
// the id from the runtime stack header stands in for thread identity.
func collectThread() Thread {
	return Thread{Name: "goroutine", ID: goroutineID()}
}

// goroutineID parses the header of the current goroutine's stack trace,
// which has the form "goroutine 12 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// processCache memoizes process identity. The cached value is invalidated
// when the observed pid changes, so forked children never report the
// parent's identity.
var processCache struct {
	mu   sync.Mutex
	pid  int
	name string
}

// collectProcess returns the current process name and id, recomputing the
// name only when the pid changes.
func collectProcess() Process {
	pid := os.Getpid()

	processCache.mu.Lock()
	defer processCache.mu.Unlock()

	if processCache.pid != pid || processCache.name == "" {
		name := "unknown"
		if exe, err := os.Executable(); err == nil {
			name = filepath.Base(exe)
		} else if len(os.Args) > 0 {
			name = filepath.Base(os.Args[0])
		}
		processCache.pid = pid
		processCache.name = name
	}
	return Process{Name: processCache.name, ID: pid}
}

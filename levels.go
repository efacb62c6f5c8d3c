package logust

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Level describes a log severity: a case-insensitive name (stored uppercase),
// a numeric value used for threshold comparison, an ANSI color name for
// console output, and an optional icon.
type Level struct {
	Name  string
	No    int
	Color string
	Icon  string
}

// Built-in severity values. These numbers are fixed: RegisterLevel refuses to
// move a built-in name to a different number, though color and icon may be
// customized.
const (
	TraceNo    = 5
	DebugNo    = 10
	InfoNo     = 20
	SuccessNo  = 25
	WarningNo  = 30
	ErrorNo    = 40
	FailNo     = 45
	CriticalNo = 50
)

// noLevel is the cached-minimum sentinel when no handler or callback exists.
const noLevel = math.MaxInt32

func builtinLevels() []Level {
	return []Level{
		{Name: "TRACE", No: TraceNo, Color: "cyan"},
		{Name: "DEBUG", No: DebugNo, Color: "blue"},
		{Name: "INFO", No: InfoNo, Color: "green"},
		{Name: "SUCCESS", No: SuccessNo, Color: "bright_green"},
		{Name: "WARNING", No: WarningNo, Color: "yellow"},
		{Name: "ERROR", No: ErrorNo, Color: "red"},
		{Name: "FAIL", No: FailNo, Color: "magenta"},
		{Name: "CRITICAL", No: CriticalNo, Color: "bright_red"},
	}
}

// levelRegistry maps level names to severities and back. Registration is a
// rare writer; every log call that resolves a name is a reader.
type levelRegistry struct {
	mu      sync.RWMutex
	byName  map[string]Level
	byNo    map[int]string
	builtin map[string]int
}

func newLevelRegistry() *levelRegistry {
	r := &levelRegistry{
		byName:  make(map[string]Level),
		byNo:    make(map[int]string),
		builtin: make(map[string]int),
	}
	for _, lv := range builtinLevels() {
		r.byName[lv.Name] = lv
		r.byNo[lv.No] = lv.Name
		r.builtin[lv.Name] = lv.No
	}
	return r
}

// register upserts a level. Re-registering an existing name overwrites its
// severity, color, and icon, except that built-in names may not change number.
func (r *levelRegistry) register(name string, no int, color, icon string) error {
	if no < 0 {
		return fmt.Errorf("%w: severity %d is negative", ErrInvalidLevel, no)
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidLevel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if fixed, ok := r.builtin[upper]; ok && fixed != no {
		return fmt.Errorf("%w: cannot change severity of built-in level %s", ErrInvalidLevel, upper)
	}
	if prev, ok := r.byName[upper]; ok && r.byNo[prev.No] == upper {
		delete(r.byNo, prev.No)
	}
	r.byName[upper] = Level{Name: upper, No: no, Color: color, Icon: icon}
	r.byNo[no] = upper
	return nil
}

// resolve looks up a level by name, case-insensitively.
func (r *levelRegistry) resolve(name string) (Level, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	r.mu.RLock()
	lv, ok := r.byName[upper]
	r.mu.RUnlock()
	if !ok {
		return Level{}, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
	return lv, nil
}

// resolveNo looks up a level by numeric value. An unregistered number is not
// an error: the returned level carries the bare number and an empty name, so
// ad hoc numeric logging always succeeds.
func (r *levelRegistry) resolveNo(no int) Level {
	r.mu.RLock()
	name, ok := r.byNo[no]
	if ok {
		lv := r.byName[name]
		r.mu.RUnlock()
		return lv
	}
	r.mu.RUnlock()
	return Level{No: no}
}

// isEnabled reports whether a severity passes a threshold.
func isEnabled(no, threshold int) bool {
	return no >= threshold
}

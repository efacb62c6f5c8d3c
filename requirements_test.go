package logust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDynamicNeedsPrecedence(t *testing.T) {
	t.Parallel()

	formatNeedsCaller := requirements{caller: true}

	tests := []struct {
		name   string
		opts   collectOptions
		format requirements
		opaque bool
		want   requirements
	}{
		{"AutoFollowsFormat", collectOptions{}, formatNeedsCaller, false, requirements{caller: true}},
		{"AutoWithoutFormatNeed", collectOptions{}, requirements{}, false, requirements{}},
		{"OpaqueFilterForcesAuto", collectOptions{}, requirements{}, true, allRequirements()},
		{"AlwaysWinsOverFormat", collectOptions{threadMode: CollectAlways}, requirements{}, false, requirements{thread: true}},
		{"NeverSuppressesFormatNeed", collectOptions{callerMode: CollectNever}, formatNeedsCaller, false, requirements{}},
		{"NeverSuppressesOpaque", collectOptions{callerMode: CollectNever, threadMode: CollectNever, processMode: CollectNever}, requirements{}, true, requirements{}},
		{"FixedNeedsNoCollection", collectOptions{callerMode: collectFixed}, formatNeedsCaller, false, requirements{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.dynamicNeeds(tt.format, tt.opaque))
		})
	}
}

func TestRequirementsMerge(t *testing.T) {
	t.Parallel()

	a := requirements{caller: true}
	b := requirements{thread: true}
	assert.Equal(t, requirements{caller: true, thread: true}, a.merge(b))
	assert.Equal(t, allRequirements(), a.merge(b).merge(requirements{process: true}))
}

func TestViewAllAutoReturnsRecordUnchanged(t *testing.T) {
	t.Parallel()

	rec := testRecord()
	view := collectOptions{}.view(&rec)
	assert.Equal(t, rec, view)
}

func TestViewSubstitutions(t *testing.T) {
	t.Parallel()

	rec := testRecord()
	rec.Thread = Thread{Name: "goroutine", ID: 7}

	fixed := Caller{Module: "pinned", Function: "fn", Line: 1}
	opts := collectOptions{
		callerMode:  collectFixed,
		fixedCaller: fixed,
		threadMode:  CollectNever,
	}

	view := opts.view(&rec)
	assert.Equal(t, fixed, view.Caller)
	assert.Equal(t, Thread{}, view.Thread)
	// The shared record is untouched.
	assert.Equal(t, "app/web", rec.Caller.Module)
	assert.Equal(t, uint64(7), rec.Thread.ID)
}

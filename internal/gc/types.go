package gc

import (
	"github.com/mattjoyce/wsgc/internal/history"
	"github.com/mattjoyce/wsgc/internal/objects"
	"github.com/mattjoyce/wsgc/internal/workspace"
)

// State is where a workspace ended up after a scan.
type State string

const (
	StateClean State = "clean"
	StateDirty State = "dirty"
	StateReset State = "reset"
)

// Check is the outcome of inspecting one workspace.
type Check struct {
	Workspace   workspace.Workspace
	Counts      objects.Counts
	Count       int64
	Packs       int64
	SizePackKiB int64
	Dirty       bool
	Digest      string

	// Previous is the last recorded check, when history is enabled.
	Previous *history.Record

	Reset       bool
	RemoveErr   error
	CloneOutput string
	CloneErr    error
}

func (c Check) State() State {
	switch {
	case c.Reset:
		return StateReset
	case c.Dirty:
		return StateDirty
	default:
		return StateClean
	}
}

// CountDelta is the change in loose objects since the previous check.
func (c Check) CountDelta() (int64, bool) {
	if c.Previous == nil {
		return 0, false
	}
	return c.Count - c.Previous.Count, true
}

func (c Check) record(runID string) history.Record {
	rec := history.Record{
		RunID:        runID,
		Workspace:    c.Workspace.Dir,
		Count:        c.Count,
		Packs:        c.Packs,
		SizePackKiB:  c.SizePackKiB,
		Dirty:        c.Dirty,
		Reset:        c.Reset,
		OutputDigest: c.Digest,
	}
	if c.CloneErr != nil {
		rec.CloneError = c.CloneErr.Error()
	}
	return rec
}

// Result summarizes a scan run.
type Result struct {
	RunID string
	// Clean reports whether resets were enabled for the run.
	Clean  bool
	Checks []Check
	// Dirty lists dirty workspaces in scan order.
	Dirty []workspace.Workspace
}

func (r Result) ResetCount() int {
	n := 0
	for _, c := range r.Checks {
		if c.Reset {
			n++
		}
	}
	return n
}

// NeedsAttention reports whether dirty workspaces were left untouched.
func (r Result) NeedsAttention() bool {
	return !r.Clean && len(r.Dirty) > 0
}
